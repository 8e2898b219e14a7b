package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Forecast_Hub/internal/middleware"
	"Forecast_Hub/internal/service"
)

type CommentHandler struct {
	svc *service.CommentService
}

type EditCommentReq struct {
	Text string `json:"text" binding:"required"`
}

func NewCommentHandler(svc *service.CommentService) *CommentHandler {
	return &CommentHandler{svc: svc}
}

// ListForPost pages comments oldest first; pass next_cursor back as cursor.
func (h *CommentHandler) ListForPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cursor, ok := queryUint(c, "cursor")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, next, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), id, cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": list, "next_cursor": next})
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req service.CommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	comment, err := h.svc.CreateComment(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.SerializeComment(comment))
}

// CreateOnPost is Create with the post taken from the path.
func (h *CommentHandler) CreateOnPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.CommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	req.OnPost = &id
	req.OnProject = nil
	comment, err := h.svc.CreateComment(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.SerializeComment(comment))
}

func (h *CommentHandler) Edit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req EditCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	if err := h.svc.Edit(c.Request.Context(), middleware.CurrentUser(c), id, req.Text); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
