package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Forecast_Hub/internal/middleware"
	"Forecast_Hub/internal/service"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

type MarkReadReq struct {
	IDs []uint64 `json:"ids"`
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List pages notifications newest first; pass next_cursor back as cursor.
func (h *NotificationHandler) List(c *gin.Context) {
	cursor, ok := queryUint(c, "cursor")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, next, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": list, "next_cursor": next})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req MarkReadReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badParams(c, err)
			return
		}
	}
	n, err := h.svc.MarkRead(c.Request.Context(), middleware.CurrentUser(c), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
