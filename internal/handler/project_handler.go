package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"Forecast_Hub/internal/middleware"
	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/service"
)

type ProjectHandler struct {
	svc *service.ProjectService
}

type MemberReq struct {
	UserID     uint64 `json:"user_id"`
	Permission string `json:"permission" binding:"required"`
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// queryList accepts both repeated and comma separated values.
func queryList(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func (h *ProjectHandler) List(c *gin.Context) {
	var f sqldb.ProjectFilter
	for _, v := range queryList(c, "ids") {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid ids"})
			return
		}
		f.IDs = append(f.IDs, id)
	}
	for _, v := range queryList(c, "types") {
		typ := model.ProjectType(v)
		if !typ.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid types"})
			return
		}
		f.Types = append(f.Types, typ)
	}
	user := middleware.CurrentUser(c)
	projects, err := h.svc.VisibleProjects(c.Request.Context(), user, f)
	if err != nil {
		fail(c, err)
		return
	}
	data, err := h.svc.SerializeProjects(c.Request.Context(), projects, user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	project, err := h.svc.GetVisibleProject(c.Request.Context(), user, id)
	if err != nil {
		fail(c, err)
		return
	}
	data, err := h.svc.Serialize(c.Request.Context(), project, user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	project, err := h.svc.Create(c.Request.Context(), user, req)
	if err != nil {
		fail(c, err)
		return
	}
	data, err := h.svc.Serialize(c.Request.Context(), project, user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, data)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	project, err := h.svc.Update(c.Request.Context(), user, id, req)
	if err != nil {
		fail(c, err)
		return
	}
	data, err := h.svc.Serialize(c.Request.Context(), project, user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *ProjectHandler) Members(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := h.svc.Members(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// InviteMember adds a member; the user id comes from the body.
func (h *ProjectHandler) InviteMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req MemberReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	if err := h.svc.SetMember(c.Request.Context(), middleware.CurrentUser(c), id, req.UserID, req.Permission); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"msg": "ok"})
}

func (h *ProjectHandler) UpdateMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req MemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	if err := h.svc.SetMember(c.Request.Context(), middleware.CurrentUser(c), id, userID, req.Permission); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), middleware.CurrentUser(c), id, userID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) Subscribe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Subscribe(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *ProjectHandler) Unsubscribe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Unsubscribe(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
