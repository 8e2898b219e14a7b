package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Forecast_Hub/internal/middleware"
	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/service"
)

type PostHandler struct {
	svc       *service.PostService
	forecasts *service.ForecastService
}

type ResolveReq struct {
	Resolution string `json:"resolution" binding:"required"`
}

func NewPostHandler(svc *service.PostService, forecasts *service.ForecastService) *PostHandler {
	return &PostHandler{svc: svc, forecasts: forecasts}
}

func (h *PostHandler) List(c *gin.Context) {
	projectID, ok := queryUint(c, "project")
	if !ok {
		return
	}
	f := sqldb.PostFilter{ProjectID: projectID}
	for _, v := range queryList(c, "statuses") {
		f.Statuses = append(f.Statuses, model.CurationStatus(v))
	}
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	posts, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": posts})
}

func (h *PostHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	post, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Create(c *gin.Context) {
	var req service.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	post, err := h.svc.Create(c.Request.Context(), user, req)
	if err != nil {
		fail(c, err)
		return
	}
	data, err := h.svc.Get(c.Request.Context(), user, post.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, data)
}

func (h *PostHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Approve(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *PostHandler) Delete(c *gin.Context) {
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

func (h *PostHandler) Similar(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	posts, err := h.svc.Similar(c.Request.Context(), middleware.CurrentUser(c), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) Resolve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ResolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	if err := h.svc.ResolveQuestion(c.Request.Context(), middleware.CurrentUser(c), id, req.Resolution); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *PostHandler) CreateForecast(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ForecastInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c, err)
		return
	}
	if err := h.forecasts.CreateForecast(c.Request.Context(), middleware.CurrentUser(c), id, req); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{})
}

func (h *PostHandler) MyForecasts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.forecasts.MyForecasts(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *PostHandler) Aggregates(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	method := model.AggregationMethod(c.Query("method"))
	list, err := h.forecasts.Aggregates(c.Request.Context(), middleware.CurrentUser(c), id, method)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
