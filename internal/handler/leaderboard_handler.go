package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Forecast_Hub/internal/middleware"
	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/service"
)

type LeaderboardHandler struct {
	svc         *service.LeaderboardService
	trackRecord *service.TrackRecordService
}

func NewLeaderboardHandler(svc *service.LeaderboardService, trackRecord *service.TrackRecordService) *LeaderboardHandler {
	return &LeaderboardHandler{svc: svc, trackRecord: trackRecord}
}

func queryLeaderboardType(c *gin.Context) (model.LeaderboardType, bool) {
	typ := model.LeaderboardType(c.Query("leaderboardType"))
	if typ != "" && !typ.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid leaderboardType"})
		return "", false
	}
	return typ, true
}

func (h *LeaderboardHandler) Global(c *gin.Context) {
	start, ok := queryTime(c, "startTime")
	if !ok {
		return
	}
	end, ok := queryTime(c, "endTime")
	if !ok {
		return
	}
	typ, ok := queryLeaderboardType(c)
	if !ok {
		return
	}
	view, err := h.svc.GlobalLeaderboard(c.Request.Context(), middleware.CurrentUser(c), service.GlobalLeaderboardQuery{
		StartTime: start,
		EndTime:   end,
		Type:      typ,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *LeaderboardHandler) Project(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	typ, ok := queryLeaderboardType(c)
	if !ok {
		return
	}
	view, err := h.svc.ProjectLeaderboard(c.Request.Context(), middleware.CurrentUser(c), id, typ, c.Query("leaderboardName"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *LeaderboardHandler) Medals(c *gin.Context) {
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}
	if userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "userId is required"})
		return
	}
	medals, err := h.svc.UserMedals(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, medals)
}

func (h *LeaderboardHandler) MedalContributions(c *gin.Context) {
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}
	if userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "userId is required"})
		return
	}
	projectID, ok := queryUint(c, "projectId")
	if !ok {
		return
	}
	start, ok := queryTime(c, "startTime")
	if !ok {
		return
	}
	end, ok := queryTime(c, "endTime")
	if !ok {
		return
	}
	typ, ok := queryLeaderboardType(c)
	if !ok {
		return
	}
	out, err := h.svc.MedalContributions(c.Request.Context(), middleware.CurrentUser(c), service.MedalContributionQuery{
		UserID:    userID,
		ProjectID: projectID,
		StartTime: start,
		EndTime:   end,
		Type:      typ,
		Name:      c.Query("leaderboardName"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *LeaderboardHandler) TrackRecord(c *gin.Context) {
	out, err := h.trackRecord.SiteTrackRecord(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
