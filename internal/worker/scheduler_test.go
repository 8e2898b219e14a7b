package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/service"
	"Forecast_Hub/internal/testutil"
)

func TestNewScheduler(t *testing.T) {
	db := testutil.NewDB(t)
	svc := service.NewServices(db, service.Options{})

	_, err := NewScheduler(context.Background(), svc.Leaderboards, "not a cron spec")
	assert.Error(t, err)

	c, err := NewScheduler(context.Background(), svc.Leaderboards, "*/10 * * * *")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}

func TestEnsureGlobalLeaderboardsCoversNextYear(t *testing.T) {
	db := testutil.NewDB(t)
	site := testutil.CreateProject(t, db, &model.Project{Type: model.ProjectSiteMain})
	svc := service.NewServices(db, service.Options{SiteMainID: site.ID})

	now := time.Date(2026, time.December, 30, 12, 0, 0, 0, time.UTC)
	ensureGlobalLeaderboards(context.Background(), svc.Leaderboards, now)
	ensureGlobalLeaderboards(context.Background(), svc.Leaderboards, now)

	var names []string
	require.NoError(t, db.Model(&model.Leaderboard{}).Order("id ASC").Pluck("name", &names).Error)
	assert.Equal(t, []string{
		"2026 peer_global",
		"2026 baseline_global",
		"2027 peer_global",
		"2027 baseline_global",
	}, names)
}
