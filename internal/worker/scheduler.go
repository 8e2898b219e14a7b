package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"Forecast_Hub/internal/service"
)

// NewScheduler registers the periodic leaderboard jobs. The caller starts and stops it.
func NewScheduler(ctx context.Context, leaderboards *service.LeaderboardService, spec string) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(spec, func() {
		n, err := leaderboards.UpdateActive(ctx)
		if err != nil {
			logrus.WithError(err).Error("leaderboard update failed")
			return
		}
		logrus.WithField("updated", n).Info("active leaderboards updated")
	}); err != nil {
		return nil, err
	}

	// the next year's global leaderboards exist before the year starts
	if _, err := c.AddFunc("@daily", func() {
		ensureGlobalLeaderboards(ctx, leaderboards, time.Now().UTC())
	}); err != nil {
		return nil, err
	}
	return c, nil
}

func ensureGlobalLeaderboards(ctx context.Context, leaderboards *service.LeaderboardService, now time.Time) {
	for _, year := range []int{now.Year(), now.Year() + 1} {
		if err := leaderboards.EnsureGlobalLeaderboards(ctx, year); err != nil {
			logrus.WithError(err).WithField("year", year).Error("ensure global leaderboards failed")
		}
	}
}

// Bootstrap runs the jobs once at startup.
func Bootstrap(ctx context.Context, leaderboards *service.LeaderboardService) {
	ensureGlobalLeaderboards(ctx, leaderboards, time.Now().UTC())
}
