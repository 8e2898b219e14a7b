package service

import (
	"gorm.io/gorm"

	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/repository/redis"
)

// Options carries the optional infrastructure; nil members disable their feature.
type Options struct {
	Tokens     *redis.TokenRepository
	JWT        *pkg.JWTManager
	Mailer     *pkg.Mailer
	Embeddings *pkg.EmbeddingClient
	Cache      *redis.LeaderboardCache
	Lock       *redis.DistLock
	SiteMainID uint64
}

type Services struct {
	Users         *UserService
	Projects      *ProjectService
	Posts         *PostService
	Forecasts     *ForecastService
	Comments      *CommentService
	Scoring       *ScoringService
	Leaderboards  *LeaderboardService
	TrackRecord   *TrackRecordService
	Notifications *NotificationService
}

func NewServices(db *gorm.DB, opts Options) *Services {
	if opts.Tokens == nil {
		opts.Tokens = &redis.TokenRepository{}
	}
	projects := NewProjectService(db, opts.Mailer, opts.SiteMainID)
	scorer := NewScoringService(db)
	leaderboards := NewLeaderboardService(db, projects, opts.Cache, opts.Lock)
	posts := NewPostService(db, projects, scorer, leaderboards, opts.Embeddings)
	return &Services{
		Users:         NewUserService(db, opts.Tokens, opts.JWT),
		Projects:      projects,
		Posts:         posts,
		Forecasts:     NewForecastService(db, posts),
		Comments:      NewCommentService(db, projects, posts),
		Scoring:       scorer,
		Leaderboards:  leaderboards,
		TrackRecord:   NewTrackRecordService(db),
		Notifications: NewNotificationService(db, projects, opts.Mailer),
	}
}
