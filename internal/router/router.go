package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Forecast_Hub/internal/handler"
	"Forecast_Hub/internal/middleware"
	"Forecast_Hub/internal/service"
)

func InitRouter(svc *service.Services, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: !allowsAll(corsOrigins),
	}))

	user := handler.NewUserHandler(svc.Users)
	project := handler.NewProjectHandler(svc.Projects)
	post := handler.NewPostHandler(svc.Posts, svc.Forecasts)
	comment := handler.NewCommentHandler(svc.Comments)
	leaderboard := handler.NewLeaderboardHandler(svc.Leaderboards, svc.TrackRecord)
	notification := handler.NewNotificationHandler(svc.Notifications)

	auth := middleware.AuthMiddleware(svc.Users)
	optional := middleware.OptionalAuth(svc.Users)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// auth
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", user.Register)
		authGroup.POST("/login", user.Login)
		authGroup.POST("/refresh", user.Refresh)
		authGroup.POST("/logout", auth, user.Logout)
		authGroup.POST("/change-password", auth, user.ChangePassword)
	}

	api.GET("/users/me", auth, user.Me)
	api.GET("/users/:id", optional, user.Get)

	// projects
	projectGroup := api.Group("/projects")
	{
		projectGroup.GET("", optional, project.List)
		projectGroup.GET("/:id", optional, project.Get)
		projectGroup.POST("", auth, project.Create)
		projectGroup.PUT("/:id", auth, project.Update)
		projectGroup.GET("/:id/members", auth, project.Members)
		projectGroup.POST("/:id/members", auth, project.InviteMember)
		projectGroup.PATCH("/:id/members/:userId", auth, project.UpdateMember)
		projectGroup.DELETE("/:id/members/:userId", auth, project.RemoveMember)
		projectGroup.POST("/:id/subscribe", auth, project.Subscribe)
		projectGroup.DELETE("/:id/subscribe", auth, project.Unsubscribe)
	}

	// posts
	postGroup := api.Group("/posts")
	{
		postGroup.GET("", optional, post.List)
		postGroup.GET("/:id", optional, post.Get)
		postGroup.POST("", auth, post.Create)
		postGroup.POST("/:id/approve", auth, post.Approve)
		postGroup.DELETE("/:id", auth, post.Delete)
		postGroup.GET("/:id/similar", optional, post.Similar)
		postGroup.GET("/:id/comments", optional, comment.ListForPost)
		postGroup.POST("/:id/comments", auth, comment.CreateOnPost)
	}

	// questions
	questionGroup := api.Group("/questions")
	{
		questionGroup.POST("/:id/forecast", auth, post.CreateForecast)
		questionGroup.GET("/:id/forecasts/me", auth, post.MyForecasts)
		questionGroup.GET("/:id/aggregates", optional, post.Aggregates)
		questionGroup.POST("/:id/resolve", auth, post.Resolve)
	}

	// comments
	commentGroup := api.Group("/comments", auth)
	{
		commentGroup.POST("", comment.Create)
		commentGroup.PATCH("/:id", comment.Edit)
		commentGroup.DELETE("/:id", comment.Delete)
	}

	// leaderboards
	api.GET("/leaderboards/global", optional, leaderboard.Global)
	api.GET("/leaderboards/project/:id", optional, leaderboard.Project)
	api.GET("/medals", optional, leaderboard.Medals)
	api.GET("/medal_contributions", optional, leaderboard.MedalContributions)
	api.GET("/metaculus_track_record", optional, leaderboard.TrackRecord)

	// notifications
	notificationGroup := api.Group("/notifications", auth)
	{
		notificationGroup.GET("", notification.List)
		notificationGroup.POST("/mark-read", notification.MarkRead)
	}

	return r
}

func allowsAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
