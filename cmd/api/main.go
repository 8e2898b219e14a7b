package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"Forecast_Hub/internal/config"
	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/pkg/logger"
	"Forecast_Hub/internal/repository/redis"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/router"
	"Forecast_Hub/internal/service"
	"Forecast_Hub/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	db, err := sqldb.Open(cfg.DBDriver, cfg.DSN(), cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		logrus.WithError(err).Fatal("connect database")
	}
	if err = sqldb.AutoMigrate(db); err != nil {
		logrus.WithError(err).Fatal("auto migrate")
	}

	rdb, err := redis.Open(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logrus.WithError(err).Fatal("connect redis")
	}
	if rdb == nil {
		logrus.Warn("REDIS_ADDR not set, running without token store, cache and locks")
	}

	if err = pkg.RegisterValidators(); err != nil {
		logrus.WithError(err).Fatal("register validators")
	}

	svc := service.NewServices(db, service.Options{
		Tokens: &redis.TokenRepository{RDB: rdb},
		JWT:    pkg.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret),
		Mailer: pkg.NewMailer(pkg.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
		Embeddings: pkg.NewEmbeddingClient(cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey, model.EmbeddingDimensions),
		Cache:      redis.NewLeaderboardCache(rdb),
		Lock:       &redis.DistLock{RDB: rdb},
		SiteMainID: cfg.SiteMainProjectID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// outbox delivery
	sender := service.DispatchSender(svc.Notifications)
	if cfg.KafkaEnabled() {
		kcfg := pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroupID}
		producer := pkg.NewKafkaProducer(kcfg)
		defer producer.Close()
		sender = service.KafkaSender(producer)

		consumer := pkg.NewKafkaConsumer(kcfg)
		defer consumer.Close()
		go func() {
			err := consumer.Run(ctx, svc.Notifications.HandleMessage, func(m kafka.Message, err error) {
				logrus.WithFields(logrus.Fields{
					"event_type": pkg.EventType(m),
					"offset":     m.Offset,
				}).WithError(err).Error("handle event")
			})
			if err != nil {
				logrus.WithError(err).Error("kafka consumer stopped")
			}
		}()
	} else {
		logrus.Info("KAFKA_BROKERS not set, dispatching outbox events in process")
	}
	go service.NewOutboxRelayer(db, sender).Run(ctx)

	worker.Bootstrap(ctx, svc.Leaderboards)
	scheduler, err := worker.NewScheduler(ctx, svc.Leaderboards, cfg.LeaderboardCron)
	if err != nil {
		logrus.WithError(err).Fatal("start scheduler")
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router.InitRouter(svc, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("http server shutdown")
	}
	<-scheduler.Stop().Done()
}
