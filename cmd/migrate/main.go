package main

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	"Forecast_Hub/internal/config"
	"Forecast_Hub/internal/migrator"
	"Forecast_Hub/internal/pkg/logger"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/service"
)

func main() {
	score := flag.Int("score", -1, "score resolved questions, 0 for all of them")
	permissions := flag.Bool("permissions", false, "migrate legacy project permissions and default projects")
	pageSize := flag.Int("page-size", migrator.DefaultPageSize, "rows per legacy query page")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := sqldb.Open(cfg.DBDriver, cfg.DSN(), cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		logrus.WithError(err).Fatal("connect database")
	}
	if err = sqldb.AutoMigrate(db); err != nil {
		logrus.WithError(err).Fatal("auto migrate")
	}
	ctx := context.Background()

	if *permissions {
		m := migrator.New(db)
		m.PageSize = *pageSize
		if err := m.MigratePermissions(ctx); err != nil {
			logrus.WithError(err).Fatal("migrate permissions")
		}
	}

	if *score >= 0 {
		n, err := service.NewScoringService(db).ScoreQuestions(ctx, *score)
		if err != nil {
			logrus.WithError(err).Fatal("score questions")
		}
		logrus.WithField("scored", n).Info("questions scored")
	}

	if !*permissions && *score < 0 {
		flag.Usage()
	}
}
