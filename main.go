package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bookings/internal/app"
	"bookings/internal/config"
)

func main() {
	log.Init(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	db, err := sqlx.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()

	watermillLogger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(watermillLogger, cfg, redisClient, db)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize app")
	}

	err = a.Run(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("app terminated with error")
	}
}
