// Command server runs the access-management API: permission and plan
// catalogs, user subscriptions, and quota-metered demo endpoints, backed by
// MongoDB with Redis holding refresh-token state.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/planmeter/planmeter/handler"
	"github.com/planmeter/planmeter/pkg/config"
	"github.com/planmeter/planmeter/pkg/httpserver"
	"github.com/planmeter/planmeter/pkg/logger"
	"github.com/planmeter/planmeter/pkg/mongo"
	"github.com/planmeter/planmeter/pkg/redis"
	"github.com/planmeter/planmeter/store/mongodb"
	"github.com/planmeter/planmeter/svc/auth"
	"github.com/planmeter/planmeter/svc/catalog"
	"github.com/planmeter/planmeter/svc/subscription"
	"github.com/planmeter/planmeter/svc/usage"
)

type appConfig struct {
	Log   logger.Config
	Mongo mongo.Config
	Redis redis.Config
	HTTP  httpserver.Config
	Auth  auth.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(cfg.Log)
	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	db, err := mongo.Database(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	st := mongodb.New(db)
	if err := st.EnsureIndexes(ctx); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	authSvc, err := auth.NewService(cfg.Auth, st, auth.NewRedisTokenStore(redisClient), log)
	if err != nil {
		return err
	}
	catalogSvc := catalog.NewService(st, log)
	subscriptionSvc := subscription.NewService(st, log)
	usageSvc := usage.NewService(st, log)

	h := handler.New(authSvc, catalogSvc, subscriptionSvc, usageSvc, log)
	return httpserver.New(cfg.HTTP, log).Run(ctx, h.Routes())
}
