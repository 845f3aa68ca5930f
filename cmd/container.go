// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, HTTP client) and
// wires the garden module together. This is the only place that knows about
// every concrete implementation.
package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/verdant/pkg/config"
	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/garden/gardenapi"
	"github.com/Abraxas-365/verdant/pkg/garden/gardeninfra"
	"github.com/Abraxas-365/verdant/pkg/garden/gardenremote"
	"github.com/Abraxas-365/verdant/pkg/garden/gardensrv"
	"github.com/Abraxas-365/verdant/pkg/logx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the composed garden module.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB    *sqlx.DB
	Redis *redis.Client

	// Garden module
	Store   garden.PlantStore
	Remote  garden.PlantService
	Service *gardensrv.Service

	// HTTP surface
	Handlers       *gardenapi.Handlers
	AuthMiddleware *gardenapi.TokenMiddleware
}

// NewContainer constructs the entire dependency graph.
// Order matters: infra → store/remote → service → handlers.
func NewContainer(cfg *config.Config) *Container {
	logx.Info("initializing application container")

	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initGarden()

	logx.Info("application container initialized")
	return c
}

func (c *Container) initInfrastructure() {
	db, err := sqlx.Connect("postgres", c.Config.Postgres.DSN())
	if err != nil {
		logx.WithError(err).Fatal("failed to connect to postgres")
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	c.DB = db
	logx.Info("postgres connected")

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Redis only backs the refresh cooldown; the policy fails open, so
		// a missing Redis degrades to always-permit instead of aborting.
		logx.WithError(err).Warn("redis unreachable, refresh cooldown degraded")
	}
	c.Redis = rdb
}

func (c *Container) initGarden() {
	c.Store = gardeninfra.NewPostgresStore(c.DB)
	c.Remote = gardenremote.NewClient(
		c.Config.Remote.BaseURL,
		gardenremote.WithTimeout(c.Config.Remote.Timeout),
	)

	opts := []gardensrv.Option{}
	if c.Config.Refresh.Cooldown > 0 {
		opts = append(opts, gardensrv.WithRefreshPolicy(
			gardeninfra.NewRedisRefreshPolicy(c.Redis, c.Config.Refresh.Cooldown),
		))
	}
	c.Service = gardensrv.Default(c.Store, c.Remote, opts...)

	c.Handlers = gardenapi.NewHandlers(c.Service)
	c.AuthMiddleware = gardenapi.NewTokenMiddleware(c.Config.Server.JWTSecret)
}

// Cleanup releases infrastructure handles.
func (c *Container) Cleanup() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.WithError(err).Warn("failed to close postgres")
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.WithError(err).Warn("failed to close redis")
		}
	}
}
