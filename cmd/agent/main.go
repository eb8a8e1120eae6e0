package main

import (
	"context"

	"barberline/internal/agent"
	"barberline/internal/availability/handler"
	"barberline/internal/telephony"
	"barberline/pkg/app"
	"barberline/pkg/config"
	"barberline/pkg/contracts"
	"barberline/pkg/middleware"
)

const ServiceName = "agent"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	cfg.SetGemini()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting voice booking agent")
	a, err := agent.Build(context.Background(), cfg, agent.Options{Source: ServiceName, Synthesize: true})
	if err != nil {
		cfg.Log.Fatal("Failed to assemble agent", "error", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()
	a.Sweeper.Start()

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, app.Options{
		Handlers: []contracts.Handler{
			telephony.NewHandler(a.Machine, a.Renderer, telephony.Config{}, cfg.Log),
			handler.NewAppointmentHandler(a.Availability, cfg.Log),
		},
		Readiness:        readiness(cfg, a),
		Workers:          []app.Worker{a.Sweeper},
		IdempotencyStore: idempotencyStore(cfg),
		SignedPrefixes:   []string{telephony.TwilioRoutePrefix},
	})
	serverApp.Run()
}

func readiness(cfg *config.Config, a *agent.Agent) map[string]app.ReadinessCheck {
	checks := map[string]app.ReadinessCheck{
		"knowledge": a.KnowledgeReady,
	}
	if mongoClient := cfg.Client.Mongo; mongoClient != nil {
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}
	if redisClient := cfg.Client.Redis; redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}

func idempotencyStore(cfg *config.Config) middleware.IdempotencyStore {
	if cfg.Client.Redis == nil {
		return nil
	}
	return middleware.NewRedisIdempotencyStore(cfg.Client.Redis, cfg.IdempotencyTTL, cfg.Log)
}
