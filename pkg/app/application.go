package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"barberline/pkg/config"
	"barberline/pkg/contracts"
	"barberline/pkg/metrics"
	"barberline/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// Worker is a background component stopped before the server drains.
type Worker interface {
	Stop(ctx context.Context)
}

type Options struct {
	Handlers         []contracts.Handler
	Readiness        map[string]ReadinessCheck
	Workers          []Worker
	IdempotencyStore middleware.IdempotencyStore
	// SignedPrefixes are the path prefixes that require a Twilio signature
	// when an auth token is configured.
	SignedPrefixes []string
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.PhoneRateLimiter
	workers          []Worker
	healthHandler    http.Handler
	appHttpHandler   http.Handler
}

func NewApplication() *Application {
	return &Application{}
}

func (a *Application) SetApp(cfg *config.Config, opts Options) {
	a.cfg = cfg
	a.workers = opts.Workers
	a.setHealthHandler(cfg, opts.Readiness)
	a.setAppHandler(cfg, opts)
	a.setAppServer()
}

func (a *Application) setHealthHandler(cfg *config.Config, checks map[string]ReadinessCheck) {
	healthRouter := httprouter.New()
	NewHealthHandler(checks, cfg.Log).RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.Recovery(cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery only)")
}

func (a *Application) setAppHandler(cfg *config.Config, opts Options) {
	appRouter := httprouter.New()
	for _, h := range opts.Handlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = opts.IdempotencyStore
	if a.idempotencyStore == nil {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewPhoneRateLimiter(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		middleware.CallerPhoneExtractor,
		cfg.Log,
	)

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, middleware.TwilioIdempotencyHeader)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.PhoneRateLimit(a.rateLimiter)(appHttpHandler)
	if cfg.TwilioAuthToken != "" {
		appHttpHandler = middleware.TwilioSignatureVerification(cfg.TwilioAuthToken, cfg.PublicBaseURL, cfg.Log, opts.SignedPrefixes...)(appHttpHandler)
		cfg.Log.Info("Twilio signature verification enabled", "prefixes", opts.SignedPrefixes)
	} else {
		cfg.Log.Warn("TWILIO_AUTH_TOKEN not set, webhook signatures are not verified")
	}
	appHttpHandler = middleware.ContentTypeValidation(cfg.Log, middleware.ContentTypeJSON, middleware.ContentTypeForm)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// Handler exposes the assembled mux for in-process tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.cfg.Log.Info("Stopping background workers...")
	for _, w := range a.workers {
		w.Stop(ctx)
	}
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
