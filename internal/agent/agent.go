// Package agent assembles the booking agent from configuration: catalog,
// availability store, knowledge index, extractor, renderer and the dialogue
// machine on top of them.
package agent

import (
	"context"
	"errors"
	"fmt"

	"barberline/internal/availability/repository"
	"barberline/internal/availability/service"
	"barberline/internal/availability/validator"
	"barberline/internal/catalog"
	"barberline/internal/dialogue"
	"barberline/internal/dialogue/sessionstore"
	"barberline/internal/extractor"
	"barberline/internal/knowledge"
	"barberline/internal/llm"
	"barberline/internal/renderer"
	"barberline/internal/upstream"
	"barberline/pkg/config"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/events"
	kafka_config "barberline/pkg/kafka/config"
	"barberline/pkg/sealer"
)

const (
	sessionExpirySpec  = "@every 1m"
	audioRetentionSpec = "@every 10m"
	indexRetrySpec     = "@every 1m"
)

// Options picks the backends. Memory forces in-process stores whatever the
// configuration says, which is what the console driver wants.
type Options struct {
	Source     string
	Memory     bool
	Synthesize bool
}

type Agent struct {
	Catalog      *catalog.Catalog
	Availability service.AvailabilityService
	Knowledge    *knowledge.Retriever
	Renderer     *renderer.Renderer
	Machine      *dialogue.Machine
	Sweeper      *service.Sweeper
	Publisher    events.Publisher
}

// Build wires every component. A knowledge index that cannot be built yet is
// not fatal: the sweeper retries it and turns fail with FATAL_CONFIGURATION
// until it is ready.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Agent, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, apperrors.FatalConfiguration("cannot load catalog", err)
	}
	availabilityValidator := validator.NewAvailabilityValidator(cfg.Log)
	if err := availabilityValidator.ValidateCatalog(cat); err != nil {
		return nil, apperrors.FatalConfiguration("catalog is invalid", err)
	}

	publisher, err := newPublisher(cfg, opts)
	if err != nil {
		return nil, err
	}

	limiter := upstream.NewLimiter(cfg.UpstreamConcurrency)
	policy := upstream.Policy{Timeout: cfg.UpstreamTimeout, Backoff: cfg.UpstreamRetryBackoff}
	llmGuard := upstream.NewGuard(upstream.LLM, policy, limiter, cfg.Log)
	embedGuard := upstream.NewGuard(upstream.Embedding, policy, limiter, cfg.Log)
	synthGuard := upstream.NewGuard(upstream.Synthesis, policy, limiter, cfg.Log)

	gemini := llm.NewGemini(cfg.Client.Gemini, cfg.GeminiChatModel, cfg.GeminiEmbedModel)

	var store repository.Store
	if opts.Memory || cfg.StoreBackend == config.StoreBackendMemory {
		store = repository.NewMemoryStore()
	} else {
		store = repository.NewMongoStore(cfg)
	}
	availability := service.NewAvailabilityService(store, cat, availabilityValidator, publisher, cfg)
	added, err := availability.ExtendGrid(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lay out the slot grid: %w", err)
	}
	cfg.Log.Info("Slot grid ready", "new_blocks", added, "lookahead_days", cfg.LookaheadDays)

	retriever := knowledge.NewRetriever(gemini, gemini, embedGuard, llmGuard, knowledge.Config{
		TopK:          cfg.RetrievalTopK,
		MinSimilarity: cfg.RetrievalMinSimilarity,
	}, cfg.Log)
	docs := cat.Documents()
	if err := retriever.BuildIndex(ctx, docs); err != nil {
		cfg.Log.Error("Knowledge index not built, will retry", "error", err)
	}

	seal, err := sealer.New(cfg.AudioSealingKey)
	if err != nil {
		return nil, apperrors.FatalConfiguration("invalid audio sealing key", err)
	}
	var synth renderer.Synthesizer
	if opts.Synthesize && cfg.CartesiaAPIKey != "" {
		synth = renderer.NewCartesia(renderer.CartesiaConfig{
			BaseURL: cfg.CartesiaBaseURL,
			APIKey:  cfg.CartesiaAPIKey,
			VoiceID: cfg.CartesiaVoiceID,
			ModelID: cfg.CartesiaModelID,
			Version: cfg.CartesiaVersion,
		})
	}
	audioCache := renderer.NewMemoryCache()
	if !opts.Memory && cfg.Client.Redis != nil {
		audioCache = renderer.NewRedisCache(cfg.Client.Redis, cfg.AudioRetention)
	}
	rend := renderer.New(synth, synthGuard, audioCache, seal, renderer.Config{
		Dir:       cfg.AudioDir,
		BaseURL:   cfg.PublicBaseURL,
		Retention: cfg.AudioRetention,
	}, cfg.Log)

	sessionStore := sessionstore.NewMemoryStore(sessionstore.DefaultRetention)
	if !opts.Memory && cfg.Client.Redis != nil {
		sessionStore = sessionstore.NewRedisStore(cfg.Client.Redis, sessionstore.DefaultRetention)
	}
	sessions := dialogue.NewSessions(sessionStore, cfg.SessionIdleTTL, cfg.Log)

	machine := dialogue.NewMachine(dialogue.Deps{
		Availability: availability,
		Knowledge:    retriever,
		Extractor:    extractor.NewExtractor(cat, gemini, llmGuard, cfg.Location, cfg.Log),
		Renderer:     rend,
		Sessions:     sessions,
		Publisher:    publisher,
		Catalog:      cat,
	}, cfg)

	sweeper, err := service.NewSweeper(availability, cfg.SweepInterval, cfg.Log)
	if err != nil {
		return nil, err
	}
	jobs := []struct {
		spec, name string
		fn         func(context.Context) error
	}{
		{sessionExpirySpec, "session-expiry", machine.ExpireIdle},
		{audioRetentionSpec, "audio-retention", rend.Prune},
		{indexRetrySpec, "knowledge-index", func(ctx context.Context) error {
			if retriever.Ready() {
				return nil
			}
			return retriever.BuildIndex(ctx, docs)
		}},
	}
	for _, job := range jobs {
		if err := sweeper.AddJob(job.spec, job.name, job.fn); err != nil {
			return nil, err
		}
	}

	return &Agent{
		Catalog:      cat,
		Availability: availability,
		Knowledge:    retriever,
		Renderer:     rend,
		Machine:      machine,
		Sweeper:      sweeper,
		Publisher:    publisher,
	}, nil
}

func newPublisher(cfg *config.Config, opts Options) (events.Publisher, error) {
	if opts.Memory || !cfg.EventsEnabled {
		return events.NopPublisher{}, nil
	}
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, apperrors.FatalConfiguration("invalid Kafka configuration", err)
	}
	publisher, err := events.NewKafkaPublisher(kafkaCfg, opts.Source, cfg.Log)
	if err != nil {
		return nil, err
	}
	cfg.Log.Info("Publishing domain events", "brokers", kafkaCfg.Brokers, "topic", kafkaCfg.EventsTopic)
	return publisher, nil
}

// KnowledgeReady is a readiness check for the knowledge index.
func (a *Agent) KnowledgeReady(context.Context) error {
	if !a.Knowledge.Ready() {
		return errors.New("knowledge index not built")
	}
	return nil
}

func (a *Agent) Close() error {
	return a.Publisher.Close()
}
