package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"barberline/pkg/client"
	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/sealer"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StoreBackend string

	Port          string
	PublicBaseURL string

	GeminiAPIKey     string
	GeminiChatModel  string
	GeminiEmbedModel string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	CartesiaAPIKey  string
	CartesiaBaseURL string
	CartesiaVoiceID string
	CartesiaModelID string
	CartesiaVersion string

	AudioDir        string
	AudioRetention  time.Duration
	AudioSealingKey string

	ShopTimezone string
	Location     *time.Location
	CatalogPath  string

	HoldTTL                time.Duration
	SilenceTurnLimit       int
	LookaheadDays          int
	SweepInterval          time.Duration
	RetrievalTopK          int
	RetrievalMinSimilarity float64
	UpstreamTimeout        time.Duration
	UpstreamRetryBackoff   time.Duration
	UpstreamConcurrency    int
	SessionIdleTTL         time.Duration
	MaxDeclines            int

	EventsEnabled bool
	CallLogPath   string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment (after any .env file) and exits through
// Log.Fatal when the result does not validate.
func Load(serviceName string) *Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		StoreBackend: strings.ToLower(getEnvStr(EnvStoreBackend, DefaultStoreBackend)),

		Port:          getEnvStr(EnvPort, DefaultPort),
		PublicBaseURL: strings.TrimRight(getEnvStr(EnvPublicBaseURL, DefaultPublicBaseURL), "/"),

		GeminiAPIKey:     getEnvStr(EnvGeminiAPIKey, ""),
		GeminiChatModel:  getEnvStr(EnvGeminiChatModel, DefaultGeminiChatModel),
		GeminiEmbedModel: getEnvStr(EnvGeminiEmbedModel, DefaultGeminiEmbedModel),

		TwilioAccountSID:  getEnvStr(EnvTwilioAccountSID, ""),
		TwilioAuthToken:   getEnvStr(EnvTwilioAuthToken, ""),
		TwilioPhoneNumber: getEnvStr(EnvTwilioPhoneNumber, ""),

		CartesiaAPIKey:  getEnvStr(EnvCartesiaAPIKey, ""),
		CartesiaBaseURL: getEnvStr(EnvCartesiaBaseURL, DefaultCartesiaBaseURL),
		CartesiaVoiceID: getEnvStr(EnvCartesiaVoiceID, DefaultCartesiaVoiceID),
		CartesiaModelID: getEnvStr(EnvCartesiaModelID, DefaultCartesiaModelID),
		CartesiaVersion: getEnvStr(EnvCartesiaVersion, DefaultCartesiaVersion),

		AudioDir:        getEnvStr(EnvAudioDir, DefaultAudioDir),
		AudioRetention:  getEnvDuration(EnvAudioRetention, DefaultAudioRetention),
		AudioSealingKey: getEnvStr(EnvAudioSealingKey, ""),

		ShopTimezone: getEnvStr(EnvShopTimezone, DefaultShopTimezone),
		CatalogPath:  getEnvStr(EnvCatalogPath, ""),

		HoldTTL:                getEnvDuration(EnvHoldTTL, DefaultHoldTTL),
		SilenceTurnLimit:       getEnvNum(EnvSilenceTurnLimit, DefaultSilenceTurnLimit),
		LookaheadDays:          getEnvNum(EnvLookaheadDays, DefaultLookaheadDays),
		SweepInterval:          getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		RetrievalTopK:          getEnvNum(EnvRetrievalTopK, DefaultRetrievalTopK),
		RetrievalMinSimilarity: getEnvFloat(EnvRetrievalMinSimilarity, DefaultRetrievalMinSimilarity),
		UpstreamTimeout:        getEnvDuration(EnvUpstreamTimeout, DefaultUpstreamTimeout),
		UpstreamRetryBackoff:   getEnvDuration(EnvUpstreamRetryBackoff, DefaultUpstreamRetryBackoff),
		UpstreamConcurrency:    getEnvNum(EnvUpstreamConcurrency, DefaultUpstreamConcurrency),
		SessionIdleTTL:         getEnvDuration(EnvSessionIdleTTL, DefaultSessionIdleTTL),
		MaxDeclines:            getEnvNum(EnvMaxDeclines, DefaultMaxDeclines),

		EventsEnabled: getEnvBool(EnvEventsEnabled, DefaultEventsEnabled),
		CallLogPath:   getEnvStr(EnvCallLogPath, DefaultCallLogPath),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Refusing to start", "error", apperrors.FatalConfiguration(err.Error(), nil))
	}
	if cfg.AudioSealingKey == "" {
		key, err := sealer.GenerateKey()
		if err != nil {
			cfg.Log.Fatal("Refusing to start", "error", apperrors.FatalConfiguration("cannot generate audio sealing key", err))
		}
		cfg.AudioSealingKey = key
		cfg.Log.Warn("AUDIO_SEALING_KEY not set, audio links will not survive a restart")
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case StoreBackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreBackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of [mongo, memory], got: %s", cfg.StoreBackend))
	}

	if u, err := url.Parse(cfg.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("PublicBaseURL must be an absolute URL, got: %s", cfg.PublicBaseURL))
	}

	if loc, err := time.LoadLocation(cfg.ShopTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("ShopTimezone is not a known IANA zone, got: %s", cfg.ShopTimezone))
	} else {
		cfg.Location = loc
	}

	if cfg.CatalogPath != "" {
		if _, err := os.Stat(cfg.CatalogPath); err != nil {
			errors = append(errors, fmt.Sprintf("CatalogPath is not readable: %s", cfg.CatalogPath))
		}
	}

	if cfg.AudioSealingKey != "" {
		if key, err := base64.StdEncoding.DecodeString(cfg.AudioSealingKey); err != nil || len(key) != 32 {
			errors = append(errors, "AudioSealingKey must be 32 bytes, base64 encoded")
		}
	}

	if cfg.HoldTTL <= 0 {
		errors = append(errors, fmt.Sprintf("HoldTTL must be positive, got: %s", cfg.HoldTTL))
	}
	if cfg.SilenceTurnLimit <= 0 {
		errors = append(errors, fmt.Sprintf("SilenceTurnLimit must be positive, got: %d", cfg.SilenceTurnLimit))
	}
	if cfg.LookaheadDays <= 0 {
		errors = append(errors, fmt.Sprintf("LookaheadDays must be positive, got: %d", cfg.LookaheadDays))
	}
	if cfg.SweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("SweepInterval must be at least 1s, got: %s", cfg.SweepInterval))
	}
	if cfg.RetrievalTopK <= 0 {
		errors = append(errors, fmt.Sprintf("RetrievalTopK must be positive, got: %d", cfg.RetrievalTopK))
	}
	if cfg.RetrievalMinSimilarity < -1 || cfg.RetrievalMinSimilarity > 1 {
		errors = append(errors, fmt.Sprintf("RetrievalMinSimilarity must be within [-1, 1], got: %g", cfg.RetrievalMinSimilarity))
	}
	if cfg.UpstreamTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("UpstreamTimeout must be positive, got: %s", cfg.UpstreamTimeout))
	}
	if cfg.UpstreamRetryBackoff < 0 {
		errors = append(errors, fmt.Sprintf("UpstreamRetryBackoff cannot be negative, got: %s", cfg.UpstreamRetryBackoff))
	}
	if cfg.UpstreamConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("UpstreamConcurrency must be positive, got: %d", cfg.UpstreamConcurrency))
	}
	if cfg.SessionIdleTTL <= 0 {
		errors = append(errors, fmt.Sprintf("SessionIdleTTL must be positive, got: %s", cfg.SessionIdleTTL))
	}
	if cfg.MaxDeclines <= 0 {
		errors = append(errors, fmt.Sprintf("MaxDeclines must be positive, got: %d", cfg.MaxDeclines))
	}
	if cfg.AudioRetention <= 0 {
		errors = append(errors, fmt.Sprintf("AudioRetention must be positive, got: %s", cfg.AudioRetention))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_backend", cfg.StoreBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"port", cfg.Port,
		"public_base_url", cfg.PublicBaseURL,
		"gemini_api_key_set", cfg.GeminiAPIKey != "",
		"gemini_chat_model", cfg.GeminiChatModel,
		"gemini_embed_model", cfg.GeminiEmbedModel,
		"twilio_auth_token_set", cfg.TwilioAuthToken != "",
		"twilio_phone_number", logger.MaskPhone(cfg.TwilioPhoneNumber),
		"cartesia_api_key_set", cfg.CartesiaAPIKey != "",
		"audio_dir", cfg.AudioDir,
		"audio_retention", cfg.AudioRetention,
		"shop_timezone", cfg.ShopTimezone,
		"catalog_path", cfg.CatalogPath,
		"hold_ttl", cfg.HoldTTL,
		"silence_turn_limit", cfg.SilenceTurnLimit,
		"lookahead_days", cfg.LookaheadDays,
		"sweep_interval", cfg.SweepInterval,
		"retrieval_top_k", cfg.RetrievalTopK,
		"retrieval_min_similarity", cfg.RetrievalMinSimilarity,
		"upstream_timeout", cfg.UpstreamTimeout,
		"upstream_retry_backoff", cfg.UpstreamRetryBackoff,
		"upstream_concurrency", cfg.UpstreamConcurrency,
		"session_idle_ttl", cfg.SessionIdleTTL,
		"max_declines", cfg.MaxDeclines,
		"events_enabled", cfg.EventsEnabled,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

// SetMongo connects the shared Mongo client; no-op for the memory backend.
func (cfg *Config) SetMongo() {
	if cfg.StoreBackend != StoreBackendMongo {
		return
	}
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the shared Redis client when REDIS_ADDR is set.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// SetGemini builds the model client. Only services that build the knowledge
// index call it, so the key is required here rather than in Validate.
func (cfg *Config) SetGemini() {
	if cfg.GeminiAPIKey == "" {
		cfg.Log.Fatal("Refusing to start", "error", apperrors.FatalConfiguration("GEMINI_API_KEY is required to build the knowledge index", nil))
	}
	cfg.Client.SetGemini(cfg.Log, cfg.GeminiAPIKey)
}

// SetTwilio builds the REST client used for outbound SMS when credentials exist.
func (cfg *Config) SetTwilio() {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return
	}
	cfg.Client.SetTwilio(cfg.Log, cfg.TwilioAccountSID, cfg.TwilioAuthToken)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}


func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
