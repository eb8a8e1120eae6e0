package config

import "time"

const (
	StoreBackendMongo  = "mongo"
	StoreBackendMemory = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "barberline"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = ""
	DefaultRedisDB   = 0

	DefaultStoreBackend = StoreBackendMongo

	DefaultPort          = "8080"
	DefaultLogLevel      = "info"
	DefaultPublicBaseURL = "http://localhost:8080"

	DefaultGeminiChatModel  = "gemini-2.0-flash"
	DefaultGeminiEmbedModel = "text-embedding-004"

	DefaultCartesiaBaseURL = "https://api.cartesia.ai"
	DefaultCartesiaVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
	DefaultCartesiaModelID = "sonic-english"
	DefaultCartesiaVersion = "2024-06-10"

	DefaultAudioDir       = "static/audio"
	DefaultAudioRetention = 24 * time.Hour

	DefaultShopTimezone = "America/New_York"

	DefaultHoldTTL                = 90 * time.Second
	DefaultSilenceTurnLimit       = 3
	DefaultLookaheadDays          = 14
	DefaultSweepInterval          = 15 * time.Second
	DefaultRetrievalTopK          = 4
	DefaultRetrievalMinSimilarity = 0.55
	DefaultUpstreamTimeout        = 6 * time.Second
	DefaultUpstreamRetryBackoff   = 250 * time.Millisecond
	DefaultUpstreamConcurrency    = 8
	DefaultSessionIdleTTL         = 30 * time.Minute
	DefaultMaxDeclines            = 3

	DefaultEventsEnabled = false
	DefaultCallLogPath   = "results.jsonl"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 10 * time.Minute
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
