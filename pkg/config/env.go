package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvStoreBackend = "STORE_BACKEND"

	EnvPort          = "PORT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvPublicBaseURL = "PUBLIC_BASE_URL"

	EnvGeminiAPIKey     = "GEMINI_API_KEY"
	EnvGeminiChatModel  = "GEMINI_CHAT_MODEL"
	EnvGeminiEmbedModel = "GEMINI_EMBED_MODEL"

	EnvTwilioAccountSID  = "TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken   = "TWILIO_AUTH_TOKEN"
	EnvTwilioPhoneNumber = "TWILIO_PHONE_NUMBER"

	EnvCartesiaAPIKey  = "CARTESIA_API_KEY"
	EnvCartesiaBaseURL = "CARTESIA_BASE_URL"
	EnvCartesiaVoiceID = "CARTESIA_VOICE_ID"
	EnvCartesiaModelID = "CARTESIA_MODEL_ID"
	EnvCartesiaVersion = "CARTESIA_VERSION"

	EnvAudioDir        = "AUDIO_DIR"
	EnvAudioRetention  = "AUDIO_RETENTION"
	EnvAudioSealingKey = "AUDIO_SEALING_KEY"

	EnvShopTimezone = "SHOP_TIMEZONE"
	EnvCatalogPath  = "CATALOG_PATH"

	EnvHoldTTL                = "HOLD_TTL"
	EnvSilenceTurnLimit       = "SILENCE_TURN_LIMIT"
	EnvLookaheadDays          = "LOOKAHEAD_DAYS"
	EnvSweepInterval          = "SWEEP_INTERVAL"
	EnvRetrievalTopK          = "RETRIEVAL_TOP_K"
	EnvRetrievalMinSimilarity = "RETRIEVAL_MIN_SIMILARITY"
	EnvUpstreamTimeout        = "UPSTREAM_TIMEOUT"
	EnvUpstreamRetryBackoff   = "UPSTREAM_RETRY_BACKOFF"
	EnvUpstreamConcurrency    = "UPSTREAM_CONCURRENCY"
	EnvSessionIdleTTL         = "SESSION_IDLE_TTL"
	EnvMaxDeclines            = "MAX_DECLINES"

	EnvEventsEnabled = "EVENTS_ENABLED"
	EnvCallLogPath   = "CALL_LOG_PATH"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
