package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., CHAT_ENDPOINT_MODEL).
type EnvConfig struct {
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir defaults to ~/.damkit.
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL defaults to sqlite:///{data_dir}/damkit.db.
	DBURL string `envconfig:"DB_URL"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIKeys is a comma-separated list of static keys accepted in place of a JWT.
	APIKeys string `envconfig:"API_KEYS"`

	WorkerPollSeconds float64 `envconfig:"WORKER_POLL_SECONDS" default:"1"`

	// GoogleAPIKey is used by any Gemini endpoint that has no key of its own.
	GoogleAPIKey string `envconfig:"GOOGLE_API_KEY"`

	ChatEndpoint      EndpointEnv `envconfig:"CHAT_ENDPOINT"`
	VisionEndpoint    EndpointEnv `envconfig:"VISION_ENDPOINT"`
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	Storage StorageEnv `envconfig:"STORAGE"`

	// JWTSecret verifies bearer tokens. Env: JWT_SECRET
	JWTSecret string `envconfig:"JWT_SECRET"`
	// JWTIssuer, when set, must match the token "iss" claim.
	JWTIssuer string `envconfig:"JWT_ISSUER"`
	// TokenTTLHours bounds tokens minted by "damkit token".
	TokenTTLHours float64 `envconfig:"TOKEN_TTL_HOURS" default:"24"`

	// RedisURL switches chat sessions to Redis, e.g. redis://localhost:6379/0.
	RedisURL          string  `envconfig:"REDIS_URL"`
	SessionTTLSeconds float64 `envconfig:"SESSION_TTL_SECONDS" default:"86400"`

	PeriodicBackfill PeriodicBackfillEnv `envconfig:"PERIODIC_BACKFILL"`

	// HTTPCacheDir caches provider POST responses on disk (development aid).
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`

	// SkipProviderValidation starts the server without vision or embedding
	// models; uploads are then not embedded.
	SkipProviderValidation bool `envconfig:"SKIP_PROVIDER_VALIDATION" default:"false"`

	// CORSAllowedOrigins is a comma-separated origin list.
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// Provider is openai (any OpenAI-compatible gateway) or gemini.
	Provider      string  `envconfig:"PROVIDER" default:"openai"`
	BaseURL       string  `envconfig:"BASE_URL"`
	Model         string  `envconfig:"MODEL"`
	APIKey        string  `envconfig:"API_KEY"`
	Timeout       float64 `envconfig:"TIMEOUT" default:"60"`
	MaxRetries    int     `envconfig:"MAX_RETRIES" default:"0"`
	InitialDelay  float64 `envconfig:"INITIAL_DELAY" default:"1.0"`
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
	MaxTokens     int     `envconfig:"MAX_TOKENS" default:"2048"`
}

// StorageEnv holds environment configuration for object storage.
type StorageEnv struct {
	// Backend is local, minio or s3.
	Backend    string  `envconfig:"BACKEND" default:"local"`
	LocalDir   string  `envconfig:"LOCAL_DIR"`
	PublicURL  string  `envconfig:"PUBLIC_URL"`
	SigningKey string  `envconfig:"SIGNING_KEY"`
	Endpoint   string  `envconfig:"ENDPOINT"`
	Region     string  `envconfig:"REGION" default:"us-east-1"`
	Bucket     string  `envconfig:"BUCKET" default:"assets"`
	AccessKey  string  `envconfig:"ACCESS_KEY"`
	SecretKey  string  `envconfig:"SECRET_KEY"`
	UseSSL     bool    `envconfig:"USE_SSL" default:"true"`
	SignedTTL  float64 `envconfig:"SIGNED_URL_TTL_SECONDS" default:"3600"`
	MaxUpload  int64   `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`
}

// PeriodicBackfillEnv holds environment configuration for periodic embedding backfill.
type PeriodicBackfillEnv struct {
	Enabled         bool    `envconfig:"ENABLED" default:"false"`
	IntervalSeconds float64 `envconfig:"INTERVAL_SECONDS" default:"1800"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Normalize fills derived values: Gemini endpoints without a key inherit
// GOOGLE_API_KEY, and an unset vision endpoint borrows the chat endpoint's
// connection settings.
func (e EnvConfig) Normalize() EnvConfig {
	fill := func(ep EndpointEnv) EndpointEnv {
		if strings.EqualFold(ep.Provider, string(ProviderGemini)) && ep.APIKey == "" {
			ep.APIKey = e.GoogleAPIKey
		}
		return ep
	}
	e.ChatEndpoint = fill(e.ChatEndpoint)
	e.VisionEndpoint = fill(e.VisionEndpoint)
	e.EmbeddingEndpoint = fill(e.EmbeddingEndpoint)
	return e
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.APIKeys != "" {
		cfg = applyOption(cfg, WithAPIKeys(ParseAPIKeys(e.APIKeys)))
	}
	cfg = applyOption(cfg, WithWorkerPollPeriod(seconds(e.WorkerPollSeconds)))

	if e.ChatEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithChatEndpoint(e.ChatEndpoint.ToEndpoint()))
	}
	if e.VisionEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithVisionEndpoint(e.VisionEndpoint.ToEndpoint()))
	}
	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}

	cfg = applyOption(cfg, WithStorage(e.Storage.ToStorageConfig()))
	cfg = applyOption(cfg, WithAuth(e.JWTSecret, e.JWTIssuer, seconds(e.TokenTTLHours*3600)))

	if e.RedisURL != "" {
		cfg = applyOption(cfg, WithRedisURL(e.RedisURL))
	}
	cfg = applyOption(cfg, WithSessionTTL(seconds(e.SessionTTLSeconds)))

	cfg = applyOption(cfg, WithPeriodicBackfill(NewPeriodicBackfillConfig().
		WithEnabled(e.PeriodicBackfill.Enabled).
		WithInterval(seconds(e.PeriodicBackfill.IntervalSeconds))))

	if e.HTTPCacheDir != "" {
		cfg = applyOption(cfg, WithHTTPCacheDir(e.HTTPCacheDir))
	}
	cfg = applyOption(cfg, WithSkipProviderValidation(e.SkipProviderValidation))
	if origins := ParseAPIKeys(e.CORSAllowedOrigins); len(origins) > 0 {
		cfg = applyOption(cfg, WithCORSOrigins(origins))
	}

	return cfg
}

func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithProvider(parseProvider(e.Provider)),
		WithModel(e.Model),
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
		WithMaxTokens(e.MaxTokens),
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	return NewEndpointWithOptions(opts...)
}

// ToStorageConfig converts StorageEnv to StorageConfig.
func (s StorageEnv) ToStorageConfig() StorageConfig {
	cfg := NewStorageConfig()
	cfg.backend = parseStorageBackend(s.Backend)
	cfg.localDir = s.LocalDir
	cfg.publicURL = strings.TrimRight(s.PublicURL, "/")
	cfg.signingKey = s.SigningKey
	cfg.endpoint = s.Endpoint
	if s.Region != "" {
		cfg.region = s.Region
	}
	if s.Bucket != "" {
		cfg.bucket = s.Bucket
	}
	cfg.accessKey = s.AccessKey
	cfg.secretKey = s.SecretKey
	cfg.useSSL = s.UseSSL
	if d := seconds(s.SignedTTL); d > 0 {
		cfg.signedTTL = d
	}
	if s.MaxUpload > 0 {
		cfg.maxUpload = s.MaxUpload
	}
	return cfg
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func parseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, "json") {
		return LogFormatJSON
	}
	return LogFormatPretty
}

func parseProvider(s string) Provider {
	if strings.EqualFold(s, string(ProviderGemini)) {
		return ProviderGemini
	}
	return ProviderOpenAI
}

func parseStorageBackend(s string) StorageBackend {
	switch strings.ToLower(s) {
	case string(StorageMinio):
		return StorageMinio
	case string(StorageS3):
		return StorageS3
	default:
		return StorageLocal
	}
}
