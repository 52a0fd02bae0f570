// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultWorkerPollPeriod      = time.Second
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 0
	DefaultEndpointInitialDelay  = time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointMaxTokens     = 2048
	DefaultSessionTTL            = 24 * time.Hour
	DefaultSignedURLTTL          = time.Hour
	DefaultTokenTTL              = 24 * time.Hour
	DefaultBackfillInterval      = 30 * time.Minute
	DefaultBucket                = "assets"
	DefaultMaxUploadBytes        = 50 << 20
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Provider names the API flavour an endpoint speaks.
type Provider string

// Provider values.
const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// StorageBackend names an object storage implementation.
type StorageBackend string

// StorageBackend values.
const (
	StorageLocal StorageBackend = "local"
	StorageMinio StorageBackend = "minio"
	StorageS3    StorageBackend = "s3"
)

// Endpoint configures an AI service endpoint.
type Endpoint struct {
	provider      Provider
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	maxTokens     int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		provider:      ProviderOpenAI,
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
		maxTokens:     DefaultEndpointMaxTokens,
	}
}

// Provider returns the API flavour.
func (e Endpoint) Provider() Provider { return e.provider }

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the retry count for failed requests. Zero disables retries.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// MaxTokens returns the maximum completion token limit.
func (e Endpoint) MaxTokens() int { return e.maxTokens }

// IsConfigured returns true if the endpoint has a model.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithProvider sets the API flavour.
func WithProvider(p Provider) EndpointOption {
	return func(e *Endpoint) { e.provider = p }
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithMaxTokens sets the maximum completion token limit.
func WithMaxTokens(n int) EndpointOption {
	return func(e *Endpoint) { e.maxTokens = n }
}

// NewEndpointWithOptions creates an Endpoint with options applied over defaults.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// StorageConfig configures object storage.
type StorageConfig struct {
	backend    StorageBackend
	localDir   string
	publicURL  string
	signingKey string
	endpoint   string
	region     string
	bucket     string
	accessKey  string
	secretKey  string
	useSSL     bool
	signedTTL  time.Duration
	maxUpload  int64
}

// NewStorageConfig creates a StorageConfig with defaults.
func NewStorageConfig() StorageConfig {
	return StorageConfig{
		backend:   StorageLocal,
		bucket:    DefaultBucket,
		region:    "us-east-1",
		useSSL:    true,
		signedTTL: DefaultSignedURLTTL,
		maxUpload: DefaultMaxUploadBytes,
	}
}

// Backend returns the storage implementation name.
func (s StorageConfig) Backend() StorageBackend { return s.backend }

// LocalDir returns the root directory for local storage.
func (s StorageConfig) LocalDir() string { return s.localDir }

// PublicURL returns the externally reachable base URL used in local signed URLs.
func (s StorageConfig) PublicURL() string { return s.publicURL }

// SigningKey returns the HMAC key for local signed URLs.
func (s StorageConfig) SigningKey() string { return s.signingKey }

// Endpoint returns the S3-compatible endpoint host or URL.
func (s StorageConfig) Endpoint() string { return s.endpoint }

// Region returns the bucket region.
func (s StorageConfig) Region() string { return s.region }

// Bucket returns the bucket name.
func (s StorageConfig) Bucket() string { return s.bucket }

// AccessKey returns the access key id.
func (s StorageConfig) AccessKey() string { return s.accessKey }

// SecretKey returns the secret access key.
func (s StorageConfig) SecretKey() string { return s.secretKey }

// UseSSL reports whether the endpoint is reached over TLS.
func (s StorageConfig) UseSSL() bool { return s.useSSL }

// SignedURLTTL returns how long signed URLs stay valid.
func (s StorageConfig) SignedURLTTL() time.Duration { return s.signedTTL }

// MaxUploadBytes returns the largest accepted upload.
func (s StorageConfig) MaxUploadBytes() int64 { return s.maxUpload }

// AuthConfig configures bearer-token authentication.
type AuthConfig struct {
	jwtSecret string
	issuer    string
	tokenTTL  time.Duration
}

// JWTSecret returns the HMAC secret used to verify tokens.
func (a AuthConfig) JWTSecret() string { return a.jwtSecret }

// Issuer returns the expected token issuer, empty to skip the check.
func (a AuthConfig) Issuer() string { return a.issuer }

// TokenTTL returns the lifetime of tokens minted by the CLI.
func (a AuthConfig) TokenTTL() time.Duration { return a.tokenTTL }

// IsConfigured reports whether a secret is set.
func (a AuthConfig) IsConfigured() bool { return a.jwtSecret != "" }

// PeriodicBackfillConfig configures the background embedding backfill.
type PeriodicBackfillConfig struct {
	enabled  bool
	interval time.Duration
}

// NewPeriodicBackfillConfig creates a disabled config with the default interval.
func NewPeriodicBackfillConfig() PeriodicBackfillConfig {
	return PeriodicBackfillConfig{interval: DefaultBackfillInterval}
}

// Enabled returns whether periodic backfill runs.
func (p PeriodicBackfillConfig) Enabled() bool { return p.enabled }

// Interval returns the time between runs.
func (p PeriodicBackfillConfig) Interval() time.Duration { return p.interval }

// WithEnabled returns a copy with enabled set.
func (p PeriodicBackfillConfig) WithEnabled(enabled bool) PeriodicBackfillConfig {
	p.enabled = enabled
	return p
}

// WithInterval returns a copy with the interval set.
func (p PeriodicBackfillConfig) WithInterval(d time.Duration) PeriodicBackfillConfig {
	if d > 0 {
		p.interval = d
	}
	return p
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host              string
	port              int
	dataDir           string
	dbURL             string
	logLevel          string
	logFormat         LogFormat
	apiKeys           []string
	workerPollPeriod  time.Duration
	chatEndpoint      *Endpoint
	visionEndpoint    *Endpoint
	embeddingEndpoint *Endpoint
	storage           StorageConfig
	auth              AuthConfig
	redisURL          string
	sessionTTL        time.Duration
	periodicBackfill  PeriodicBackfillConfig
	httpCacheDir      string
	corsOrigins       []string
	skipValidation    bool
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".damkit"
	}
	return filepath.Join(home, ".damkit")
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:             DefaultHost,
		port:             DefaultPort,
		dataDir:          dataDir,
		dbURL:            "sqlite:///" + filepath.Join(dataDir, "damkit.db"),
		logLevel:         DefaultLogLevel,
		logFormat:        LogFormatPretty,
		apiKeys:          []string{},
		workerPollPeriod: DefaultWorkerPollPeriod,
		storage:          NewStorageConfig(),
		auth:             AuthConfig{tokenTTL: DefaultTokenTTL},
		sessionTTL:       DefaultSessionTTL,
		periodicBackfill: NewPeriodicBackfillConfig(),
		corsOrigins:      []string{"*"},
	}
}

// Host returns the server host.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port.
func (c AppConfig) Port() int { return c.port }

// Addr returns the listen address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// APIKeys returns static API keys accepted for service-to-service calls.
func (c AppConfig) APIKeys() []string {
	result := make([]string, len(c.apiKeys))
	copy(result, c.apiKeys)
	return result
}

// WorkerPollPeriod returns how often the task worker polls the queue.
func (c AppConfig) WorkerPollPeriod() time.Duration { return c.workerPollPeriod }

// ChatEndpoint returns the tool-calling chat model endpoint.
func (c AppConfig) ChatEndpoint() *Endpoint { return c.chatEndpoint }

// VisionEndpoint returns the endpoint used for captions and verification.
// Falls back to the chat endpoint.
func (c AppConfig) VisionEndpoint() *Endpoint {
	if c.visionEndpoint != nil {
		return c.visionEndpoint
	}
	return c.chatEndpoint
}

// EmbeddingEndpoint returns the text embedding endpoint.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// Storage returns the object storage configuration.
func (c AppConfig) Storage() StorageConfig { return c.storage }

// Auth returns the authentication configuration.
func (c AppConfig) Auth() AuthConfig { return c.auth }

// RedisURL returns the Redis URL for chat sessions, empty for in-process storage.
func (c AppConfig) RedisURL() string { return c.redisURL }

// SessionTTL returns how long an idle chat session lives.
func (c AppConfig) SessionTTL() time.Duration { return c.sessionTTL }

// PeriodicBackfill returns the periodic backfill configuration.
func (c AppConfig) PeriodicBackfill() PeriodicBackfillConfig { return c.periodicBackfill }

// HTTPCacheDir returns the directory for caching provider responses, empty to disable.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// SkipProviderValidation reports whether the client may start without the
// models its task handlers need.
func (c AppConfig) SkipProviderValidation() bool { return c.skipValidation }

// CORSOrigins returns the origins allowed to call the API from a browser.
func (c AppConfig) CORSOrigins() []string {
	result := make([]string, len(c.corsOrigins))
	copy(result, c.corsOrigins)
	return result
}

// StorageDir returns the local storage root, defaulting under the data directory.
func (c AppConfig) StorageDir() string {
	if c.storage.localDir != "" {
		return c.storage.localDir
	}
	return filepath.Join(c.dataDir, "objects")
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory and moves a default SQLite URL with it.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		if c.dbURL == "sqlite:///"+filepath.Join(c.dataDir, "damkit.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "damkit.db")
		}
		c.dataDir = dir
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAPIKeys sets the static API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithWorkerPollPeriod sets the task worker poll period.
func WithWorkerPollPeriod(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d > 0 {
			c.workerPollPeriod = d
		}
	}
}

// WithChatEndpoint sets the chat endpoint.
func WithChatEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.chatEndpoint = &e }
}

// WithVisionEndpoint sets the vision endpoint.
func WithVisionEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.visionEndpoint = &e }
}

// WithEmbeddingEndpoint sets the embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithStorage sets the storage configuration.
func WithStorage(s StorageConfig) AppConfigOption {
	return func(c *AppConfig) { c.storage = s }
}

// WithAuth sets the JWT secret, issuer and minted-token lifetime.
func WithAuth(secret, issuer string, ttl time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		c.auth.jwtSecret = secret
		c.auth.issuer = issuer
		if ttl > 0 {
			c.auth.tokenTTL = ttl
		}
	}
}

// WithRedisURL sets the Redis URL for chat sessions.
func WithRedisURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.redisURL = url }
}

// WithSessionTTL sets the chat session lifetime.
func WithSessionTTL(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d > 0 {
			c.sessionTTL = d
		}
	}
}

// WithPeriodicBackfill sets the periodic backfill configuration.
func WithPeriodicBackfill(p PeriodicBackfillConfig) AppConfigOption {
	return func(c *AppConfig) { c.periodicBackfill = p }
}

// WithHTTPCacheDir sets the provider response cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// WithSkipProviderValidation allows starting without vision or embedding models.
func WithSkipProviderValidation(skip bool) AppConfigOption {
	return func(c *AppConfig) { c.skipValidation = skip }
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsOrigins = make([]string, len(origins))
		copy(c.corsOrigins, origins)
	}
}

// NewAppConfigWithOptions creates an AppConfig with options applied over defaults.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Apply returns a copy of the config with opts applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes describing the configuration.
// Secrets are never included; only whether they are set.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("chat_model", endpointModel(c.chatEndpoint)),
		slog.String("vision_model", endpointModel(c.VisionEndpoint())),
		slog.String("embedding_model", endpointModel(c.embeddingEndpoint)),
		slog.String("storage_backend", string(c.storage.backend)),
		slog.String("bucket", c.storage.bucket),
		slog.Bool("redis_sessions", c.redisURL != ""),
		slog.Bool("jwt_configured", c.auth.IsConfigured()),
		slog.Int("api_keys_count", len(c.apiKeys)),
		slog.Bool("periodic_backfill_enabled", c.periodicBackfill.Enabled()),
		slog.Duration("periodic_backfill_interval", c.periodicBackfill.Interval()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

func endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return string(e.Provider()) + "/" + e.Model()
}

// ParseAPIKeys parses a comma-separated string of API keys.
func ParseAPIKeys(s string) []string {
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
