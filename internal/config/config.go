// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the API
// server (timeouts, database, uploads, auth, cache, jobs, observability) and
// for the command-line client that talks to it.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-complaint-desk/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "complaint-desk")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and locates the database.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH: SQLite file (sqlite driver)
	DSN    string // DB_DSN: connection string (postgres driver)
}

// UploadConfig bounds request bodies and complaint attachments.
type UploadConfig struct {
	MaxBodyBytes       int64 // MAX_BODY_BYTES
	MaxAttachments     int   // MAX_ATTACHMENTS
	MaxAttachmentBytes int64 // MAX_ATTACHMENT_BYTES
}

// AuthConfig configures bearer-token verification. An empty secret disables
// verification and callers are identified by X-User-ID.
type AuthConfig struct {
	JWTSecret string        // JWT_SECRET
	Issuer    string        // JWT_ISSUER
	TokenTTL  time.Duration // JWT_TTL (tokens minted by complaintctl)
}

// RedisConfig configures the optional stats cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        // REDIS_ADDR
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	StatsTTL time.Duration // STATS_CACHE_TTL
}

// JobsConfig configures background maintenance.
type JobsConfig struct {
	PurgeSchedule    string        // PURGE_SCHEDULE (cron expression, empty disables)
	ConversationIdle time.Duration // CONVERSATION_IDLE_TIMEOUT
}

// ChatbotConfig configures the rule-based responder.
type ChatbotConfig struct {
	RulesPath  string // CHATBOT_RULES_PATH (empty uses the built-in rules)
	FAQEnabled bool   // CHATBOT_FAQ
	FAQPath    string // CHATBOT_FAQ_PATH (empty uses the built-in FAQ)
}

// ClientConfig configures complaintctl's connection to the API.
type ClientConfig struct {
	BaseURL string        // API_URL
	Timeout time.Duration // CLIENT_TIMEOUT
	Token   string        // API_TOKEN
	UserID  string        // USER_ID
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // trace|debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DB DBConfig

	// Uploads
	Upload UploadConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	Auth    AuthConfig
	Redis   RedisConfig
	Jobs    JobsConfig
	Chatbot ChatbotConfig
	Client  ClientConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for main packages: invalid configuration panics.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults, and validates the result.
// The returned Config is populated even when err is non-nil.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "complaints.db"),
			DSN:    getenv("DB_DSN", ""),
		},

		// Uploads
		Upload: UploadConfig{
			MaxBodyBytes:       int64(getint("MAX_BODY_BYTES", 12<<20)),
			MaxAttachments:     getint("MAX_ATTACHMENTS", 5),
			MaxAttachmentBytes: int64(getint("MAX_ATTACHMENT_BYTES", 2<<20)),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			Issuer:    getenv("JWT_ISSUER", "complaint-desk"),
			TokenTTL:  getdur("JWT_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			StatsTTL: getdur("STATS_CACHE_TTL", 30*time.Second),
		},
		Jobs: JobsConfig{
			PurgeSchedule:    getenv("PURGE_SCHEDULE", "@every 1h"),
			ConversationIdle: getdur("CONVERSATION_IDLE_TIMEOUT", 24*time.Hour),
		},
		Chatbot: ChatbotConfig{
			RulesPath:  getenv("CHATBOT_RULES_PATH", ""),
			FAQEnabled: getbool("CHATBOT_FAQ", true),
			FAQPath:    getenv("CHATBOT_FAQ_PATH", ""),
		},
		Client: ClientConfig{
			BaseURL: strings.TrimRight(getenv("API_URL", "http://localhost:8080/api/v1"), "/"),
			Timeout: getdur("CLIENT_TIMEOUT", 10*time.Second),
			Token:   getenv("API_TOKEN", ""),
			UserID:  getenv("USER_ID", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "complaint-desk"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if lvl, ok := sysutil.ParseLevel(c.LogLevel); ok {
		c.LogLevel = lvl.String()
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
}

// Validate reports every invalid setting at once, naming the variable.
func (c Config) Validate() error {
	_, levelOK := sysutil.ParseLevel(c.LogLevel)
	checks := []struct {
		bad bool
		msg string
	}{
		{!levelOK, "LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic"},
		{strings.TrimSpace(c.Port) == "", "PORT must not be empty"},
		{c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0, "timeouts must be positive durations"},
		{c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{c.DB.Driver != "sqlite" && c.DB.Driver != "postgres", "DB_DRIVER must be one of: sqlite, postgres"},
		{c.DB.Driver == "sqlite" && strings.TrimSpace(c.DB.Path) == "", "DB_PATH must not be empty"},
		{c.DB.Driver == "postgres" && strings.TrimSpace(c.DB.DSN) == "", "DB_DSN must be set when DB_DRIVER=postgres"},
		{c.Upload.MaxBodyBytes <= 0, "MAX_BODY_BYTES must be > 0"},
		{c.Upload.MaxAttachments < 0, "MAX_ATTACHMENTS must be >= 0"},
		{c.Upload.MaxAttachmentBytes <= 0, "MAX_ATTACHMENT_BYTES must be > 0"},
		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16, "JWT_SECRET must be at least 16 bytes"},
		{c.Auth.TokenTTL <= 0, "JWT_TTL must be > 0"},
		{c.Redis.DB < 0, "REDIS_DB must be >= 0"},
		{c.Redis.StatsTTL <= 0, "STATS_CACHE_TTL must be > 0"},
		{c.Jobs.ConversationIdle <= 0, "CONVERSATION_IDLE_TIMEOUT must be > 0"},
		{c.Client.Timeout <= 0, "CLIENT_TIMEOUT must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	var errs []error
	for _, ch := range checks {
		if ch.bad {
			errs = append(errs, errors.New(ch.msg))
		}
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// lookup parses k with parse, falling back to def when unset or malformed.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	out, err := parse(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return out
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool { return lookup(k, def, parseBool) }

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, errors.New("not a boolean")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
