package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Site      SiteConfig
	Browser   BrowserConfig
	Crawl     CrawlConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the operational HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// SiteConfig describes the remote application being crawled.
type SiteConfig struct {
	// BaseURL is the root of the remote site, e.g. "https://game.example.com".
	BaseURL string

	// LoginPath is the path of the credential-entry page.
	LoginPath string // default: "/login"

	// ContextPath is an intermediate page some login flows must visit once
	// before the session is fully established.
	ContextPath string // default: "/main"

	// Username and Password are the form-login credentials.
	Username string
	Password string

	// SessionToken is a stored session cookie value. When set, the
	// authenticator tries the cookie fast-path before form login.
	SessionToken string

	// SessionCookieName is the cookie the site uses for its session.
	SessionCookieName string // default: "PHPSESSID"
}

// BrowserConfig controls the pooled Rod browser instances.
type BrowserConfig struct {
	// Headless controls whether browsers run headless.
	Headless bool // default: true

	// PoolSize is the maximum number of pooled browser instances.
	PoolSize int // default: 3

	// IdleTimeout evicts pooled instances idle longer than this.
	IdleTimeout time.Duration // default: 10m

	// LaunchRetries is the number of extra launch attempts.
	LaunchRetries int // default: 2

	// LaunchBackoff is the fixed delay between launch attempts.
	LaunchBackoff time.Duration // default: 3s

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// DomainConfig bounds one crawled ID space.
type DomainConfig struct {
	// StartID is the first candidate ID when the snapshot is empty.
	StartID int

	// MaxID is the absolute probing ceiling; 0 means unbounded.
	MaxID int

	// MaxNewPerPass caps discoveries in a single pass.
	MaxNewPerPass int

	// ConsecutiveMissLimit terminates discovery after this many sequential
	// misses.
	ConsecutiveMissLimit int
}

// CrawlConfig controls the incremental crawl scheduler.
type CrawlConfig struct {
	// TickInterval is the period between scheduled passes.
	TickInterval time.Duration // default: 30m

	// PassTimeout is the wall-clock limit that force-clears the run guard.
	PassTimeout time.Duration // default: 25m

	// BatchSize is the number of IDs fetched per batch.
	BatchSize int // default: 10

	// Concurrency is the number of in-flight fetches within a batch.
	// Kept strictly below BatchSize so a batch completes in waves.
	Concurrency int // default: 3

	// NavigationTimeout is the per-page-load deadline.
	NavigationTimeout time.Duration // default: 20s

	// RequestsPerSecond paces page loads against the remote host.
	RequestsPerSecond float64 // default: 2

	Profiles DomainConfig
	States   DomainConfig
	Races    DomainConfig
}

// StoreConfig controls snapshot persistence.
type StoreConfig struct {
	// DataDir is the directory holding live snapshots and backups.
	DataDir string // default: "./data"
}

// AuthConfig controls API key authentication on the status server.
type AuthConfig struct {
	Enabled bool // default: false
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the status server.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// WebhookConfig controls upward report delivery.
type WebhookConfig struct {
	// URL is the endpoint reports are POSTed to; empty disables delivery.
	URL string

	// Secret signs the payload with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("DOSSIER_HOST", "0.0.0.0"),
			Port: envIntOr("DOSSIER_PORT", 8080),
			Mode: envOr("DOSSIER_MODE", "release"),
		},
		Site: SiteConfig{
			BaseURL:           os.Getenv("DOSSIER_BASE_URL"),
			LoginPath:         envOr("DOSSIER_LOGIN_PATH", "/login"),
			ContextPath:       envOr("DOSSIER_CONTEXT_PATH", "/main"),
			Username:          os.Getenv("DOSSIER_USERNAME"),
			Password:          os.Getenv("DOSSIER_PASSWORD"),
			SessionToken:      os.Getenv("DOSSIER_SESSION_TOKEN"),
			SessionCookieName: envOr("DOSSIER_SESSION_COOKIE", "PHPSESSID"),
		},
		Browser: BrowserConfig{
			Headless:      envBoolOr("DOSSIER_HEADLESS", true),
			PoolSize:      envIntOr("DOSSIER_POOL_SIZE", 3),
			IdleTimeout:   envDurationOr("DOSSIER_POOL_IDLE_TIMEOUT", 10*time.Minute),
			LaunchRetries: envIntOr("DOSSIER_LAUNCH_RETRIES", 2),
			LaunchBackoff: envDurationOr("DOSSIER_LAUNCH_BACKOFF", 3*time.Second),
			NoSandbox:     envBoolOr("DOSSIER_NO_SANDBOX", false),
			BrowserBin:    os.Getenv("DOSSIER_BROWSER_BIN"),
		},
		Crawl: CrawlConfig{
			TickInterval:      envDurationOr("DOSSIER_TICK_INTERVAL", 30*time.Minute),
			PassTimeout:       envDurationOr("DOSSIER_PASS_TIMEOUT", 25*time.Minute),
			BatchSize:         envIntOr("DOSSIER_BATCH_SIZE", 10),
			Concurrency:       envIntOr("DOSSIER_CONCURRENCY", 3),
			NavigationTimeout: envDurationOr("DOSSIER_NAV_TIMEOUT", 20*time.Second),
			RequestsPerSecond: envFloatOr("DOSSIER_CRAWL_RPS", 2.0),
			Profiles:          domainConfig("DOSSIER_PROFILES", DomainConfig{StartID: 1, MaxNewPerPass: 50, ConsecutiveMissLimit: 15}),
			States:            domainConfig("DOSSIER_STATES", DomainConfig{StartID: 1, MaxID: 75, MaxNewPerPass: 10, ConsecutiveMissLimit: 5}),
			Races:             domainConfig("DOSSIER_RACES", DomainConfig{StartID: 1, MaxNewPerPass: 30, ConsecutiveMissLimit: 10}),
		},
		Store: StoreConfig{
			DataDir: envOr("DOSSIER_DATA_DIR", "./data"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("DOSSIER_AUTH_ENABLED", false),
			APIKeys: envSliceOr("DOSSIER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("DOSSIER_RATE_RPS", 5.0),
			Burst:             envIntOr("DOSSIER_RATE_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("DOSSIER_WEBHOOK_URL"),
			Secret: os.Getenv("DOSSIER_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("DOSSIER_LOG_LEVEL", "info"),
			Format: envOr("DOSSIER_LOG_FORMAT", "json"),
		},
	}
}

// domainConfig reads one domain's ID-space bounds using a shared env prefix,
// e.g. DOSSIER_PROFILES_START_ID.
func domainConfig(prefix string, defaults DomainConfig) DomainConfig {
	return DomainConfig{
		StartID:              envIntOr(prefix+"_START_ID", defaults.StartID),
		MaxID:                envIntOr(prefix+"_MAX_ID", defaults.MaxID),
		MaxNewPerPass:        envIntOr(prefix+"_MAX_NEW", defaults.MaxNewPerPass),
		ConsecutiveMissLimit: envIntOr(prefix+"_MISS_LIMIT", defaults.ConsecutiveMissLimit),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
