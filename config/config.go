package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Harvest   HarvestConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	State     StateConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all pages.
	Proxy string

	// RemoteURL connects to an already running Chrome over CDP instead of
	// launching one. The browser is left running on shutdown.
	RemoteURL string

	// AcceptLanguage is sent as an extra header on every page.
	AcceptLanguage string // default: "it-IT,it;q=0.9,en;q=0.8"

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks requests to well-known ad and tracking domains.
	BlockAds bool // default: true
}

// HarvestConfig controls the harvesting run.
type HarvestConfig struct {
	// BatchSize is the number of targets processed concurrently per window.
	BatchSize int // default: 3

	// WindowDelay is the pause between two windows.
	WindowDelay time.Duration // default: 1s

	// SettleDelay is waited when a page never reports load completion.
	SettleDelay time.Duration // default: 1.5s

	// LoadTimeout bounds the wait for the load signal.
	LoadTimeout time.Duration // default: 15s

	// TargetTimeout bounds one target from open to close.
	TargetTimeout time.Duration // default: 60s

	// PollInterval and PollAttempts bound the contact reveal poll.
	PollInterval time.Duration // default: 500ms
	PollAttempts int           // default: 5

	// Interact enables the scripted contact-form submission by default.
	Interact bool // default: false

	// InteractDelay is the settle delay between and after submit triggers.
	InteractDelay time.Duration // default: 500ms

	// MessageFile points to a text file overriding the default message.
	MessageFile string

	// Stealth injects anti-detection scripts into every page.
	Stealth bool // default: true
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// StateConfig selects where run snapshots are kept.
type StateConfig struct {
	// Backend is "memory" or "sqlite". default: "memory"
	Backend string

	// Path is the sqlite database file. default: "harvester.db"
	Path string
}

// WebhookConfig controls run event delivery.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: could not load .env file", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("HARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("HARVEST_PORT", 8080),
			Mode: envOr("HARVEST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("HARVEST_HEADLESS", true),
			NoSandbox:      envBoolOr("HARVEST_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("HARVEST_BROWSER_BIN"),
			Proxy:          os.Getenv("HARVEST_PROXY"),
			RemoteURL:      os.Getenv("HARVEST_CDP_URL"),
			AcceptLanguage: envOr("HARVEST_ACCEPT_LANGUAGE", "it-IT,it;q=0.9,en;q=0.8"),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("HARVEST_BLOCK_ADS", true),
		},
		Harvest: HarvestConfig{
			BatchSize:     envIntOr("HARVEST_BATCH_SIZE", 3),
			WindowDelay:   envDurationOr("HARVEST_WINDOW_DELAY", time.Second),
			SettleDelay:   envDurationOr("HARVEST_SETTLE_DELAY", 1500*time.Millisecond),
			LoadTimeout:   envDurationOr("HARVEST_LOAD_TIMEOUT", 15*time.Second),
			TargetTimeout: envDurationOr("HARVEST_TARGET_TIMEOUT", 60*time.Second),
			PollInterval:  envDurationOr("HARVEST_POLL_INTERVAL", 500*time.Millisecond),
			PollAttempts:  envIntOr("HARVEST_POLL_ATTEMPTS", 5),
			Interact:      envBoolOr("HARVEST_INTERACT", false),
			InteractDelay: envDurationOr("HARVEST_INTERACT_DELAY", 500*time.Millisecond),
			MessageFile:   os.Getenv("HARVEST_MESSAGE_FILE"),
			Stealth:       envBoolOr("HARVEST_STEALTH", true),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("HARVEST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("HARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("HARVEST_RATE_RPS", 5.0),
			Burst:             envIntOr("HARVEST_RATE_BURST", 10),
		},
		State: StateConfig{
			Backend: envOr("HARVEST_STATE_BACKEND", "memory"),
			Path:    envOr("HARVEST_STATE_PATH", "harvester.db"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("HARVEST_WEBHOOK_URL"),
			Secret: os.Getenv("HARVEST_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
		},
	}
}

// Message returns the contact message: the content of MessageFile when set
// and readable, the fallback otherwise.
func (h HarvestConfig) Message(fallback string) string {
	if h.MessageFile == "" {
		return fallback
	}
	data, err := os.ReadFile(h.MessageFile)
	if err != nil {
		slog.Warn("config: could not read message file, using default template",
			"path", h.MessageFile, "error", err)
		return fallback
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return fallback
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
