package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kode4food/flowrelay/pkg/api"
)

type (
	// Config holds configuration settings for the relay
	Config struct {
		// API Server
		APIHost    string
		APIPort    int
		LogLevel   string
		CORSOrigin string

		// Upstream
		BaseURL      string
		Token        string
		FlowID       api.FlowID
		CollectionID api.CollectionID
		TweaksFile   string
		Tweaks       api.Tweaks

		// Attempts & Retry
		RequestTimeout time.Duration
		MaxAttempts    int
		RetryBaseDelay time.Duration

		ShutdownTimeout time.Duration
	}
)

const (
	DefaultAPIPort = 3000
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultBaseURL      = "https://api.langflow.astra.datastax.com"
	DefaultFlowID       = "64432a17-62c7-4c33-8c40-9bfdaccb26d5"
	DefaultCollectionID = "7670fdd8-a178-4a64-b2a4-6e61e489b07a"

	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxAttempts     = 3
	DefaultRetryBaseDelay  = time.Second
	DefaultShutdownTimeout = 10 * time.Second

	MaxRequestTimeout  = 10 * time.Minute
	MaxRetryAttempts   = 100
	MaxRetryBaseDelay  = 5 * time.Minute
	MaxShutdownTimeout = 5 * time.Minute
)

var (
	ErrInvalidAPIPort        = errors.New("invalid API port")
	ErrMissingToken          = errors.New("application token is required")
	ErrMissingBaseURL        = errors.New("upstream base URL is required")
	ErrInvalidBaseURL        = errors.New("invalid upstream base URL")
	ErrMissingFlowID         = errors.New("flow ID is required")
	ErrMissingCollectionID   = errors.New("collection ID is required")
	ErrInvalidRequestTimeout = errors.New("request timeout must be positive")
	ErrInvalidMaxAttempts    = errors.New("retry max attempts must be >= 1")
	ErrInvalidRetryBaseDelay = errors.New(
		"retry base delay cannot be negative",
	)
	ErrLoadTweaks = errors.New("failed to load tweaks file")
)

// defaultTweaks lists the components of the default flow. Each entry is
// left empty so the flow's own settings apply
var defaultTweaks = []string{
	"ParseData-WRYuB",
	"Prompt-R6nZp",
	"OpenAIModel-QnZH3",
	"ChatOutput-g328R",
	"AstraDB-8DZnm",
	"CustomComponent-shd7O",
	"CombineText-2et2F",
	"Prompt-t5kP1",
	"ChatOutput-f8eIP",
	"SplitText-vFUSw",
	"AstraDB-6ZUKm",
	"File-RbRjr",
}

// NewDefaultConfig creates a configuration with sensible defaults for the
// server, the upstream flow, and retry behavior. The token has no default
func NewDefaultConfig() *Config {
	tweaks := make(api.Tweaks, len(defaultTweaks))
	for _, id := range defaultTweaks {
		tweaks[id] = map[string]any{}
	}
	return &Config{
		APIHost:         DefaultAPIHost,
		APIPort:         DefaultAPIPort,
		LogLevel:        "info",
		BaseURL:         DefaultBaseURL,
		FlowID:          DefaultFlowID,
		CollectionID:    DefaultCollectionID,
		Tweaks:          tweaks,
		RequestTimeout:  DefaultRequestTimeout,
		MaxAttempts:     DefaultMaxAttempts,
		RetryBaseDelay:  DefaultRetryBaseDelay,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed or the tweaks file cannot
// be read
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("CORS_ORIGIN", &c.CORSOrigin)
	loadEnvString("LANGFLOW_BASE_URL", &c.BaseURL)
	loadEnvString("APPLICATION_TOKEN", &c.Token)
	loadEnvString("FLOW_ID", &c.FlowID)
	loadEnvString("LANGFLOW_ID", &c.CollectionID)
	loadEnvString("TWEAKS_FILE", &c.TweaksFile)

	portKey := "PORT"
	if os.Getenv(portKey) == "" {
		portKey = "API_PORT"
	}
	if err := loadEnvInt(portKey, &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_MAX_ATTEMPTS", &c.MaxAttempts, 0, MaxRetryAttempts,
	); err != nil {
		return err
	}

	if err := loadEnvMillis(
		"REQUEST_TIMEOUT", &c.RequestTimeout, 0, MaxRequestTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvMillis(
		"RETRY_BASE_DELAY", &c.RetryBaseDelay, -1, MaxRetryBaseDelay,
	); err != nil {
		return err
	}
	if err := loadEnvMillis(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, 0, MaxShutdownTimeout,
	); err != nil {
		return err
	}

	if c.TweaksFile != "" {
		return c.LoadTweaks(c.TweaksFile)
	}
	return nil
}

// LoadTweaks replaces the configured tweaks with the YAML (or JSON) mapping
// found in the named file. The mapping must be representable as JSON, and
// nested mappings are loaded as plain maps
func (c *Config) LoadTweaks(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadTweaks, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadTweaks, path, err)
	}
	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadTweaks, path, err)
	}
	tweaks := api.Tweaks{}
	if err := json.Unmarshal(doc, &tweaks); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadTweaks, path, err)
	}
	c.Tweaks = tweaks
	c.TweaksFile = path
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.Token == "" {
		return ErrMissingToken
	}

	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") ||
		u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}

	if c.FlowID == "" {
		return ErrMissingFlowID
	}

	if c.CollectionID == "" {
		return ErrMissingCollectionID
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}

	if c.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.RetryBaseDelay < 0 {
		return ErrInvalidRetryBaseDelay
	}

	return nil
}

// Addr returns the host:port the API server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func loadEnvString[T ~string](key string, dst *T) {
	if s := os.Getenv(key); s != "" {
		*dst = T(s)
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if the
// value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvMillis reads a millisecond count from the environment into a
// duration, bounded like loadEnvInt
func loadEnvMillis(key string, dst *time.Duration, min, max time.Duration) error {
	ms := dst.Milliseconds()
	minMs := min.Milliseconds()
	if min < 0 {
		minMs = -1
	}
	if err := loadEnvInt(key, &ms, minMs, max.Milliseconds()); err != nil {
		return err
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}
