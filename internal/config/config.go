// Package config loads and validates studio configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/bangla-scribe/internal/genai/gemini"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Progress ProgressConfig `mapstructure:"progress"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Live     LiveConfig     `mapstructure:"live"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Feed     FeedConfig     `mapstructure:"feed"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
	MaxUploadMB            int `mapstructure:"max_upload_mb"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// GenAIConfig selects the hosted model providers.
type GenAIConfig struct {
	Provider              string          `mapstructure:"provider"`
	FallbackProvider      string          `mapstructure:"fallback_provider"`
	TranscriptionProvider string          `mapstructure:"transcription_provider"`
	CallTimeoutSeconds    int             `mapstructure:"call_timeout_seconds"`
	MaxRetries            int             `mapstructure:"max_retries"`
	BackoffMs             int             `mapstructure:"backoff_ms"`
	RateLimitRPS          float64         `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int             `mapstructure:"rate_limit_burst"`
	Gemini                GeminiConfig    `mapstructure:"gemini"`
	OpenAI                OpenAIConfig    `mapstructure:"openai"`
	Anthropic             AnthropicConfig `mapstructure:"anthropic"`
}

// GeminiConfig holds Gemini credentials and model names.
type GeminiConfig struct {
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	LiveModel       string `mapstructure:"live_model"`
	LiveInstruction string `mapstructure:"live_instruction"`
}

// OpenAIConfig holds OpenAI credentials and model names.
type OpenAIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

// AnthropicConfig holds Anthropic credentials and model names.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// ProgressConfig shapes the simulated progress curve and settle delays.
type ProgressConfig struct {
	Seed              int `mapstructure:"seed"`
	Ceiling           int `mapstructure:"ceiling"`
	TickMs            int `mapstructure:"tick_ms"`
	HoldMs            int `mapstructure:"hold_ms"`
	TranscriptResetMs int `mapstructure:"transcript_reset_ms"`
}

// DispatchConfig sizes the worker pool and its queue.
type DispatchConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// LiveConfig bounds the live WebSocket endpoint.
type LiveConfig struct {
	MaxFrameBytes  int `mapstructure:"max_frame_bytes"`
	WriteTimeoutMs int `mapstructure:"write_timeout_ms"`
}

// StorageConfig enables reading audio objects from GCS.
type StorageConfig struct {
	GCSEnabled bool   `mapstructure:"gcs_enabled"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	MaxMB      int    `mapstructure:"max_mb"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// FeedConfig bounds the in-memory notification feed.
type FeedConfig struct {
	MaxEvents int `mapstructure:"max_events"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("genai.provider", "gemini")
	v.SetDefault("genai.fallback_provider", "")
	v.SetDefault("genai.transcription_provider", "gemini")
	v.SetDefault("genai.call_timeout_seconds", 120)
	v.SetDefault("genai.max_retries", 0)
	v.SetDefault("genai.backoff_ms", 500)
	v.SetDefault("genai.rate_limit_rps", 0)
	v.SetDefault("genai.rate_limit_burst", 1)
	v.SetDefault("genai.gemini.api_key", "")
	v.SetDefault("genai.gemini.model", gemini.DefaultModel)
	v.SetDefault("genai.gemini.live_model", gemini.DefaultLiveModel)
	v.SetDefault("genai.gemini.live_instruction", "")
	v.SetDefault("genai.openai.api_key", "")
	v.SetDefault("genai.openai.model", "gpt-4o-mini")
	v.SetDefault("genai.openai.language", "bn")
	v.SetDefault("genai.anthropic.api_key", "")
	v.SetDefault("genai.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("genai.anthropic.max_tokens", 4096)
	v.SetDefault("progress.seed", 5)
	v.SetDefault("progress.ceiling", 92)
	v.SetDefault("progress.tick_ms", 400)
	v.SetDefault("progress.hold_ms", 300)
	v.SetDefault("progress.transcript_reset_ms", 1000)
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.queue_depth", 16)
	v.SetDefault("live.max_frame_bytes", 64<<10)
	v.SetDefault("live.write_timeout_ms", 5000)
	v.SetDefault("storage.gcs_enabled", false)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.max_mb", 100)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("feed.max_events", 200)
}

var providers = map[string]bool{"gemini": true, "openai": true, "anthropic": true}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if !providers[c.GenAI.Provider] {
		return fmt.Errorf("genai.provider %q is not one of gemini, openai, anthropic", c.GenAI.Provider)
	}
	if c.GenAI.FallbackProvider != "" {
		if !providers[c.GenAI.FallbackProvider] {
			return fmt.Errorf("genai.fallback_provider %q is not supported", c.GenAI.FallbackProvider)
		}
		if c.GenAI.FallbackProvider == c.GenAI.Provider {
			return errors.New("genai.fallback_provider must differ from genai.provider")
		}
	}
	switch c.GenAI.TranscriptionProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("genai.transcription_provider %q must be gemini or openai", c.GenAI.TranscriptionProvider)
	}
	if c.GenAI.CallTimeoutSeconds <= 0 {
		return fmt.Errorf("genai.call_timeout_seconds must be > 0")
	}
	if c.GenAI.MaxRetries < 0 {
		return fmt.Errorf("genai.max_retries must be >= 0")
	}
	if c.GenAI.RateLimitRPS < 0 {
		return fmt.Errorf("genai.rate_limit_rps must be >= 0")
	}
	for name := range c.usedProviders() {
		if c.apiKey(name) == "" {
			return fmt.Errorf("genai.%s.api_key must be set when %s is in use", name, name)
		}
	}
	if c.Progress.Seed <= 0 || c.Progress.Seed >= c.Progress.Ceiling {
		return fmt.Errorf("progress.seed must be within [1, progress.ceiling)")
	}
	if c.Progress.Ceiling > 99 {
		return fmt.Errorf("progress.ceiling must be <= 99")
	}
	if c.Progress.TickMs <= 0 {
		return fmt.Errorf("progress.tick_ms must be > 0")
	}
	if c.Progress.HoldMs <= 0 || c.Progress.TranscriptResetMs <= 0 {
		return fmt.Errorf("progress.hold_ms and progress.transcript_reset_ms must be > 0")
	}
	// One worker per content type keeps a full batch running concurrently.
	if minWorkers := len(studio.ContentTypes()); c.Dispatch.Workers < minWorkers {
		return fmt.Errorf("dispatch.workers must be >= %d", minWorkers)
	}
	if c.Dispatch.QueueDepth <= 0 {
		return fmt.Errorf("dispatch.queue_depth must be > 0")
	}
	if c.Live.MaxFrameBytes <= 0 || c.Live.MaxFrameBytes%4 != 0 {
		return fmt.Errorf("live.max_frame_bytes must be a positive multiple of 4")
	}
	if c.Storage.GCSEnabled && c.Storage.MaxMB <= 0 {
		return fmt.Errorf("storage.max_mb must be > 0 when gcs is enabled")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

func (c Config) usedProviders() map[string]bool {
	used := map[string]bool{c.GenAI.Provider: true, c.GenAI.TranscriptionProvider: true}
	if c.GenAI.FallbackProvider != "" {
		used[c.GenAI.FallbackProvider] = true
	}
	return used
}

func (c Config) apiKey(provider string) string {
	switch provider {
	case "gemini":
		return c.GenAI.Gemini.APIKey
	case "openai":
		return c.GenAI.OpenAI.APIKey
	case "anthropic":
		return c.GenAI.Anthropic.APIKey
	default:
		return ""
	}
}

// UsesProvider reports whether provider serves generation, fallback, or
// transcription.
func (c Config) UsesProvider(provider string) bool {
	return c.usedProviders()[provider]
}

// CallTimeout converts the remote call bound into a duration.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.GenAI.CallTimeoutSeconds) * time.Second
}

// RequestTimeout bounds ordinary HTTP handlers.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// MaxUploadBytes converts the upload limit into bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// Millis converts a millisecond knob into a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
