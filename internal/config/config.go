// Package config provides configuration management for Tactix.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tactix/pkg/logger"
)

// Storage backends.
const (
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds all configuration values for the application.
type Config struct {
	// Discord
	DiscordToken string `koanf:"discord_token"`

	// AI / LLM API (OpenAI-compatible chat completions)
	AIAPIKey      string `koanf:"ai_api_key"`
	AIAPIURL      string `koanf:"ai_api_url"`
	AIModel       string `koanf:"ai_model"`
	AIVisionModel string `koanf:"ai_vision_model"`
	AIRPM         int    `koanf:"ai_rpm"`

	// Live voice endpoint (websocket). Empty disables voice.
	LiveAPIURL string `koanf:"live_api_url"`
	LiveAPIKey string `koanf:"live_api_key"`

	// Storage
	StorageBackend   string `koanf:"storage_backend"`
	RedisURL         string `koanf:"redis_url"`
	DataDir          string `koanf:"data_dir"`
	KeyPrefix        string `koanf:"key_prefix"`
	KnowledgePersist bool   `koanf:"knowledge_persist"`

	// Session
	DefaultLanguage string `koanf:"default_language"`
	// Sessions unused for this long are closed. 0 keeps them forever.
	SessionIdleMinutes int `koanf:"session_idle_minutes"`

	// Match playback
	TickIntervalMS   int     `koanf:"tick_interval_ms"`
	SettleDelayMS    int     `koanf:"settle_delay_ms"`
	FlavorChance     float64 `koanf:"flavor_chance"`
	FeedWindow       int     `koanf:"feed_window"`
	RenderIntervalMS int     `koanf:"render_interval_ms"`

	// Audio output directory for rendered cues. Empty means no audio output.
	AudioDir string `koanf:"audio_dir"`

	// Ops
	HealthAddr string `koanf:"health_addr"`
	LogLevel   string `koanf:"log_level"`
	LogFile    string `koanf:"log_file"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		AIAPIURL:           "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
		AIModel:            "gemini-2.5-pro",
		AIVisionModel:      "gemini-2.5-flash",
		AIRPM:              30,
		StorageBackend:     BackendFile,
		DataDir:            "data",
		KeyPrefix:          "tactix",
		DefaultLanguage:    "en",
		SessionIdleMinutes: 60,
		TickIntervalMS:     100,
		SettleDelayMS:      2000,
		FlavorChance:       0.04,
		FeedWindow:         4,
		RenderIntervalMS:   1000,
		HealthAddr:         ":8080",
		LogLevel:           "info",
	}
}

// Load reads configuration. Order of precedence (low -> high):
//  1. defaults
//  2. YAML file named by TACTIX_CONFIG
//  3. env vars with prefix TACTIX_ (a .env file is loaded into the env first)
//
// DISCORD_TOKEN and REDIS_URL without prefix are honoured as fallbacks.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv("TACTIX_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("TACTIX_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "tactix_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.DiscordToken == "" {
		cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	return cfg, nil
}

// Validate checks if all required configuration values are set.
func (c *Config) Validate() error {
	var errs []string

	if c.DiscordToken == "" {
		errs = append(errs, "TACTIX_DISCORD_TOKEN is missing")
	}

	if c.AIAPIKey == "" {
		errs = append(errs, "TACTIX_AI_API_KEY is missing")
	}

	switch c.StorageBackend {
	case BackendRedis, BackendFile, BackendMemory:
	default:
		errs = append(errs, "TACTIX_STORAGE_BACKEND must be redis, file or memory")
	}

	if c.FlavorChance < 0 || c.FlavorChance > 1 {
		errs = append(errs, "TACTIX_FLAVOR_CHANCE must be within [0,1]")
	}

	if len(errs) > 0 {
		logger.Log.Error("Config errors:")
		for _, e := range errs {
			logger.Log.Errorf("  - %s", e)
		}
		return errors.New("configuration validation failed")
	}

	return nil
}

// TickInterval is the wall-clock time per simulated minute.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// SettleDelay is the pause between the final whistle and the result view.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// RenderInterval is the minimum gap between live message edits.
func (c *Config) RenderInterval() time.Duration {
	return time.Duration(c.RenderIntervalMS) * time.Millisecond
}

// SessionIdle is how long an unused session is kept.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// StorageDir returns the directory used by the file storage backend.
func (c *Config) StorageDir() string {
	return filepath.Join(c.DataDir, "store")
}
