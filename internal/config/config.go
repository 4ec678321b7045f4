package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	TransportHTTP      = "http"
	TransportWebsocket = "websocket"
)

// Config stores runtime configuration for the translator.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	APIBase   string `envconfig:"AITRANSLATE_API_BASE" default:"https://api.z.ai/api/coding/paas/v4"`
	APIKey    string `envconfig:"AITRANSLATE_API_KEY"`
	Model     string `envconfig:"AITRANSLATE_MODEL" default:"glm-4.7"`
	Thinking  string `envconfig:"AITRANSLATE_THINKING" default:"enabled"`
	Transport string `envconfig:"AITRANSLATE_TRANSPORT" default:"http"`
	WSURL     string `envconfig:"AITRANSLATE_WS_URL"`

	IdleTimeout   time.Duration `envconfig:"AITRANSLATE_IDLE_TIMEOUT" default:"60s"`
	RetryBackoff  time.Duration `envconfig:"AITRANSLATE_RETRY_BACKOFF" default:"250ms"`
	CacheCapacity int           `envconfig:"AITRANSLATE_CACHE_CAPACITY" default:"512"`

	TTSBase            string `envconfig:"AITRANSLATE_TTS_BASE" default:"https://api.z.ai/api/paas/v4"`
	TTSModel           string `envconfig:"AITRANSLATE_TTS_MODEL" default:"glm-tts"`
	TTSSegmentLength   int    `envconfig:"AITRANSLATE_TTS_SEGMENT_LENGTH" default:"800"`
	TTSParallel        int    `envconfig:"AITRANSLATE_TTS_PARALLEL" default:"5"`
	AudioCacheCapacity int    `envconfig:"AITRANSLATE_AUDIO_CACHE_CAPACITY" default:"100"`

	DataDir      string `envconfig:"AITRANSLATE_DATA_DIR"`
	SettingsFile string `envconfig:"AITRANSLATE_SETTINGS_FILE" default:".ai-translate-config.json"`
	GlossaryFile string `envconfig:"AITRANSLATE_GLOSSARY_FILE"`
}

// Load reads an optional .env file, then resolves configuration from the
// environment.
func Load() (*Config, error) {
	loadEnvFile()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir()
	}
	if strings.TrimSpace(cfg.GlossaryFile) == "" {
		cfg.GlossaryFile = firstExisting(filepath.Join(cfg.DataDir, "glossary.txt"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Transport {
	case TransportHTTP:
	case TransportWebsocket:
		if strings.TrimSpace(c.WSURL) == "" {
			return fmt.Errorf("AITRANSLATE_WS_URL is required when AITRANSLATE_TRANSPORT=websocket")
		}
	default:
		return fmt.Errorf("AITRANSLATE_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportWebsocket, c.Transport)
	}
	if strings.TrimSpace(c.APIBase) == "" {
		return fmt.Errorf("AITRANSLATE_API_BASE is required")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("AITRANSLATE_IDLE_TIMEOUT must be > 0")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("AITRANSLATE_RETRY_BACKOFF must be >= 0")
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("AITRANSLATE_CACHE_CAPACITY must be >= 1")
	}
	if strings.TrimSpace(c.TTSBase) == "" {
		return fmt.Errorf("AITRANSLATE_TTS_BASE is required")
	}
	if c.TTSSegmentLength < 1 {
		return fmt.Errorf("AITRANSLATE_TTS_SEGMENT_LENGTH must be >= 1")
	}
	if c.TTSParallel < 1 {
		return fmt.Errorf("AITRANSLATE_TTS_PARALLEL must be >= 1")
	}
	if c.AudioCacheCapacity < 1 {
		return fmt.Errorf("AITRANSLATE_AUDIO_CACHE_CAPACITY must be >= 1")
	}
	if strings.TrimSpace(c.SettingsFile) == "" {
		return fmt.Errorf("AITRANSLATE_SETTINGS_FILE is required")
	}
	return nil
}

// DatabasePath is the sqlite file holding the persisted cache and transcripts.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "aitranslate.db")
}

// AudioDir holds synthesized speech files.
func (c *Config) AudioDir() string {
	return filepath.Join(c.DataDir, "audio")
}

// loadEnvFile applies AITRANSLATE_ENV_FILE or ./.env when present. A missing
// file is not an error.
func loadEnvFile() {
	if custom := strings.TrimSpace(os.Getenv("AITRANSLATE_ENV_FILE")); custom != "" {
		if err := godotenv.Overload(custom); err == nil {
			return
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "data"
	}
	return filepath.Join(home, ".config", "ai-translate")
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
