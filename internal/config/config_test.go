package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT", "LOG_LEVEL",
		"AITRANSLATE_ENV_FILE",
		"AITRANSLATE_API_BASE", "AITRANSLATE_API_KEY", "AITRANSLATE_MODEL", "AITRANSLATE_THINKING",
		"AITRANSLATE_TRANSPORT", "AITRANSLATE_WS_URL",
		"AITRANSLATE_IDLE_TIMEOUT", "AITRANSLATE_RETRY_BACKOFF", "AITRANSLATE_CACHE_CAPACITY",
		"AITRANSLATE_TTS_BASE", "AITRANSLATE_TTS_MODEL", "AITRANSLATE_TTS_SEGMENT_LENGTH", "AITRANSLATE_TTS_PARALLEL",
		"AITRANSLATE_AUDIO_CACHE_CAPACITY",
		"AITRANSLATE_DATA_DIR", "AITRANSLATE_SETTINGS_FILE", "AITRANSLATE_GLOSSARY_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Environment != "local" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected ambient defaults: %+v", cfg)
	}
	if cfg.APIBase != "https://api.z.ai/api/coding/paas/v4" || cfg.Model != "glm-4.7" || cfg.Thinking != "enabled" {
		t.Fatalf("unexpected api defaults: %+v", cfg)
	}
	if cfg.Transport != TransportHTTP {
		t.Fatalf("unexpected transport: %q", cfg.Transport)
	}
	if cfg.IdleTimeout != 60*time.Second || cfg.RetryBackoff != 250*time.Millisecond || cfg.CacheCapacity != 512 {
		t.Fatalf("unexpected request defaults: %+v", cfg)
	}
	if cfg.TTSBase != "https://api.z.ai/api/paas/v4" || cfg.TTSModel != "glm-tts" {
		t.Fatalf("unexpected speech api defaults: %+v", cfg)
	}
	if cfg.TTSSegmentLength != 800 || cfg.TTSParallel != 5 || cfg.AudioCacheCapacity != 100 {
		t.Fatalf("unexpected speech defaults: %+v", cfg)
	}
	if cfg.AudioDir() != filepath.Join(home, ".config", "ai-translate", "audio") {
		t.Fatalf("unexpected audio dir: %q", cfg.AudioDir())
	}
	if cfg.DataDir != filepath.Join(home, ".config", "ai-translate") {
		t.Fatalf("unexpected data dir: %q", cfg.DataDir)
	}
	if cfg.SettingsFile != ".ai-translate-config.json" || cfg.GlossaryFile != "" {
		t.Fatalf("unexpected storage defaults: %+v", cfg)
	}
	if cfg.DatabasePath() != filepath.Join(home, ".config", "ai-translate", "aitranslate.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	dataDir := t.TempDir()
	glossary := filepath.Join(dataDir, "glossary.txt")
	if err := os.WriteFile(glossary, []byte("cache => 缓存\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("AITRANSLATE_API_KEY", "env-key")
	t.Setenv("AITRANSLATE_TRANSPORT", " WebSocket ")
	t.Setenv("AITRANSLATE_WS_URL", "wss://example.com/stream")
	t.Setenv("AITRANSLATE_IDLE_TIMEOUT", "5s")
	t.Setenv("AITRANSLATE_RETRY_BACKOFF", "0s")
	t.Setenv("AITRANSLATE_CACHE_CAPACITY", "16")
	t.Setenv("AITRANSLATE_TTS_PARALLEL", "2")
	t.Setenv("AITRANSLATE_DATA_DIR", dataDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.APIKey != "env-key" || cfg.Transport != TransportWebsocket || cfg.WSURL != "wss://example.com/stream" {
		t.Fatalf("unexpected api config: %+v", cfg)
	}
	if cfg.IdleTimeout != 5*time.Second || cfg.RetryBackoff != 0 || cfg.CacheCapacity != 16 {
		t.Fatalf("unexpected request config: %+v", cfg)
	}
	if cfg.TTSParallel != 2 {
		t.Fatalf("unexpected speech parallelism: %d", cfg.TTSParallel)
	}
	if cfg.GlossaryFile != glossary {
		t.Fatalf("expected glossary fallback, got %q", cfg.GlossaryFile)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	envFile := filepath.Join(t.TempDir(), "custom.env")
	if err := os.WriteFile(envFile, []byte("AITRANSLATE_MODEL=glm-4.5\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("AITRANSLATE_ENV_FILE", envFile)
	t.Setenv("AITRANSLATE_DATA_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Model != "glm-4.5" || cfg.LogLevel != "debug" {
		t.Fatalf("expected env file values, got %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			APIBase:            "https://example.com",
			Transport:          TransportHTTP,
			IdleTimeout:        time.Second,
			CacheCapacity:      1,
			TTSBase:            "https://example.com/tts",
			TTSSegmentLength:   1,
			TTSParallel:        1,
			AudioCacheCapacity: 1,
			SettingsFile:       "settings.json",
		}
	}
	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(*Config){
		"AITRANSLATE_TRANSPORT":            func(c *Config) { c.Transport = "grpc" },
		"AITRANSLATE_WS_URL":               func(c *Config) { c.Transport = TransportWebsocket },
		"AITRANSLATE_API_BASE":             func(c *Config) { c.APIBase = " " },
		"AITRANSLATE_IDLE_TIMEOUT":         func(c *Config) { c.IdleTimeout = 0 },
		"AITRANSLATE_RETRY_BACKOFF":        func(c *Config) { c.RetryBackoff = -time.Second },
		"AITRANSLATE_CACHE_CAPACITY":       func(c *Config) { c.CacheCapacity = 0 },
		"AITRANSLATE_TTS_BASE":             func(c *Config) { c.TTSBase = "" },
		"AITRANSLATE_TTS_SEGMENT_LENGTH":   func(c *Config) { c.TTSSegmentLength = 0 },
		"AITRANSLATE_TTS_PARALLEL":         func(c *Config) { c.TTSParallel = 0 },
		"AITRANSLATE_AUDIO_CACHE_CAPACITY": func(c *Config) { c.AudioCacheCapacity = 0 },
		"AITRANSLATE_SETTINGS_FILE":        func(c *Config) { c.SettingsFile = "" },
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), name) {
			t.Fatalf("%s: expected validation error naming the variable, got %v", name, err)
		}
	}
}
