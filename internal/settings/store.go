// Package settings persists user preferences in a JSON file validated against
// an embedded schema.
package settings

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"aitranslate/internal/domain"
)

//go:embed settings.schema.json
var settingsSchemaJSON string

var supportedLanguages = []string{
	"English",
	"中文",
	"日本語",
	"한국어",
	"Français",
	"Deutsch",
	"Español",
	"Português",
	"Русский",
	"Italiano",
}

var supportedVoices = []string{
	"Tongtong",
	"Chuichui",
	"Xiaochen",
	"Jam",
	"Kazi",
	"Douji",
	"Luodo",
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// Defaults returns the settings used when no file exists.
func Defaults() domain.Settings {
	return domain.Settings{
		TargetLanguage: "English",
		FontSize:       16,
		DarkTheme:      true,
		TTSVoice:       "Tongtong",
		TTSSpeed:       1,
		TTSVolume:      1,
	}
}

// SupportedLanguages lists the target languages offered in the UI.
func SupportedLanguages() []string {
	return append([]string(nil), supportedLanguages...)
}

// SupportedVoices lists the speech voices offered in the UI.
func SupportedVoices() []string {
	return append([]string(nil), supportedVoices...)
}

// Store implements ports.SettingsSource backed by a file.
type Store struct {
	path   string
	envKey string
	log    zerolog.Logger

	mu      sync.RWMutex
	current domain.Settings
}

// Open loads settings from path. A missing or invalid file yields defaults;
// an invalid file is logged and left untouched until the next Save. A
// non-empty envKey takes precedence over the file's api_key.
func Open(path, envKey string, log zerolog.Logger) *Store {
	s := &Store{
		path:    path,
		envKey:  strings.TrimSpace(envKey),
		log:     log.With().Str("component", "settings").Logger(),
		current: Defaults(),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Debug().Str("path", path).Msg("settings file not found, using defaults")
	case err != nil:
		s.log.Warn().Err(err).Str("path", path).Msg("failed to read settings, using defaults")
	default:
		loaded, err := decode(raw)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("invalid settings file, using defaults")
			break
		}
		s.current = loaded
	}
	return s
}

func (s *Store) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current := s.current
	if s.envKey != "" {
		current.APIKey = s.envKey
	}
	return current
}

// Save validates next and writes it to disk before it becomes current.
func (s *Store) Save(next domain.Settings) error {
	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := decode(raw); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFile(s.path, raw); err != nil {
		return err
	}
	s.current = next
	s.log.Info().Str("target_language", next.TargetLanguage).Msg("settings saved")
	return nil
}

func (s *Store) Path() string {
	return s.path
}

// decode validates raw against the schema and overlays it on the defaults.
func decode(raw []byte) (domain.Settings, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings JSON: %w", err)
	}
	schema, err := loadSchema()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return domain.Settings{}, fmt.Errorf("settings validation failed: %w", err)
	}

	settings := Defaults()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, nil
}

func writeFile(path string, raw []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("make settings dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("settings.schema.json", strings.NewReader(settingsSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("settings.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("settings file is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("settings file contains trailing content")
	}
	return value, nil
}
