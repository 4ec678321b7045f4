package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"aitranslate/internal/cache"
	"aitranslate/internal/config"
	"aitranslate/internal/dispatch"
	"aitranslate/internal/glossary"
	"aitranslate/internal/logging"
	"aitranslate/internal/ports"
	"aitranslate/internal/providers/openai"
	"aitranslate/internal/providers/tts"
	"aitranslate/internal/providers/wsstream"
	"aitranslate/internal/settings"
	"aitranslate/internal/speech"
	"aitranslate/internal/store/sqlite"
	"aitranslate/internal/transcript"
	"aitranslate/internal/usecase"
)

const warmTimeout = 5 * time.Second

// Services is the assembled runtime graph.
type Services struct {
	Translator  *usecase.Translator
	Cache       *cache.Cache
	Dispatch    *dispatch.Channel
	Speaker     *speech.Speaker
	AudioCache  *speech.AudioCache
	Settings    *settings.Store
	Transcripts ports.TranscriptStore
	Glossary    *glossary.Glossary
	Config      config.Config
	Logger      zerolog.Logger

	db *sql.DB
}

// Build loads configuration from the environment and wires all backend
// dependencies for the current runtime.
func Build() (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return Assemble(*cfg, logger)
}

// Assemble wires services from an already loaded configuration. Storage
// failures degrade to an in-memory cache without history.
func Assemble(cfg config.Config, logger zerolog.Logger) (*Services, error) {
	g, err := glossary.Load(cfg.GlossaryFile)
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	var (
		persister   ports.CachePersister
		transcripts ports.TranscriptStore
		audioIndex  ports.AudioIndex
	)
	db, err := sqlite.Init(cfg.DatabasePath())
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.DatabasePath()).Msg("persistent storage unavailable, continuing in memory")
	} else {
		persister = sqlite.NewCacheRepo(db)
		audioIndex = sqlite.NewAudioRepo(db)
		transcripts = transcript.NewRecorder(sqlite.NewTranscriptRepo(db), transcript.NewLinguaDetector(), logger)
	}

	translationCache, err := cache.New(cfg.CacheCapacity, persister, logger)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	audioCache, err := speech.NewAudioCache(cfg.AudioCacheCapacity, audioIndex, logger)
	if err != nil {
		translationCache.Close()
		closeDB(db)
		return nil, err
	}
	warmCtx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	if err := translationCache.Warm(warmCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to warm translation cache")
	}
	if err := audioCache.Warm(warmCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to warm audio cache")
	}
	cancel()

	settingsStore := settings.Open(cfg.SettingsFile, cfg.APIKey, logger)
	channel := dispatch.New()

	deps := usecase.Deps{
		Transport:   transport,
		Cache:       translationCache,
		Dispatcher:  channel,
		Settings:    settingsStore,
		Transcripts: transcripts,
		Glossary:    g,
		Logger:      logger,
	}
	translator := usecase.NewTranslator(deps, usecase.Config{
		IdleTimeout:  cfg.IdleTimeout,
		RetryBackoff: cfg.RetryBackoff,
	})
	speaker := speech.NewSpeaker(speech.Deps{
		Synthesizer: tts.NewProvider(tts.Config{BaseURL: cfg.TTSBase, Model: cfg.TTSModel}),
		Cache:       audioCache,
		Settings:    settingsStore,
		Logger:      logger,
	}, speech.Config{
		Dir:           cfg.AudioDir(),
		SegmentLength: cfg.TTSSegmentLength,
		Parallel:      cfg.TTSParallel,
	})

	logger.Info().
		Str("transport", cfg.Transport).
		Str("model", cfg.Model).
		Int("cache_entries", translationCache.Len()).
		Int("audio_entries", audioCache.Len()).
		Int("glossary_entries", g.Len()).
		Msg("translator ready")

	return &Services{
		Translator:  translator,
		Cache:       translationCache,
		Dispatch:    channel,
		Speaker:     speaker,
		AudioCache:  audioCache,
		Settings:    settingsStore,
		Transcripts: transcripts,
		Glossary:    g,
		Config:      cfg,
		Logger:      logger,
		db:          db,
	}, nil
}

// Close cancels in-flight requests and speech, stops event delivery, flushes
// the cache and releases storage.
func (s *Services) Close() error {
	if s == nil {
		return nil
	}
	s.Translator.Shutdown()
	s.Speaker.Close()
	s.Dispatch.Close()
	s.Cache.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func newTransport(cfg config.Config) (ports.StreamTransport, error) {
	switch cfg.Transport {
	case config.TransportHTTP:
		return openai.NewProvider(openai.Config{
			BaseURL:  cfg.APIBase,
			Model:    cfg.Model,
			Thinking: cfg.Thinking,
		}), nil
	case config.TransportWebsocket:
		return wsstream.NewProvider(wsstream.Config{
			URL:      cfg.WSURL,
			Model:    cfg.Model,
			Thinking: cfg.Thinking,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
