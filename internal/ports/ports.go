package ports

import (
	"context"
	"io"

	"aitranslate/internal/domain"
)

// StreamRequest is everything a transport needs to open one translation stream.
type StreamRequest struct {
	SourceText      string
	TargetLanguage  string
	APIKey          string
	KeywordAnalysis bool
	GlossaryHints   []string
}

// StreamTransport opens the chunked response body for a translation request.
// Failures must be *domain.Error values so the controller can classify them.
type StreamTransport interface {
	OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error)
}

// TranslationCache maps completed translations by key.
type TranslationCache interface {
	Lookup(key domain.TranslationKey) (string, bool)
	Insert(key domain.TranslationKey, result string)
}

// CachePersister stores cache entries beyond process lifetime.
type CachePersister interface {
	LoadCache(ctx context.Context, limit int) ([]domain.CacheEntry, error)
	PutCache(ctx context.Context, entry domain.CacheEntry) error
	ClearCache(ctx context.Context) error
}

// Dispatcher carries UI events from background requests to the presentation layer.
type Dispatcher interface {
	Dispatch(handle domain.Handle, event domain.UiEvent) bool
}

// SettingsSource exposes the current user settings.
type SettingsSource interface {
	Current() domain.Settings
}

// TranscriptSink receives completed translations.
type TranscriptSink interface {
	Record(ctx context.Context, transcript domain.Transcript) error
}

// TranscriptStore persists transcripts for history views.
type TranscriptStore interface {
	TranscriptSink
	Recent(ctx context.Context, limit int) ([]domain.Transcript, error)
}

// LanguageDetector guesses the language of source text.
type LanguageDetector interface {
	Detect(text string) string
}

// Glossary supplies preferred term translations for the prompt.
type Glossary interface {
	Hints(text string) []string
}

// SpeechRequest is one text segment to synthesize.
type SpeechRequest struct {
	Text   string
	APIKey string
	Voice  string
	Speed  float64
	Volume float64
}

// SpeechSynthesizer converts text to WAV audio. Failures must be
// *domain.Error values.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// AudioIndex stores the audio cache index beyond process lifetime.
type AudioIndex interface {
	LoadAudio(ctx context.Context, limit int) ([]domain.AudioEntry, error)
	PutAudio(ctx context.Context, entry domain.AudioEntry) error
	DeleteAudio(ctx context.Context, key string) error
	ClearAudio(ctx context.Context) error
}
