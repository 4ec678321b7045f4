// Package transcript records completed translations for the history view.
package transcript

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

// Recorder tags each transcript with its detected source language before
// storing it. It implements ports.TranscriptStore.
type Recorder struct {
	store    ports.TranscriptStore
	detector ports.LanguageDetector
	log      zerolog.Logger
}

func NewRecorder(store ports.TranscriptStore, detector ports.LanguageDetector, log zerolog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		detector: detector,
		log:      log.With().Str("component", "transcript").Logger(),
	}
}

func (r *Recorder) Record(ctx context.Context, t domain.Transcript) error {
	if t.SourceLanguage == "" && r.detector != nil {
		t.SourceLanguage = r.detector.Detect(t.SourceText)
	}
	if err := r.store.Record(ctx, t); err != nil {
		return fmt.Errorf("record transcript: %w", err)
	}
	r.log.Debug().
		Str("source_language", t.SourceLanguage).
		Str("target_language", t.TargetLanguage).
		Int("result_length", len(t.Result)).
		Msg("transcript recorded")
	return nil
}

func (r *Recorder) Recent(ctx context.Context, limit int) ([]domain.Transcript, error) {
	return r.store.Recent(ctx, limit)
}
