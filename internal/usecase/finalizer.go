package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

const transcriptTimeout = 5 * time.Second

type completionFinalizer struct {
	cache       ports.TranslationCache
	dispatcher  ports.Dispatcher
	transcripts ports.TranscriptSink
	background  *sync.WaitGroup
	log         zerolog.Logger
}

func newCompletionFinalizer(
	cache ports.TranslationCache,
	dispatcher ports.Dispatcher,
	transcripts ports.TranscriptSink,
	background *sync.WaitGroup,
	log zerolog.Logger,
) completionFinalizer {
	return completionFinalizer{
		cache:       cache,
		dispatcher:  dispatcher,
		transcripts: transcripts,
		background:  background,
		log:         log,
	}
}

// Complete caches the result and emits Completed. Nothing happens if the
// request was cancelled first.
func (f completionFinalizer) Complete(active *activeRequest, text string) bool {
	completed := active.finish(f.dispatcher, domain.Completed(text), func() {
		if active.cacheable {
			f.cache.Insert(active.key, text)
		}
	})
	if completed {
		f.Record(active.key, text)
	}
	return completed
}

// Record hands the transcript to the store without waiting for it.
func (f completionFinalizer) Record(key domain.TranslationKey, text string) {
	if f.transcripts == nil {
		return
	}
	transcript := domain.Transcript{
		SourceText:     key.SourceText,
		TargetLanguage: key.TargetLanguage,
		Result:         text,
		CompletedAt:    time.Now().UTC(),
	}

	f.background.Add(1)
	go func() {
		defer f.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), transcriptTimeout)
		defer cancel()
		if err := f.transcripts.Record(ctx, transcript); err != nil {
			f.log.Warn().Err(err).Msg("failed to record transcript")
		}
	}()
}
