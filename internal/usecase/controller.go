package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
	"aitranslate/internal/stream"
)

var ErrUnknownHandle = errors.New("unknown or finished translation handle")

const defaultIdleTimeout = 60 * time.Second

// Config controls request timing.
type Config struct {
	IdleTimeout  time.Duration
	RetryBackoff time.Duration
}

// Deps are the collaborators a Translator drives. Settings, Transcripts and
// Glossary are optional.
type Deps struct {
	Transport   ports.StreamTransport
	Cache       ports.TranslationCache
	Dispatcher  ports.Dispatcher
	Settings    ports.SettingsSource
	Transcripts ports.TranscriptSink
	Glossary    ports.Glossary
	Logger      zerolog.Logger
}

// Translator accepts translation requests, runs each one in the background and
// reports its progress through the dispatcher.
type Translator struct {
	transport  ports.StreamTransport
	cache      ports.TranslationCache
	dispatcher ports.Dispatcher
	settings   ports.SettingsSource
	glossary   ports.Glossary
	finalizer  completionFinalizer
	cfg        Config
	log        zerolog.Logger

	mu       sync.Mutex
	inflight map[domain.Handle]*activeRequest

	requests   sync.WaitGroup
	background sync.WaitGroup
}

func NewTranslator(deps Deps, cfg Config) *Translator {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	log := deps.Logger.With().Str("component", "translator").Logger()
	t := &Translator{
		transport:  deps.Transport,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		settings:   deps.Settings,
		glossary:   deps.Glossary,
		cfg:        cfg,
		log:        log,
		inflight:   make(map[domain.Handle]*activeRequest),
	}
	t.finalizer = newCompletionFinalizer(deps.Cache, deps.Dispatcher, deps.Transcripts, &t.background, log)
	return t
}

// Submit starts translating sourceText and returns immediately. A cache hit is
// answered with a single Completed event and never touches the transport.
func (t *Translator) Submit(ctx context.Context, sourceText, targetLanguage string) domain.Handle {
	handle := domain.NewHandle()
	key := domain.TranslationKey{SourceText: sourceText, TargetLanguage: targetLanguage}
	settings := t.currentSettings()
	cacheable := !settings.EnableKeywordAnalysis

	if cacheable {
		if result, ok := t.cache.Lookup(key); ok {
			t.log.Debug().Str("handle", string(handle)).Msg("served translation from cache")
			t.dispatcher.Dispatch(handle, domain.Completed(result))
			t.finalizer.Record(key, result)
			return handle
		}
	}

	requestCtx, cancel := context.WithCancelCause(ctx)
	active := newActiveRequest(handle, key, cacheable, cancel)

	t.mu.Lock()
	t.inflight[handle] = active
	t.mu.Unlock()

	req := ports.StreamRequest{
		SourceText:      sourceText,
		TargetLanguage:  targetLanguage,
		APIKey:          settings.APIKey,
		KeywordAnalysis: settings.EnableKeywordAnalysis,
	}
	if t.glossary != nil {
		req.GlossaryHints = t.glossary.Hints(sourceText)
	}

	t.requests.Add(1)
	go t.run(requestCtx, active, req)

	t.log.Debug().
		Str("handle", string(handle)).
		Str("target_language", targetLanguage).
		Int("source_length", len(sourceText)).
		Msg("translation submitted")
	return handle
}

// Cancel stops an in-flight request. No further events are emitted for the
// handle and nothing is cached.
func (t *Translator) Cancel(handle domain.Handle) error {
	t.mu.Lock()
	active, ok := t.inflight[handle]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	if !active.markCancelled() {
		return ErrUnknownHandle
	}

	active.cancel(context.Canceled)
	t.retire(active)
	t.log.Info().Str("handle", string(handle)).Msg("translation cancelled")
	return nil
}

// InFlight reports the number of requests still streaming.
func (t *Translator) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// Wait blocks until every request goroutine and pending transcript write has
// returned.
func (t *Translator) Wait() {
	t.requests.Wait()
	t.background.Wait()
}

// Shutdown cancels every in-flight request and waits for them to exit.
func (t *Translator) Shutdown() {
	t.mu.Lock()
	active := make([]*activeRequest, 0, len(t.inflight))
	for _, req := range t.inflight {
		active = append(active, req)
	}
	t.mu.Unlock()

	for _, req := range active {
		_ = t.Cancel(req.handle)
	}
	t.Wait()
}

func (t *Translator) run(ctx context.Context, active *activeRequest, req ports.StreamRequest) {
	defer t.requests.Done()
	defer t.retire(active)
	defer active.cancel(nil)

	log := t.log.With().Str("handle", string(active.handle)).Logger()

	watchdog := newIdleWatchdog(t.cfg.IdleTimeout, func() {
		active.cancel(domain.ErrIdleTimeout)
	})
	defer watchdog.Stop()

	body, attempts, err := openStream(ctx, t.transport, req, t.cfg.RetryBackoff)
	if err != nil {
		t.fail(ctx, active, err, log)
		return
	}
	defer body.Close()
	if attempts > 1 {
		log.Info().Int("attempts", attempts).Msg("translation stream opened after retry")
	}
	watchdog.Touch()

	aggregator := newTranscriptAggregator()
	for event := range stream.NewDecoder(watchdog.Wrap(body)).All() {
		switch event.Kind {
		case domain.StreamEventDelta:
			aggregator.Add(event.Text)
			if !active.emit(t.dispatcher, domain.Appended(event.Text)) {
				return
			}
		case domain.StreamEventDone:
			if t.finalizer.Complete(active, aggregator.Text()) {
				log.Info().
					Int("fragments", aggregator.Fragments()).
					Dur("elapsed", time.Since(active.startedAt)).
					Msg("translation completed")
			}
			return
		case domain.StreamEventFailed:
			var streamErr error
			if event.Err != nil {
				streamErr = event.Err
			}
			t.fail(ctx, active, streamErr, log)
			return
		}
	}
}

func (t *Translator) fail(ctx context.Context, active *activeRequest, err error, log zerolog.Logger) {
	if active.cancelled() {
		return
	}
	classified := classifyFailure(ctx, err)
	if classified.Kind == domain.ErrorKindCancelled {
		// Cancellation is a silent stop, whoever cancelled.
		if active.markCancelled() {
			log.Info().Msg("translation stopped by caller context")
		}
		return
	}
	if errors.Is(context.Cause(ctx), domain.ErrIdleTimeout) {
		log.Warn().Str("reason", describeTimeout(t.cfg.IdleTimeout)).Msg("translation stream timed out")
	}
	if active.finish(t.dispatcher, domain.Failed(classified), nil) {
		log.Warn().Str("kind", string(classified.Kind)).Err(classified).Msg("translation failed")
	}
}

func (t *Translator) retire(active *activeRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight[active.handle] == active {
		delete(t.inflight, active.handle)
	}
}

func (t *Translator) currentSettings() domain.Settings {
	if t.settings == nil {
		return domain.Settings{}
	}
	return t.settings.Current()
}
