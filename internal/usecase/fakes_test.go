package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

type fakeTransport struct {
	mu       sync.Mutex
	requests []ports.StreamRequest
	open     func(ctx context.Context, attempt int) (io.ReadCloser, error)
}

func (f *fakeTransport) OpenStream(ctx context.Context, req ports.StreamRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	attempt := len(f.requests)
	f.mu.Unlock()
	return f.open(ctx, attempt)
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) lastRequest() ports.StreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeTransport) waitForCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.calls() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d transport calls, got %d", n, f.calls())
}

func streamingTransport(fragments ...string) *fakeTransport {
	return bodyTransport(sseBody(fragments...))
}

func bodyTransport(body string) *fakeTransport {
	return &fakeTransport{open: func(context.Context, int) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}}
}

func sseBody(fragments ...string) string {
	return sseRecords(fragments...) + "data: [DONE]\n\n"
}

// sseRecords encodes one delta record per fragment without the completion marker.
func sseRecords(fragments ...string) string {
	var b strings.Builder
	for _, fragment := range fragments {
		payload, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]any{"content": fragment}}},
		})
		b.WriteString("data: ")
		b.Write(payload)
		b.WriteString("\n\n")
	}
	return b.String()
}

// blockingBody stays silent until the request context ends.
func blockingBody(ctx context.Context) io.ReadCloser {
	reader, writer := io.Pipe()
	go func() {
		<-ctx.Done()
		_ = writer.CloseWithError(ctx.Err())
	}()
	return reader
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[domain.TranslationKey]string
	inserts int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[domain.TranslationKey]string{}}
}

func (f *fakeCache) Lookup(key domain.TranslationKey) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.entries[key]
	return result, ok
}

func (f *fakeCache) Insert(key domain.TranslationKey, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = result
	f.inserts++
}

func (f *fakeCache) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events map[domain.Handle][]domain.UiEvent
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{events: map[domain.Handle][]domain.UiEvent{}}
}

func (f *fakeDispatcher) Dispatch(handle domain.Handle, event domain.UiEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[handle] = append(f.events[handle], event)
	return true
}

func (f *fakeDispatcher) snapshot(handle domain.Handle) []domain.UiEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UiEvent(nil), f.events[handle]...)
}

func (f *fakeDispatcher) waitFor(t *testing.T, handle domain.Handle, n int) []domain.UiEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := f.snapshot(handle); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %+v", n, f.snapshot(handle))
	return nil
}

type fakeSettings struct {
	settings domain.Settings
}

func (f fakeSettings) Current() domain.Settings {
	return f.settings
}

type fakeTranscripts struct {
	mu      sync.Mutex
	records []domain.Transcript
	err     error
}

func (f *fakeTranscripts) Record(_ context.Context, transcript domain.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, transcript)
	return f.err
}

func (f *fakeTranscripts) snapshot() []domain.Transcript {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Transcript(nil), f.records...)
}

type fakeGlossary struct {
	hints []string
}

func (f fakeGlossary) Hints(string) []string {
	return f.hints
}

var errRefused = errors.New("connection refused")

func connectionError() error {
	return domain.NewError(domain.ErrorKindConnection, "failed to reach translation endpoint", errRefused)
}

type harness struct {
	translator  *Translator
	transport   *fakeTransport
	cache       *fakeCache
	dispatcher  *fakeDispatcher
	transcripts *fakeTranscripts
}

func newHarness(transport *fakeTransport, settings domain.Settings, cfg Config) harness {
	h := harness{
		transport:   transport,
		cache:       newFakeCache(),
		dispatcher:  newFakeDispatcher(),
		transcripts: &fakeTranscripts{},
	}
	h.translator = NewTranslator(Deps{
		Transport:   transport,
		Cache:       h.cache,
		Dispatcher:  h.dispatcher,
		Settings:    fakeSettings{settings: settings},
		Transcripts: h.transcripts,
		Logger:      zerolog.Nop(),
	}, cfg)
	return h
}

func terminalEvents(events []domain.UiEvent) int {
	count := 0
	for _, event := range events {
		if event.Terminal() {
			count++
		}
	}
	return count
}
