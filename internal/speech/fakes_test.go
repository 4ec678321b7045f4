package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

// wavClip encodes 16-bit mono samples as a WAV file.
func wavClip(t *testing.T, sampleRate int, samples ...int) []byte {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "clip-*.wav")
	if err != nil {
		t.Fatalf("create clip: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode clip: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	_ = f.Close()
	raw, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	return raw
}

func decodeSamples(t *testing.T, raw []byte) ([]int, int) {
	t.Helper()
	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		t.Fatalf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if (err != nil && !errors.Is(err, io.EOF)) || buf == nil {
		t.Fatalf("decode failed: %v", err)
	}
	return buf.Data, int(dec.SampleRate)
}

type fakeSynthesizer struct {
	mu       sync.Mutex
	requests []ports.SpeechRequest
	started  chan string
	respond  func(ctx context.Context, req ports.SpeechRequest) ([]byte, error)
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req ports.SpeechRequest) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- req.Text
	}
	return f.respond(ctx, req)
}

func (f *fakeSynthesizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSynthesizer) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, req := range f.requests {
		out = append(out, req.Text)
	}
	sort.Strings(out)
	return out
}

type fakeSettings struct {
	settings domain.Settings
}

func (f fakeSettings) Current() domain.Settings {
	return f.settings
}

type fakeIndex struct {
	mu      sync.Mutex
	entries map[string]domain.AudioEntry
	order   []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: map[string]domain.AudioEntry{}}
}

func (f *fakeIndex) LoadAudio(_ context.Context, limit int) ([]domain.AudioEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AudioEntry
	for _, key := range f.order {
		if entry, ok := f.entries[key]; ok {
			out = append(out, entry)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeIndex) PutAudio(_ context.Context, entry domain.AudioEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[entry.Key]; !ok {
		f.order = append(f.order, entry.Key)
	}
	f.entries[entry.Key] = entry
	return nil
}

func (f *fakeIndex) DeleteAudio(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeIndex) ClearAudio(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = map[string]domain.AudioEntry{}
	f.order = nil
	return nil
}

func (f *fakeIndex) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := dir + string(os.PathSeparator) + name
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
