package speech

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergeWAVConcatenatesSamples(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "merged.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clips := [][]byte{
		wavClip(t, 8000, 1, 2, 3),
		wavClip(t, 8000, 4, 5),
		wavClip(t, 8000, -6),
	}
	if err := mergeWAV(f, clips); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	_ = f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	samples, rate := decodeSamples(t, raw)
	if rate != 8000 || !reflect.DeepEqual(samples, []int{1, 2, 3, 4, 5, -6}) {
		t.Fatalf("unexpected merged audio: rate=%d samples=%v", rate, samples)
	}
}

func TestMergeWAVRejectsMismatchedOrInvalidClips(t *testing.T) {
	t.Parallel()

	cases := map[string][][]byte{
		"none":        nil,
		"sample rate": {wavClip(t, 8000, 1), wavClip(t, 16000, 2)},
		"not wav":     {wavClip(t, 8000, 1), []byte("not audio at all")},
	}
	for name, clips := range cases {
		f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := mergeWAV(f, clips); err == nil {
			t.Fatalf("%s: expected merge error", name)
		}
		_ = f.Close()
	}
}
