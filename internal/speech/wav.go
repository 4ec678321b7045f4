package speech

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type wavFormat struct {
	sampleRate  int
	bitDepth    int
	channels    int
	audioFormat int
}

// mergeWAV writes clips as a single WAV stream to dst. Every clip must share
// the first clip's format.
func mergeWAV(dst io.WriteSeeker, clips [][]byte) error {
	if len(clips) == 0 {
		return errors.New("no audio to merge")
	}

	var (
		merged *audio.IntBuffer
		format wavFormat
	)
	for i, clip := range clips {
		dec := wav.NewDecoder(bytes.NewReader(clip))
		if !dec.IsValidFile() {
			return fmt.Errorf("segment %d is not a valid wav file", i)
		}
		buf, err := dec.FullPCMBuffer()
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode segment %d: %w", i, err)
		}
		if buf == nil {
			return fmt.Errorf("segment %d has no samples", i)
		}

		f := wavFormat{
			sampleRate:  int(dec.SampleRate),
			bitDepth:    int(dec.BitDepth),
			channels:    int(dec.NumChans),
			audioFormat: int(dec.WavAudioFormat),
		}
		if i == 0 {
			merged, format = buf, f
			continue
		}
		if f != format {
			return fmt.Errorf("segment %d format %+v differs from %+v", i, f, format)
		}
		merged.Data = append(merged.Data, buf.Data...)
	}

	enc := wav.NewEncoder(dst, format.sampleRate, format.bitDepth, format.channels, format.audioFormat)
	if err := enc.Write(merged); err != nil {
		return fmt.Errorf("encode merged audio: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish merged audio: %w", err)
	}
	return nil
}
