// Package stream decodes the server-sent event records of a streaming chat
// completion into typed translation events.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"unicode/utf8"

	"aitranslate/internal/domain"
)

// DoneSentinel is the data payload that marks the end of a stream.
const DoneSentinel = "[DONE]"

const maxRecordSize = 1 << 20

var errRecordTooLarge = errors.New("stream record exceeds 1 MiB")

// Decoder turns one response body into a finite sequence of StreamEvents.
// A Decoder is single-use: after a Done or Failed event it yields nothing more
// and bytes past the completion marker are never read.
type Decoder struct {
	r        *bufio.Reader
	line     []byte
	finished bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next blocks until the next event is available. It returns false once the
// sequence has ended.
func (d *Decoder) Next() (domain.StreamEvent, bool) {
	if d.finished {
		return domain.StreamEvent{}, false
	}

	for {
		line, err := d.readLine()
		if err == nil {
			event, ok := parseRecord(line)
			if !ok {
				continue
			}
			if event.Kind != domain.StreamEventDelta {
				d.finished = true
			}
			return event, true
		}

		d.finished = true
		switch {
		case errors.Is(err, errRecordTooLarge):
			return domain.FailedEvent(domain.NewError(domain.ErrorKindProtocol, "malformed stream record", err)), true
		case errors.Is(err, io.EOF) && len(bytes.TrimSpace(line)) > 0:
			return domain.FailedEvent(domain.Errorf(domain.ErrorKindProtocol, "stream ended in the middle of a record")), true
		case errors.Is(err, io.EOF):
			// A server that closes at a record boundary without [DONE] has finished.
			return domain.DoneEvent(), true
		default:
			return domain.FailedEvent(domain.AsError(err)), true
		}
	}
}

// All exposes the remaining events as an iterator.
func (d *Decoder) All() iter.Seq[domain.StreamEvent] {
	return func(yield func(domain.StreamEvent) bool) {
		for {
			event, ok := d.Next()
			if !ok || !yield(event) {
				return
			}
		}
	}
}

func (d *Decoder) readLine() ([]byte, error) {
	d.line = d.line[:0]
	for {
		chunk, err := d.r.ReadSlice('\n')
		d.line = append(d.line, chunk...)
		if len(d.line) > maxRecordSize {
			return nil, errRecordTooLarge
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return d.line, err
	}
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// parseRecord decodes one complete line. ok is false for framing lines that
// carry no event.
func parseRecord(line []byte) (domain.StreamEvent, bool) {
	if isFraming(line) {
		return domain.StreamEvent{}, false
	}
	line = bytes.TrimRight(line, "\r\n")

	if !utf8.Valid(line) {
		return domain.FailedEvent(domain.Errorf(domain.ErrorKindProtocol, "stream record is not valid UTF-8")), true
	}

	field, value, found := bytes.Cut(line, []byte{':'})
	if !found {
		return domain.FailedEvent(domain.Errorf(domain.ErrorKindProtocol, "malformed stream record %q", abbreviate(line))), true
	}
	switch string(field) {
	case "data":
	case "event", "id", "retry":
		return domain.StreamEvent{}, false
	default:
		return domain.FailedEvent(domain.Errorf(domain.ErrorKindProtocol, "unexpected stream field %q", abbreviate(field))), true
	}

	value = bytes.TrimPrefix(value, []byte{' '})
	if string(bytes.TrimSpace(value)) == DoneSentinel {
		return domain.DoneEvent(), true
	}

	var payload chunk
	if err := json.Unmarshal(value, &payload); err != nil {
		return domain.FailedEvent(domain.NewError(domain.ErrorKindProtocol, "malformed stream payload", err)), true
	}
	if payload.Error != nil {
		message := payload.Error.Message
		if message == "" {
			message = "translation endpoint returned an unknown error"
		}
		return domain.FailedEvent(domain.Errorf(domain.ErrorKindServer, "%s", message)), true
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Delta.Content == nil {
		return domain.StreamEvent{}, false
	}
	return domain.DeltaEvent(*payload.Choices[0].Delta.Content), true
}

// isFraming reports lines that separate or annotate records without carrying one.
func isFraming(line []byte) bool {
	trimmed := bytes.TrimSpace(line)
	return len(trimmed) == 0 || trimmed[0] == ':'
}

func abbreviate(b []byte) string {
	const limit = 64
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
