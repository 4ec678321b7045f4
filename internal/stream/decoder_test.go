package stream

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"aitranslate/internal/domain"
)

func collect(r io.Reader) []domain.StreamEvent {
	var events []domain.StreamEvent
	for event := range NewDecoder(r).All() {
		events = append(events, event)
	}
	return events
}

func deltaRecord(text string) string {
	return `data: {"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"` + text + `"}}]}` + "\n"
}

func TestDecoderDeltasAndDone(t *testing.T) {
	t.Parallel()

	input := deltaRecord("你") + "\n" + deltaRecord("好") + "\n" + "data: [DONE]\n\n"
	events := collect(strings.NewReader(input))

	want := []domain.StreamEvent{
		domain.DeltaEvent("你"),
		domain.DeltaEvent("好"),
		domain.DoneEvent(),
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestDecoderChunkBoundaryIndependence(t *testing.T) {
	t.Parallel()

	inputs := []string{
		deltaRecord("Bon") + deltaRecord("jour") + ": keep-alive\n" + "data: [DONE]\n",
		deltaRecord("héllo wörld") + "data: [DONE]\r\n",
		deltaRecord("a") + "bad-record\n" + deltaRecord("b"),
		deltaRecord("partial"),
	}

	for _, input := range inputs {
		whole := collect(strings.NewReader(input))
		oneByte := collect(iotest.OneByteReader(strings.NewReader(input)))
		halves := collect(iotest.HalfReader(strings.NewReader(input)))

		if !reflect.DeepEqual(whole, oneByte) {
			t.Fatalf("one-byte reads diverged for %q:\nwhole=%+v\nbyte=%+v", input, whole, oneByte)
		}
		if !reflect.DeepEqual(whole, halves) {
			t.Fatalf("half reads diverged for %q:\nwhole=%+v\nhalf=%+v", input, whole, halves)
		}
	}
}

func TestDecoderMalformedRecordFailsOnce(t *testing.T) {
	t.Parallel()

	dec := NewDecoder(strings.NewReader("bad-record\n" + deltaRecord("never")))

	event, ok := dec.Next()
	if !ok || event.Kind != domain.StreamEventFailed {
		t.Fatalf("expected failed event, got %+v (ok=%t)", event, ok)
	}
	if event.Err == nil || event.Err.Kind != domain.ErrorKindProtocol {
		t.Fatalf("expected protocol error, got %+v", event.Err)
	}
	if _, ok := dec.Next(); ok {
		t.Fatalf("expected sequence to end after failure")
	}
}

func TestDecoderMalformedPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":   "data: {not json}\n",
		"wrong shape":    "data: 42\n",
		"unknown field":  "delta: hello\n",
		"invalid utf8":   "data: \xff\xfe\n",
		"truncated line": `data: {"choices":[`,
		"partial record": deltaRecord("x") + `data: {"choices":[{"delta"`,
		"unterminated":   `data: {"choices":[{"delta":{"content":"x"}}]}`,
	}

	for name, input := range cases {
		input := input
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			events := collect(strings.NewReader(input))
			last := events[len(events)-1]
			if last.Kind != domain.StreamEventFailed || last.Err.Kind != domain.ErrorKindProtocol {
				t.Fatalf("expected trailing protocol failure, got %+v", events)
			}
		})
	}
}

func TestDecoderCleanEndWithoutMarkerCompletes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"records":      deltaRecord("你") + "\n" + deltaRecord("好") + "\n",
		"empty body":   "",
		"framing tail": deltaRecord("你") + deltaRecord("好") + ": keep-alive\n\n",
	}

	for name, input := range cases {
		input := input
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			events := collect(iotest.HalfReader(strings.NewReader(input)))
			last := events[len(events)-1]
			if last.Kind != domain.StreamEventDone {
				t.Fatalf("expected done at clean end of stream, got %+v", events)
			}
			var text strings.Builder
			for _, event := range events[:len(events)-1] {
				text.WriteString(event.Text)
			}
			if input != "" && text.String() != "你好" {
				t.Fatalf("unexpected text %q", text.String())
			}
		})
	}
}

func TestDecoderServerErrorPayload(t *testing.T) {
	t.Parallel()

	events := collect(strings.NewReader(`data: {"error":{"message":"quota exceeded","code":429}}` + "\n"))
	if len(events) != 1 || events[0].Kind != domain.StreamEventFailed {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Err.Kind != domain.ErrorKindServer || events[0].Err.Error() != "quota exceeded" {
		t.Fatalf("unexpected error: %v", events[0].Err)
	}
}

func TestDecoderSkipsChunksWithoutContent(t *testing.T) {
	t.Parallel()

	input := `data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"reasoning_content":"thinking"}}]}` + "\n" +
		`data: {"choices":[]}` + "\n" +
		"event: message\nid: 7\nretry: 1000\n" +
		deltaRecord("") +
		"data: [DONE]\n"

	events := collect(strings.NewReader(input))
	want := []domain.StreamEvent{domain.DeltaEvent(""), domain.DoneEvent()}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestDecoderStopsAtDone(t *testing.T) {
	t.Parallel()

	events := collect(strings.NewReader("data: [DONE]\n" + deltaRecord("late")))
	if len(events) != 1 || events[0].Kind != domain.StreamEventDone {
		t.Fatalf("expected only done, got %+v", events)
	}
}

func TestDecoderReadErrorIsClassified(t *testing.T) {
	t.Parallel()

	r := io.MultiReader(strings.NewReader(deltaRecord("a")), iotest.ErrReader(domain.ErrIdleTimeout))
	events := collect(r)
	if len(events) != 2 {
		t.Fatalf("expected delta then failure, got %+v", events)
	}
	if events[1].Err.Kind != domain.ErrorKindTimeout || !errors.Is(events[1].Err, domain.ErrIdleTimeout) {
		t.Fatalf("expected timeout failure, got %v", events[1].Err)
	}
}

func TestDecoderRejectsOversizedRecord(t *testing.T) {
	t.Parallel()

	input := "data: " + strings.Repeat("x", maxRecordSize+1) + "\n"
	events := collect(strings.NewReader(input))
	if len(events) != 1 || events[0].Err == nil || !errors.Is(events[0].Err, errRecordTooLarge) {
		t.Fatalf("expected oversized record failure, got %d events", len(events))
	}
}
