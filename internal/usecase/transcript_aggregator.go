package usecase

import "strings"

// transcriptAggregator accumulates streamed fragments for one request. It is
// owned by the request goroutine.
type transcriptAggregator struct {
	builder   strings.Builder
	fragments int
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(fragment string) {
	a.builder.WriteString(fragment)
	a.fragments++
}

func (a *transcriptAggregator) Text() string {
	return a.builder.String()
}

func (a *transcriptAggregator) Fragments() int {
	return a.fragments
}
