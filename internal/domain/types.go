package domain

import (
	"time"

	"github.com/google/uuid"
)

// Handle identifies one accepted translation request.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// TranslationKey is the cache key for a translation. Fields are compared byte-for-byte.
type TranslationKey struct {
	SourceText     string
	TargetLanguage string
}

// CacheEntry is one completed translation kept by the cache.
type CacheEntry struct {
	Key       TranslationKey
	Result    string
	CreatedAt time.Time
}

// StreamEventKind tags the events produced by the stream decoder.
type StreamEventKind string

const (
	StreamEventDelta  StreamEventKind = "delta"
	StreamEventDone   StreamEventKind = "done"
	StreamEventFailed StreamEventKind = "failed"
)

// StreamEvent is one decoded server record.
type StreamEvent struct {
	Kind StreamEventKind
	Text string
	Err  *Error
}

func DeltaEvent(text string) StreamEvent {
	return StreamEvent{Kind: StreamEventDelta, Text: text}
}

func DoneEvent() StreamEvent {
	return StreamEvent{Kind: StreamEventDone}
}

func FailedEvent(err *Error) StreamEvent {
	return StreamEvent{Kind: StreamEventFailed, Err: err}
}

// UiEventKind tags the events delivered to the presentation layer.
type UiEventKind string

const (
	UiEventAppended  UiEventKind = "appended"
	UiEventCompleted UiEventKind = "completed"
	UiEventFailed    UiEventKind = "failed"
)

// UiEvent is one presentation update for a single request. Text carries the
// fragment for Appended, the full result for Completed and the message for Failed.
type UiEvent struct {
	Kind      UiEventKind `json:"kind"`
	Text      string      `json:"text"`
	ErrorKind ErrorKind   `json:"errorKind,omitempty"`
}

// Terminal reports whether the event ends its request's sequence.
func (e UiEvent) Terminal() bool {
	return e.Kind == UiEventCompleted || e.Kind == UiEventFailed
}

func Appended(fragment string) UiEvent {
	return UiEvent{Kind: UiEventAppended, Text: fragment}
}

func Completed(full string) UiEvent {
	return UiEvent{Kind: UiEventCompleted, Text: full}
}

func Failed(err *Error) UiEvent {
	return UiEvent{Kind: UiEventFailed, Text: err.Error(), ErrorKind: err.Kind}
}

// Settings are the user preferences persisted outside the core.
type Settings struct {
	APIKey                string  `json:"api_key"`
	TargetLanguage        string  `json:"target_language"`
	FontSize              float64 `json:"font_size"`
	DarkTheme             bool    `json:"dark_theme"`
	EnableKeywordAnalysis bool    `json:"enable_keyword_analysis"`
	TTSVoice              string  `json:"tts_voice"`
	TTSSpeed              float64 `json:"tts_speed"`
	TTSVolume             float64 `json:"tts_volume"`
}

// SpeechTarget names which pane a speech request reads aloud. Each target has
// at most one conversion running.
type SpeechTarget string

const (
	SpeechSource      SpeechTarget = "source"
	SpeechTranslation SpeechTarget = "translation"
)

// AudioEntry is one synthesized audio file kept by the audio cache.
type AudioEntry struct {
	Key       string
	Path      string
	CreatedAt time.Time
}

// SpeechResult points at a playable audio file.
type SpeechResult struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	Cached bool   `json:"cached"`
}

// Transcript is the record handed to the transcript store after a completion.
type Transcript struct {
	SourceText     string    `json:"sourceText"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	Result         string    `json:"result"`
	CompletedAt    time.Time `json:"completedAt"`
}

// RuntimeStatus summarizes the translator for the UI.
type RuntimeStatus struct {
	InFlight  int  `json:"inFlight"`
	CacheSize int  `json:"cacheSize"`
	Ready     bool `json:"ready"`
}
