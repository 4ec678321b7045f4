// Package chat builds the chat-completion payload shared by the streaming transports.
package chat

import (
	"fmt"
	"strings"

	"aitranslate/internal/ports"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Thinking toggles the endpoint's reasoning mode.
type Thinking struct {
	Type string `json:"type"`
}

// Request is the streaming chat-completion body.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Thinking *Thinking `json:"thinking,omitempty"`
}

// Options are the endpoint-level settings shared by every request.
type Options struct {
	Model    string
	Thinking string
}

// NewRequest builds the body for one translation.
func NewRequest(opts Options, req ports.StreamRequest) Request {
	body := Request{
		Model:    opts.Model,
		Messages: []Message{{Role: "user", Content: Prompt(req)}},
		Stream:   true,
	}
	if thinking := strings.TrimSpace(opts.Thinking); thinking != "" {
		body.Thinking = &Thinking{Type: thinking}
	}
	return body
}

// Prompt renders the translation instruction for req.
func Prompt(req ports.StreamRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following text to %s. Only output the translation, nothing else", req.TargetLanguage)
	if req.KeywordAnalysis {
		b.WriteString(", then a blank line and a \"Key terms:\" list explaining the important words and phrases of the source text")
	}
	if len(req.GlossaryHints) > 0 {
		b.WriteString(". Use these term translations:\n")
		for _, hint := range req.GlossaryHints {
			b.WriteString("- " + hint + "\n")
		}
		b.WriteString("\nText")
	}
	b.WriteString(":\n\n")
	b.WriteString(req.SourceText)
	return b.String()
}
