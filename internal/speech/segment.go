package speech

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into segments of at most limit runes. Segments end at
// sentence punctuation where possible; a sentence longer than limit is cut
// at the limit.
func Split(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	var (
		segments []string
		current  []rune
	)
	flush := func(runes []rune) {
		if s := strings.TrimSpace(string(runes)); s != "" {
			segments = append(segments, s)
		}
	}

	for _, sentence := range sentences(text) {
		runes := []rune(sentence)
		if len(current)+len(runes) > limit {
			flush(current)
			current = current[:0]
		}
		for len(runes) > limit {
			flush(runes[:limit])
			runes = runes[limit:]
		}
		current = append(current, runes...)
	}
	flush(current)
	return segments
}

func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if !isSentenceEnd(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		out = append(out, text[start:end])
		start = end
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n', '。', '！', '？', '；':
		return true
	}
	return false
}
