// Package glossary loads preferred term translations and reports which ones
// apply to a piece of source text.
package glossary

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// entry hints a preferred translation when it applies to the input.
type entry interface {
	Hint(input string) (hint string, ok bool)
}

// Glossary implements ports.Glossary from a line-oriented file:
//
//	# comment
//	pull request => 拉取请求
//	s/\bk8s\b/Kubernetes/
type Glossary struct {
	entries []entry
}

// Load reads path. An empty path or missing file yields an empty glossary.
func Load(path string) (*Glossary, error) {
	if strings.TrimSpace(path) == "" {
		return &Glossary{}, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Glossary{}, nil
		}
		return nil, fmt.Errorf("failed to read glossary file %q: %w", path, err)
	}

	g, err := Parse(string(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse glossary file %q: %w", path, err)
	}
	return g, nil
}

// Parse builds a glossary from in-memory contents.
func Parse(contents string) (*Glossary, error) {
	var entries []entry
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		entries = append(entries, e)
	}
	return &Glossary{entries: entries}, nil
}

// Hints returns the "source => target" lines that apply to text, in file
// order and without duplicates.
func (g *Glossary) Hints(text string) []string {
	if g == nil || len(g.entries) == 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	var hints []string
	seen := make(map[string]struct{})
	for _, e := range g.entries {
		hint, ok := e.Hint(text)
		if !ok {
			continue
		}
		if _, dup := seen[hint]; dup {
			continue
		}
		seen[hint] = struct{}{}
		hints = append(hints, hint)
	}
	return hints
}

func (g *Glossary) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// parseLine accepts a sed-style substitution or a literal "term => translation".
func parseLine(line string) (entry, error) {
	switch {
	case looksLikeRegexEntry(line):
		return parseRegexEntry(line)
	case strings.Contains(line, "=>"):
		return parseLiteralEntry(line)
	default:
		return nil, errors.New("unsupported glossary format")
	}
}

type literalEntry struct {
	term        string
	translation string
	re          *regexp.Regexp
}

func parseLiteralEntry(line string) (entry, error) {
	parts := strings.SplitN(line, "=>", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid glossary entry")
	}
	term := strings.TrimSpace(parts[0])
	translation := strings.TrimSpace(parts[1])
	if term == "" {
		return nil, errors.New("glossary term cannot be empty")
	}
	if translation == "" {
		return nil, errors.New("glossary translation cannot be empty")
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
	if err != nil {
		return nil, fmt.Errorf("invalid glossary term: %w", err)
	}
	return literalEntry{term: term, translation: translation, re: re}, nil
}

func (e literalEntry) Hint(input string) (string, bool) {
	if !e.re.MatchString(input) {
		return "", false
	}
	return e.term + " => " + e.translation, true
}

// regexEntry hints the first match, expanded with the replacement template.
type regexEntry struct {
	re          *regexp.Regexp
	replacement string
}

func parseRegexEntry(line string) (entry, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex entry")
	}
	delim := line[1]
	if isAlphaNumericOrSpace(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, pos, err := parseDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := parseDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}
	if strings.TrimSpace(replacement) == "" {
		return nil, errors.New("glossary translation cannot be empty")
	}

	ignoreCase := true
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'c':
			ignoreCase = false
		case ' ':
			continue
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}
	if ignoreCase {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexEntry{re: re, replacement: replacement}, nil
}

func (e regexEntry) Hint(input string) (string, bool) {
	loc := e.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return "", false
	}
	matched := input[loc[0]:loc[1]]
	translated := string(e.re.ExpandString(nil, e.replacement, input, loc))
	return matched + " => " + translated, true
}

func parseDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		if escaped {
			builder.WriteByte(char)
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			builder.WriteByte(char)
			continue
		}
		if char == delim {
			return builder.String(), index + 1, nil
		}
		builder.WriteByte(char)
	}
	return "", 0, errors.New("unterminated expression")
}

func isAlphaNumericOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}

func looksLikeRegexEntry(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isAlphaNumericOrSpace(line[1])
}
