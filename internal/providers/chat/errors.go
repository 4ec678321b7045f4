package chat

import (
	"encoding/json"
	"io"
	"strings"
)

const errorBodyLimit = 4096

// ErrorDetail extracts the message of an API error body, formatted as a
// ": message" suffix. It returns "" when the body is empty.
func ErrorDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return ": " + payload.Error.Message
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return ": " + text
	}
	return ""
}
