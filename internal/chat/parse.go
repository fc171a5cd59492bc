package chat

import (
	"encoding/json"
	"strings"
)

// ParseEnvelope turns raw model output into an Envelope. Code fences around
// the JSON are stripped first; output that still fails to parse is wrapped as
// a plain-text message rather than rejected.
func ParseEnvelope(raw string) Envelope {
	cleaned := stripFences(raw)

	var env Envelope
	if err := json.Unmarshal([]byte(cleaned), &env); err == nil && env.Message != "" {
		if env.Links == nil {
			env.Links = []string{}
		}
		return env
	}
	return Envelope{Message: strings.TrimSpace(raw), Links: []string{}}
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
