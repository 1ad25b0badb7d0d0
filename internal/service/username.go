package service

import (
	"regexp"
	"strings"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

// greetingRe matches "hey/hello/hi <Name>" where the greeting is case
// insensitive but the name must be capitalized.
var greetingRe = regexp.MustCompile(`\b(?i:hey|hello|hi)[ ,]+([A-Z][a-zA-Z]+)`)

const (
	maxNameLen        = 40
	greetingTurnLimit = 20
)

// ExtractUserName derives the caller's name from a conversation detail.
// Best effort, in order: an explicit user_name dynamic variable, any
// dynamic variable whose key suggests a name, then a greeting spoken by
// the agent early in the transcript. Returns nil when nothing matches.
// The heuristic is lossy; treat the result as a display hint only.
func ExtractUserName(detail map[string]interface{}, transcript []model.TranscriptTurn) *string {
	vars := mapAt(mapAt(detail, "conversation_initiation_client_data"), "dynamic_variables")

	if name := safeString(vars["user_name"]); name != "" {
		return &name
	}

	for key, v := range vars {
		lower := strings.ToLower(key)
		if !strings.Contains(lower, "name") && !strings.Contains(lower, "user") {
			continue
		}
		if s, ok := v.(string); ok && s != "" && len(s) < maxNameLen {
			return &s
		}
	}

	for i, turn := range transcript {
		if i >= greetingTurnLimit {
			break
		}
		if turn.Role != "agent" {
			continue
		}
		if m := greetingRe.FindStringSubmatch(turn.Message); m != nil {
			name := m[1]
			return &name
		}
	}

	return nil
}
