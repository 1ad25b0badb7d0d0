package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

// BuildConversationRow normalizes a (list item, detail) pair into the
// canonical row. detail may be nil when the per-conversation fetch
// failed; the row is then built from list-level data alone. Extraction
// order per field: detail first, list item second, typed default last.
// Missing nested paths never panic, they fall through to the default.
func BuildConversationRow(agentID string, item model.ConversationListItem, detail map[string]interface{}, syncedAt time.Time) model.ConversationRow {
	row := model.ConversationRow{
		ConversationID: item.ConversationID,
		AgentID:        agentID,
		Status:         item.Status,
		StartTimeUnix:  item.StartTimeUnix,
		CallDuration:   item.CallDuration,
		Transcript:     []model.TranscriptTurn{},
		Metadata:       map[string]interface{}{},
		SyncedAt:       syncedAt,
	}

	if detail == nil {
		return row
	}

	if s := safeString(detail["status"]); s != "" {
		row.Status = s
	}

	metadata := mapAt(detail, "metadata")
	if metadata != nil {
		row.Metadata = metadata
		if v, ok := tryFloatFromInterface(metadata["start_time_unix_secs"]); ok {
			row.StartTimeUnix = int64(v)
		}
		if v, ok := tryFloatFromInterface(metadata["call_duration_secs"]); ok {
			row.CallDuration = int64(v)
		}
	}

	row.Transcript = extractTranscript(detail["transcript"])

	// Cost figures live under metadata.charging. llm_usage inside it is
	// keyed by an opaque model name; upstream sends exactly one relevant
	// entry, so we take an arbitrary single value from the map.
	charging := mapAt(metadata, "charging")
	row.Cost = floatPtrAt(charging, "call_charge")
	row.LLMPrice = floatPtrAt(charging, "llm_price")
	if usage := firstMapValue(mapAt(charging, "llm_usage")); usage != nil {
		row.LLMCost = floatPtrAt(usage, "llm_cost")
	}

	analysis := mapAt(detail, "analysis")
	if s := safeString(analysis["transcript_summary"]); s != "" {
		row.Summary = &s
	}

	// Named lookups; unrecognized keys in these maps are ignored so new
	// upstream criteria do not break the sync.
	criteria := mapAt(analysis, "evaluation_criteria_results")
	row.ConfidenceScore = extractEvalResult(criteria, "confidence_score")
	row.KnowledgeCoverageScore = extractEvalResult(criteria, "knowledge_coverage_score")

	collected := mapAt(analysis, "data_collection_results")
	row.PrimaryQuestion = extractCollectedValue(collected, "primary_question")
	row.QuestionCategory = extractCollectedValue(collected, "question_category")

	row.UserName = ExtractUserName(detail, row.Transcript)

	return row
}

func extractTranscript(v interface{}) []model.TranscriptTurn {
	turns := []model.TranscriptTurn{}
	arr, ok := v.([]interface{})
	if !ok {
		return turns
	}
	for _, raw := range arr {
		turn, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		t := model.TranscriptTurn{
			Role:    safeString(turn["role"]),
			Message: safeString(turn["message"]),
		}
		if secs, ok := tryFloatFromInterface(turn["time_in_call_secs"]); ok {
			t.TimeInCallSecs = secs
		}
		turns = append(turns, t)
	}
	return turns
}

func extractEvalResult(criteria map[string]interface{}, key string) *model.EvalResult {
	entry := mapAt(criteria, key)
	if entry == nil {
		return nil
	}
	return &model.EvalResult{
		Result:    safeString(entry["result"]),
		Rationale: safeString(entry["rationale"]),
	}
}

func extractCollectedValue(collected map[string]interface{}, key string) *string {
	entry := mapAt(collected, key)
	if entry == nil {
		return nil
	}
	if s := safeString(entry["value"]); s != "" {
		return &s
	}
	return nil
}

// mapAt returns m[key] as a map, or nil. A nil receiver is fine, which
// keeps chained lookups flat.
func mapAt(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]interface{})
	return child
}

// firstMapValue returns an arbitrary value of a map whose keys are
// opaque (map iteration order). Nil or empty maps yield nil.
func firstMapValue(m map[string]interface{}) map[string]interface{} {
	for _, v := range m {
		if child, ok := v.(map[string]interface{}); ok {
			return child
		}
	}
	return nil
}

func floatPtrAt(m map[string]interface{}, key string) *float64 {
	if m == nil {
		return nil
	}
	if v, ok := tryFloatFromInterface(m[key]); ok {
		return &v
	}
	return nil
}

func safeString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// tryFloatFromInterface parses a numeric value out of decoded JSON
// (handles float64, ints, json.Number and numeric strings).
func tryFloatFromInterface(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
