package model

import (
	"encoding/json"
	"time"
)

// ConversationListItem is the minimal record returned by the ElevenLabs
// conversation list endpoint. It is never persisted directly; the sync
// service enriches it with the full detail payload first.
type ConversationListItem struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	Status         string `json:"status"`
	StartTimeUnix  int64  `json:"start_time_unix_secs"`
	CallDuration   int64  `json:"call_duration_secs"`
}

// UnmarshalJSON accepts both listing shapes seen upstream: the timing
// fields flat on the item, or nested under a metadata block. The nested
// block wins when present; a start time of zero there is treated as
// absent, not as the epoch.
func (c *ConversationListItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ConversationID string `json:"conversation_id"`
		AgentID        string `json:"agent_id"`
		Status         string `json:"status"`
		StartTimeUnix  int64  `json:"start_time_unix_secs"`
		CallDuration   int64  `json:"call_duration_secs"`
		Metadata       struct {
			StartTimeUnix     int64 `json:"start_time_unix"`
			StartTimeUnixSecs int64 `json:"start_time_unix_secs"`
			CallDuration      int64 `json:"call_duration_secs"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.ConversationID = raw.ConversationID
	c.AgentID = raw.AgentID
	c.Status = raw.Status
	c.StartTimeUnix = raw.StartTimeUnix
	c.CallDuration = raw.CallDuration

	if raw.Metadata.StartTimeUnix != 0 {
		c.StartTimeUnix = raw.Metadata.StartTimeUnix
	} else if raw.Metadata.StartTimeUnixSecs != 0 {
		c.StartTimeUnix = raw.Metadata.StartTimeUnixSecs
	}
	if raw.Metadata.CallDuration != 0 {
		c.CallDuration = raw.Metadata.CallDuration
	}
	return nil
}

// TranscriptTurn is one turn of a conversation transcript.
type TranscriptTurn struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

// EvalResult is a single named evaluation-criteria result from the
// analysis block.
type EvalResult struct {
	Result    string `json:"result"`
	Rationale string `json:"rationale"`
}

// ConversationRow is the canonical persisted shape of one conversation.
// Nullable fields use pointers; transcript and metadata are always present
// (empty slice / empty object when the detail fetch failed).
type ConversationRow struct {
	ConversationID string                 `json:"conversation_id"`
	AgentID        string                 `json:"agent_id"`
	Status         string                 `json:"status"`
	StartTimeUnix  int64                  `json:"start_time_unix"`
	CallDuration   int64                  `json:"call_duration_secs"`
	UserName       *string                `json:"user_name"`
	Transcript     []TranscriptTurn       `json:"transcript"`
	Metadata       map[string]interface{} `json:"metadata"`

	Cost     *float64 `json:"cost"`
	LLMCost  *float64 `json:"llm_cost"`
	LLMPrice *float64 `json:"llm_price"`

	Summary                *string     `json:"summary"`
	ConfidenceScore        *EvalResult `json:"confidence_score"`
	KnowledgeCoverageScore *EvalResult `json:"knowledge_coverage_score"`
	PrimaryQuestion        *string     `json:"primary_question"`
	QuestionCategory       *string     `json:"question_category"`

	SyncedAt time.Time `json:"synced_at"`
}

// AgentStats is the per-agent view served by the stats endpoint.
type AgentStats struct {
	AgentID      string     `json:"agent_id"`
	Total        int        `json:"total_conversations"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
}
