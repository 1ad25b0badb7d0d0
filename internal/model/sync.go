package model

import (
	"encoding/json"
	"time"
)

// Stop reasons reported by a sync run. Truncation by the page ceiling is
// not an error, it just shows up here.
const (
	StopReasonExhausted  = "exhausted"
	StopReasonCheckpoint = "checkpoint"
	StopReasonPageLimit  = "page_limit"
)

// SyncSummary is what one sync run returns.
type SyncSummary struct {
	AgentID      string    `json:"agent_id"`
	NewCount     int       `json:"new_count"`
	TotalCount   int       `json:"total_count"`
	FailedDetail int       `json:"failed_detail_count"`
	PagesFetched int       `json:"pages_fetched"`
	StopReason   string    `json:"stop_reason"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

type SyncHistory struct {
	ID         string          `json:"id"`
	AgentID    string          `json:"agent_id"`
	SyncTime   time.Time       `json:"sync_time"`
	Status     string          `json:"status"`
	DurationMs int64           `json:"duration_ms"`
	Details    json.RawMessage `json:"details,omitempty"`
}
