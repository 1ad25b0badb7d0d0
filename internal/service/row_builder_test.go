package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

var testSyncedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func listItem() model.ConversationListItem {
	return model.ConversationListItem{
		ConversationID: "conv_123",
		AgentID:        "agent_1",
		Status:         "done",
		StartTimeUnix:  1717200000,
		CallDuration:   95,
	}
}

func detailFromJSON(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &detail))
	return detail
}

func TestBuildConversationRow_NilDetailBuildsDegradedRow(t *testing.T) {
	row := BuildConversationRow("agent_1", listItem(), nil, testSyncedAt)

	assert.Equal(t, "conv_123", row.ConversationID)
	assert.Equal(t, "agent_1", row.AgentID)
	assert.Equal(t, "done", row.Status)
	assert.Equal(t, int64(1717200000), row.StartTimeUnix)
	assert.Equal(t, int64(95), row.CallDuration)

	// Degraded, not dropped: typed defaults instead of nils.
	assert.NotNil(t, row.Transcript)
	assert.Empty(t, row.Transcript)
	assert.NotNil(t, row.Metadata)
	assert.Empty(t, row.Metadata)
	assert.Nil(t, row.Cost)
	assert.Nil(t, row.LLMCost)
	assert.Nil(t, row.LLMPrice)
	assert.Nil(t, row.Summary)
	assert.Nil(t, row.ConfidenceScore)
	assert.Nil(t, row.UserName)
	assert.Equal(t, testSyncedAt, row.SyncedAt)
}

func TestBuildConversationRow_FullDetail(t *testing.T) {
	detail := detailFromJSON(t, `{
		"status": "processed",
		"transcript": [
			{"role": "agent", "message": "Hello Maria, how can I help?", "time_in_call_secs": 0},
			{"role": "user", "message": "I have a billing question.", "time_in_call_secs": 4.5}
		],
		"metadata": {
			"start_time_unix_secs": 1717209999,
			"call_duration_secs": 120,
			"charging": {
				"call_charge": 1.25,
				"llm_price": 0.002,
				"llm_usage": {
					"gpt-4o-mini": {"llm_cost": 0.0009}
				}
			}
		},
		"analysis": {
			"transcript_summary": "Caller asked about billing.",
			"evaluation_criteria_results": {
				"confidence_score": {"result": "high", "rationale": "clear answers"},
				"knowledge_coverage_score": {"result": "partial", "rationale": "one gap"},
				"some_future_criterion": {"result": "n/a"}
			},
			"data_collection_results": {
				"primary_question": {"value": "billing dispute"},
				"question_category": {"value": "billing"}
			}
		}
	}`)

	row := BuildConversationRow("agent_1", listItem(), detail, testSyncedAt)

	assert.Equal(t, "processed", row.Status)
	assert.Equal(t, int64(1717209999), row.StartTimeUnix)
	assert.Equal(t, int64(120), row.CallDuration)

	require.Len(t, row.Transcript, 2)
	assert.Equal(t, "agent", row.Transcript[0].Role)
	assert.Equal(t, 4.5, row.Transcript[1].TimeInCallSecs)

	require.NotNil(t, row.Cost)
	assert.Equal(t, 1.25, *row.Cost)
	require.NotNil(t, row.LLMPrice)
	assert.Equal(t, 0.002, *row.LLMPrice)
	require.NotNil(t, row.LLMCost)
	assert.Equal(t, 0.0009, *row.LLMCost)

	require.NotNil(t, row.Summary)
	assert.Equal(t, "Caller asked about billing.", *row.Summary)

	require.NotNil(t, row.ConfidenceScore)
	assert.Equal(t, "high", row.ConfidenceScore.Result)
	assert.Equal(t, "clear answers", row.ConfidenceScore.Rationale)
	require.NotNil(t, row.KnowledgeCoverageScore)
	assert.Equal(t, "partial", row.KnowledgeCoverageScore.Result)

	require.NotNil(t, row.PrimaryQuestion)
	assert.Equal(t, "billing dispute", *row.PrimaryQuestion)
	require.NotNil(t, row.QuestionCategory)
	assert.Equal(t, "billing", *row.QuestionCategory)

	require.NotNil(t, row.UserName)
	assert.Equal(t, "Maria", *row.UserName)
}

func TestBuildConversationRow_MissingChargingBlock(t *testing.T) {
	detail := detailFromJSON(t, `{
		"status": "processed",
		"metadata": {"call_duration_secs": 60}
	}`)

	row := BuildConversationRow("agent_1", listItem(), detail, testSyncedAt)

	assert.Nil(t, row.Cost)
	assert.Nil(t, row.LLMCost)
	assert.Nil(t, row.LLMPrice)
	assert.NotNil(t, row.Transcript)
	assert.Empty(t, row.Transcript)
	assert.NotNil(t, row.Metadata)
}

func TestBuildConversationRow_LLMUsageMapCardinality(t *testing.T) {
	t.Run("zero entries yields nil llm_cost", func(t *testing.T) {
		detail := detailFromJSON(t, `{
			"metadata": {"charging": {"llm_usage": {}}}
		}`)
		row := BuildConversationRow("agent_1", listItem(), detail, testSyncedAt)
		assert.Nil(t, row.LLMCost)
	})

	// Upstream promises a single relevant entry; with several we take an
	// arbitrary one rather than guessing which matters.
	t.Run("multiple entries yields one of them", func(t *testing.T) {
		detail := detailFromJSON(t, `{
			"metadata": {"charging": {"llm_usage": {
				"model-a": {"llm_cost": 0.1},
				"model-b": {"llm_cost": 0.2}
			}}}
		}`)
		row := BuildConversationRow("agent_1", listItem(), detail, testSyncedAt)
		require.NotNil(t, row.LLMCost)
		assert.Contains(t, []float64{0.1, 0.2}, *row.LLMCost)
	})
}

func TestBuildConversationRow_MissingAnalysisKeys(t *testing.T) {
	detail := detailFromJSON(t, `{
		"analysis": {
			"evaluation_criteria_results": {"unrelated_key": {"result": "ok"}},
			"data_collection_results": {}
		}
	}`)

	row := BuildConversationRow("agent_1", listItem(), detail, testSyncedAt)

	assert.Nil(t, row.ConfidenceScore)
	assert.Nil(t, row.KnowledgeCoverageScore)
	assert.Nil(t, row.PrimaryQuestion)
	assert.Nil(t, row.QuestionCategory)
	assert.Nil(t, row.Summary)
}

func TestTryFloatFromInterface(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want float64
		ok   bool
	}{
		{"float64", 12.5, 12.5, true},
		{"int", 7, 7, true},
		{"numeric string", " 42 ", 42, true},
		{"json.Number", json.Number("3.5"), 3.5, true},
		{"nil", nil, 0, false},
		{"garbage string", "abc", 0, false},
		{"bool", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tryFloatFromInterface(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
