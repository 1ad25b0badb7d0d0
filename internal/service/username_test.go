package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

func dynamicVars(vars map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"conversation_initiation_client_data": map[string]interface{}{
			"dynamic_variables": vars,
		},
	}
}

func agentTurn(msg string) model.TranscriptTurn {
	return model.TranscriptTurn{Role: "agent", Message: msg}
}

func TestExtractUserName_ExplicitVariableWins(t *testing.T) {
	detail := dynamicVars(map[string]interface{}{
		"user_name":     "Ana",
		"customer_name": "ignored",
	})
	turns := []model.TranscriptTurn{agentTurn("Hello Bob!")}

	name := ExtractUserName(detail, turns)
	require.NotNil(t, name)
	assert.Equal(t, "Ana", *name)
}

func TestExtractUserName_FuzzyVariableScan(t *testing.T) {
	t.Run("name-ish key accepted", func(t *testing.T) {
		detail := dynamicVars(map[string]interface{}{"customer_name": "Budi"})
		name := ExtractUserName(detail, nil)
		require.NotNil(t, name)
		assert.Equal(t, "Budi", *name)
	})

	t.Run("overlong value rejected", func(t *testing.T) {
		detail := dynamicVars(map[string]interface{}{
			"customer_name": "this value is far too long to plausibly be a person's name at all",
		})
		assert.Nil(t, ExtractUserName(detail, nil))
	})

	t.Run("unrelated keys ignored", func(t *testing.T) {
		detail := dynamicVars(map[string]interface{}{"account_tier": "gold"})
		assert.Nil(t, ExtractUserName(detail, nil))
	})
}

func TestExtractUserName_GreetingHeuristic(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"hello", "Hello Maria, thanks for calling.", "Maria"},
		{"hi lowercase greeting", "hi Tom!", "Tom"},
		{"hey with comma", "Hey, Sam. What can I do for you?", "Sam"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			turns := []model.TranscriptTurn{agentTurn(tc.message)}
			name := ExtractUserName(nil, turns)
			require.NotNil(t, name)
			assert.Equal(t, tc.want, *name)
		})
	}
}

func TestExtractUserName_GreetingMisses(t *testing.T) {
	// The heuristic is lossy on purpose: lowercase names, user turns and
	// late greetings all produce no match rather than a wrong one.
	t.Run("lowercase name not matched", func(t *testing.T) {
		turns := []model.TranscriptTurn{agentTurn("hello there, how are you")}
		assert.Nil(t, ExtractUserName(nil, turns))
	})

	t.Run("user turns not scanned", func(t *testing.T) {
		turns := []model.TranscriptTurn{
			{Role: "user", Message: "Hi Alex speaking"},
		}
		assert.Nil(t, ExtractUserName(nil, turns))
	})

	t.Run("greeting past turn limit ignored", func(t *testing.T) {
		turns := make([]model.TranscriptTurn, 0, 21)
		for i := 0; i < 20; i++ {
			turns = append(turns, agentTurn("one moment please"))
		}
		turns = append(turns, agentTurn("Hello Maria"))
		assert.Nil(t, ExtractUserName(nil, turns))
	})

	t.Run("nothing at all", func(t *testing.T) {
		assert.Nil(t, ExtractUserName(nil, nil))
	})
}
