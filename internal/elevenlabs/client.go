package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

const DefaultBaseURL = "https://api.elevenlabs.io"

// Client is a thin typed wrapper over the ElevenLabs Conversational AI
// API. It classifies failures but never retries; retry policy belongs to
// the caller.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
}

// ListPage is one page of the conversation list endpoint.
type ListPage struct {
	Conversations []model.ConversationListItem `json:"conversations"`
	NextCursor    string                       `json:"next_cursor"`
	HasMore       bool                         `json:"has_more"`
}

// ListConversations fetches one page of conversations for an agent.
// cursor may be empty for the first page; pageSize <= 0 leaves the
// upstream default in place.
func (c *Client) ListConversations(ctx context.Context, agentID, cursor string, pageSize int) (*ListPage, error) {
	q := url.Values{}
	q.Set("agent_id", agentID)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	b, err := c.get(ctx, "/v1/convai/conversations", q)
	if err != nil {
		return nil, err
	}
	var page ListPage
	if err := json.Unmarshal(b, &page); err != nil {
		return nil, fmt.Errorf("decode conversation list: %w", err)
	}
	return &page, nil
}

// GetConversation fetches the full detail payload for one conversation.
// The shape varies across records, so it is returned as a raw map and
// picked apart defensively by the row builder.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (map[string]interface{}, error) {
	b, err := c.get(ctx, "/v1/convai/conversations/"+conversationID, nil)
	if err != nil {
		return nil, err
	}
	var detail map[string]interface{}
	if err := json.Unmarshal(b, &detail); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", conversationID, err)
	}
	return detail, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.APIKey)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 400 {
		return nil, &APIError{
			Kind:    classifyStatus(res.StatusCode),
			Status:  res.StatusCode,
			Message: parseAPIMessage(body),
		}
	}
	return body, nil
}
