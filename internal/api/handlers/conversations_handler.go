package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voicebridge/go-convai-mirror/internal/repository"
)

type ConversationHandler struct {
	Repo    *repository.PostgresRepo
	AgentID string
}

func NewConversationHandler(repo *repository.PostgresRepo, agentID string) *ConversationHandler {
	return &ConversationHandler{Repo: repo, AgentID: agentID}
}

// ListConversations serves mirrored rows, newest first.
// GET /api/v1/conversations?agent_id&status&from&to&limit
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	agentID := c.DefaultQuery("agent_id", h.AgentID)
	status := c.Query("status")

	var from, to *int64
	if v := c.Query("from"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			from = &parsed
		}
	}
	if v := c.Query("to"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			to = &parsed
		}
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	rows, err := h.Repo.ListConversations(c.Request.Context(), agentID, status, from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// GetConversation serves one mirrored row by id.
// GET /api/v1/conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	id := c.Param("id")
	row, err := h.Repo.GetConversation(c.Request.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

// GetAgentStats serves the row count and last-synced marker for an agent.
// GET /api/v1/agents/:id/stats
func (h *ConversationHandler) GetAgentStats(c *gin.Context) {
	agentID := c.Param("id")
	stats, err := h.Repo.GetAgentStats(c.Request.Context(), agentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
