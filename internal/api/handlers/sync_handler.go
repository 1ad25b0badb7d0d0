package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voicebridge/go-convai-mirror/internal/elevenlabs"
	"github.com/voicebridge/go-convai-mirror/internal/model"
	"github.com/voicebridge/go-convai-mirror/internal/repository"
)

// ISyncService lets the handler take a real sync service or a mock.
type ISyncService interface {
	SyncConversations(ctx context.Context, agentID string) (*model.SyncSummary, error)
}

type SyncHandler struct {
	SyncService ISyncService
	Repo        *repository.PostgresRepo
	AgentID     string
}

func NewSyncHandler(s ISyncService, r *repository.PostgresRepo, agentID string) *SyncHandler {
	return &SyncHandler{SyncService: s, Repo: r, AgentID: agentID}
}

type syncDetails struct {
	Message   string             `json:"message"`
	Error     string             `json:"error,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty"`
	Summary   *model.SyncSummary `json:"summary,omitempty"`
}

// TriggerSync runs one synchronous sync for the configured agent.
// POST /api/v1/sync/conversations
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	agentID := c.DefaultQuery("agent_id", h.AgentID)
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id not configured"})
		return
	}

	log.Printf("--- API TRIGGER: syncing conversations for agent %s ---", agentID)
	startTime := time.Now()

	summary, err := h.SyncService.SyncConversations(c.Request.Context(), agentID)
	durationMs := time.Since(startTime).Milliseconds()

	if err != nil {
		log.Printf("ERROR from sync service: %v", err)
		status, kind := classifySyncError(err)
		details, _ := json.Marshal(syncDetails{Message: "Sync failed", Error: err.Error(), ErrorKind: kind})
		if histErr := h.Repo.CreateSyncHistory(c.Request.Context(), agentID, "failed", durationMs, details); histErr != nil {
			log.Printf("WARNING: failed recording sync history: %v", histErr)
		}
		c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
		return
	}

	details, _ := json.Marshal(syncDetails{Message: "Sync completed", Summary: summary})
	if histErr := h.Repo.CreateSyncHistory(c.Request.Context(), agentID, "success", durationMs, details); histErr != nil {
		log.Printf("WARNING: failed recording sync history: %v", histErr)
	}

	c.JSON(http.StatusOK, summary)
}

// GetSyncHistory returns recent sync runs.
// GET /api/v1/sync/history
func (h *SyncHandler) GetSyncHistory(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	history, err := h.Repo.GetSyncHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sync history"})
		return
	}

	c.JSON(http.StatusOK, history)
}

// classifySyncError maps the engine's error taxonomy onto HTTP statuses
// for the trigger endpoint.
func classifySyncError(err error) (int, string) {
	var storageErr *repository.StorageError
	if errors.As(err, &storageErr) {
		return http.StatusInternalServerError, "storage_error"
	}

	var apiErr *elevenlabs.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == elevenlabs.KindRateLimited {
			return http.StatusTooManyRequests, string(apiErr.Kind)
		}
		return http.StatusBadGateway, string(apiErr.Kind)
	}

	var transportErr *elevenlabs.TransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway, "transport_error"
	}

	return http.StatusInternalServerError, "internal_error"
}
