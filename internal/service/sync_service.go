package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/voicebridge/go-convai-mirror/internal/elevenlabs"
	"github.com/voicebridge/go-convai-mirror/internal/model"
)

const (
	defaultMaxPages   = 20
	defaultBatchSize  = 8
	defaultPageDelay  = 100 * time.Millisecond
	defaultBatchDelay = 150 * time.Millisecond
)

// ConversationStore is what the sync engine needs from the persistent
// store. *repository.PostgresRepo implements it; tests fake it.
type ConversationStore interface {
	GetMaxStartTime(ctx context.Context, agentID string) (*int64, error)
	CountConversations(ctx context.Context, agentID string) (int, error)
	BulkUpsertConversations(ctx context.Context, rows []model.ConversationRow) error
	SetLastSynced(ctx context.Context, agentID string, ts time.Time) error
}

// ConversationFetcher is what the engine needs from the remote API.
// *elevenlabs.Client implements it.
type ConversationFetcher interface {
	ListConversations(ctx context.Context, agentID, cursor string, pageSize int) (*elevenlabs.ListPage, error)
	GetConversation(ctx context.Context, conversationID string) (map[string]interface{}, error)
}

// SyncService mirrors conversations for one agent into the local store.
// It holds no sync state between runs; the checkpoint is re-derived from
// stored rows every time.
type SyncService struct {
	Store  ConversationStore
	Client ConversationFetcher

	PageSize   int
	MaxPages   int
	BatchSize  int
	PageDelay  time.Duration
	BatchDelay time.Duration

	// Two runs for the same agent would race on the bulk upsert, so
	// runs are serialized per process. Cross-process exclusion is the
	// deployment's problem.
	mu  sync.Mutex
	now func() time.Time
}

func NewSyncService(store ConversationStore, client ConversationFetcher) *SyncService {
	return &SyncService{
		Store:      store,
		Client:     client,
		MaxPages:   defaultMaxPages,
		BatchSize:  defaultBatchSize,
		PageDelay:  defaultPageDelay,
		BatchDelay: defaultBatchDelay,
		now:        time.Now,
	}
}

type detailResult struct {
	item   model.ConversationListItem
	detail map[string]interface{}
}

// SyncConversations runs one incremental sync for agentID and returns a
// summary. Checkpoint-read, listing and bulk-write failures abort the
// run; a failed per-conversation detail fetch only degrades that row.
func (s *SyncService) SyncConversations(ctx context.Context, agentID string) (*model.SyncSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkpoint, err := s.Store.GetMaxStartTime(ctx, agentID)
	if err != nil {
		return nil, err
	}

	items, pages, stopReason, err := s.listNewSince(ctx, agentID, checkpoint)
	if err != nil {
		return nil, err
	}

	syncedAt := s.now()
	summary := &model.SyncSummary{
		AgentID:      agentID,
		PagesFetched: pages,
		StopReason:   stopReason,
		LastSyncedAt: syncedAt,
	}

	if len(items) == 0 {
		total, err := s.Store.CountConversations(ctx, agentID)
		if err != nil {
			return nil, err
		}
		summary.TotalCount = total
		return summary, nil
	}

	results, failed := s.fetchDetails(ctx, items)
	summary.FailedDetail = failed

	rows := make([]model.ConversationRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, BuildConversationRow(agentID, res.item, res.detail, syncedAt))
	}

	if err := s.Store.BulkUpsertConversations(ctx, rows); err != nil {
		return nil, err
	}
	if err := s.Store.SetLastSynced(ctx, agentID, syncedAt); err != nil {
		return nil, err
	}

	total, err := s.Store.CountConversations(ctx, agentID)
	if err != nil {
		return nil, err
	}

	summary.NewCount = len(rows)
	summary.TotalCount = total
	log.Printf("sync %s: %d new, %d total, %d detail failures (%d pages, stop=%s)",
		agentID, summary.NewCount, summary.TotalCount, failed, pages, stopReason)
	return summary, nil
}

// listNewSince walks the list endpoint newest-first and collects every
// item newer than the checkpoint. Upstream orders by descending start
// time, so the first in-checkpoint item ends the walk early. MaxPages
// bounds the walk no matter what upstream does; hitting it truncates
// silently and is only visible in the stop reason.
func (s *SyncService) listNewSince(ctx context.Context, agentID string, checkpoint *int64) ([]model.ConversationListItem, int, string, error) {
	var items []model.ConversationListItem
	cursor := ""
	pages := 0

	for {
		if pages >= s.MaxPages {
			return items, pages, model.StopReasonPageLimit, nil
		}
		if pages > 0 && s.PageDelay > 0 {
			time.Sleep(s.PageDelay)
		}

		page, err := s.Client.ListConversations(ctx, agentID, cursor, s.PageSize)
		if err != nil {
			return nil, pages, "", err
		}
		pages++

		for _, item := range page.Conversations {
			if checkpoint != nil && item.StartTimeUnix <= *checkpoint {
				return items, pages, model.StopReasonCheckpoint, nil
			}
			items = append(items, item)
		}

		if page.NextCursor == "" {
			return items, pages, model.StopReasonExhausted, nil
		}
		cursor = page.NextCursor
	}
}

// fetchDetails enriches items with their full payloads in fixed-size
// batches. Fetches within a batch run concurrently and the batch is
// awaited as a whole; one failure never touches its siblings. A failed
// fetch leaves detail nil so the row builder falls back to list data.
func (s *SyncService) fetchDetails(ctx context.Context, items []model.ConversationListItem) ([]detailResult, int) {
	results := make([]detailResult, len(items))
	failed := 0

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < len(items); start += batchSize {
		if start > 0 && s.BatchDelay > 0 {
			time.Sleep(s.BatchDelay)
		}

		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				item := items[i]
				detail, err := s.Client.GetConversation(ctx, item.ConversationID)
				if err != nil {
					log.Printf("sync: detail fetch failed for %s: %v", item.ConversationID, err)
					results[i] = detailResult{item: item}
					return
				}
				results[i] = detailResult{item: item, detail: detail}
			}(i)
		}
		wg.Wait()

		for i := start; i < end; i++ {
			if results[i].detail == nil {
				failed++
			}
		}
	}

	return results, failed
}
