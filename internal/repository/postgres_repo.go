package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

type DBConfig struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// StorageError wraps any failure talking to Postgres so the sync engine
// can tell a storage problem apart from a remote one.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepoFromConfig(cfg *DBConfig) (*PostgresRepo, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Pass, cfg.Name)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// ping
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepo{DB: db}, nil
}

func (r *PostgresRepo) RunMigrations(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
		`CREATE TABLE IF NOT EXISTS admins (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            username VARCHAR(100) UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS agents (
            agent_id TEXT PRIMARY KEY,
            last_synced_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            conversation_id TEXT PRIMARY KEY,
            agent_id TEXT NOT NULL,
            status TEXT,
            start_time_unix BIGINT,
            call_duration_secs BIGINT,
            user_name TEXT,
            transcript JSONB NOT NULL DEFAULT '[]'::jsonb,
            metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
            cost DOUBLE PRECISION,
            llm_cost DOUBLE PRECISION,
            llm_price DOUBLE PRECISION,
            summary TEXT,
            confidence_score JSONB,
            knowledge_coverage_score JSONB,
            primary_question TEXT,
            question_category TEXT,
            synced_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_agent_start
            ON conversations (agent_id, start_time_unix DESC);`,
		`CREATE TABLE IF NOT EXISTS sync_history (
            id UUID PRIMARY KEY,
            agent_id TEXT,
            sync_time TIMESTAMPTZ DEFAULT now(),
            status TEXT,
            duration_ms BIGINT,
            details JSONB
        );`,
	}
	for _, q := range queries {
		if _, err := r.DB.ExecContext(ctx, q); err != nil {
			return storageErr("migrate", err)
		}
	}
	return nil
}

// GetMaxStartTime returns the newest start_time_unix already stored for
// an agent, or nil when nothing is stored yet. This is the sync
// checkpoint; there is no separate checkpoint table.
func (r *PostgresRepo) GetMaxStartTime(ctx context.Context, agentID string) (*int64, error) {
	var max sql.NullInt64
	err := r.DB.QueryRowContext(ctx,
		`SELECT MAX(start_time_unix) FROM conversations WHERE agent_id = $1`,
		agentID).Scan(&max)
	if err != nil {
		return nil, storageErr("read checkpoint", err)
	}
	if !max.Valid {
		return nil, nil
	}
	v := max.Int64
	return &v, nil
}

func (r *PostgresRepo) CountConversations(ctx context.Context, agentID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE agent_id = $1`, agentID).Scan(&n)
	if err != nil {
		return 0, storageErr("count conversations", err)
	}
	return n, nil
}

// conversationColumns is the column order used by the bulk upsert.
const conversationColumns = `conversation_id, agent_id, status, start_time_unix, call_duration_secs,
        user_name, transcript, metadata, cost, llm_cost, llm_price, summary,
        confidence_score, knowledge_coverage_score, primary_question, question_category, synced_at`

const conversationColumnCount = 17

// buildConversationUpsert renders a single multi-row INSERT ... ON
// CONFLICT statement for the given rows. One statement means a reader
// never sees a half-written mix of old and new data for the same id.
func buildConversationUpsert(rows []model.ConversationRow) (string, []interface{}, error) {
	// Postgres rejects a multi-row upsert that touches the same id twice
	// ("command cannot affect row a second time"), and cursor pages can
	// shift under the walk, so keep the first-seen copy of each id.
	seen := make(map[string]bool, len(rows))
	deduped := make([]model.ConversationRow, 0, len(rows))
	for _, row := range rows {
		if seen[row.ConversationID] {
			continue
		}
		seen[row.ConversationID] = true
		deduped = append(deduped, row)
	}
	rows = deduped

	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*conversationColumnCount)

	for i, row := range rows {
		base := i * conversationColumnCount
		ph := make([]string, conversationColumnCount)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")

		transcript, err := json.Marshal(row.Transcript)
		if err != nil {
			return "", nil, fmt.Errorf("marshal transcript for %s: %w", row.ConversationID, err)
		}
		metadata, err := json.Marshal(row.Metadata)
		if err != nil {
			return "", nil, fmt.Errorf("marshal metadata for %s: %w", row.ConversationID, err)
		}
		confidence, err := marshalNullable(row.ConfidenceScore)
		if err != nil {
			return "", nil, err
		}
		coverage, err := marshalNullable(row.KnowledgeCoverageScore)
		if err != nil {
			return "", nil, err
		}

		args = append(args,
			row.ConversationID, row.AgentID, row.Status, row.StartTimeUnix, row.CallDuration,
			row.UserName, transcript, metadata, row.Cost, row.LLMCost, row.LLMPrice, row.Summary,
			confidence, coverage, row.PrimaryQuestion, row.QuestionCategory, row.SyncedAt,
		)
	}

	query := `INSERT INTO conversations (` + conversationColumns + `)
        VALUES ` + strings.Join(placeholders, ",") + `
        ON CONFLICT (conversation_id) DO UPDATE SET
            agent_id = EXCLUDED.agent_id,
            status = EXCLUDED.status,
            start_time_unix = EXCLUDED.start_time_unix,
            call_duration_secs = EXCLUDED.call_duration_secs,
            user_name = EXCLUDED.user_name,
            transcript = EXCLUDED.transcript,
            metadata = EXCLUDED.metadata,
            cost = EXCLUDED.cost,
            llm_cost = EXCLUDED.llm_cost,
            llm_price = EXCLUDED.llm_price,
            summary = EXCLUDED.summary,
            confidence_score = EXCLUDED.confidence_score,
            knowledge_coverage_score = EXCLUDED.knowledge_coverage_score,
            primary_question = EXCLUDED.primary_question,
            question_category = EXCLUDED.question_category,
            synced_at = EXCLUDED.synced_at`

	return query, args, nil
}

func marshalNullable(v *model.EvalResult) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BulkUpsertConversations inserts or fully replaces the given rows in a
// single statement. Existing rows sharing a conversation_id are replaced
// column for column, never merged.
func (r *PostgresRepo) BulkUpsertConversations(ctx context.Context, rows []model.ConversationRow) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := buildConversationUpsert(rows)
	if err != nil {
		return storageErr("build upsert", err)
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return storageErr("upsert conversations", err)
	}
	return nil
}

// SetLastSynced records when an agent was last synced. This marker is
// observability only; the checkpoint itself is derived from row data.
func (r *PostgresRepo) SetLastSynced(ctx context.Context, agentID string, ts time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO agents (agent_id, last_synced_at) VALUES ($1, $2)
        ON CONFLICT (agent_id) DO UPDATE SET last_synced_at = EXCLUDED.last_synced_at
    `, agentID, ts)
	return storageErr("set last synced", err)
}

func (r *PostgresRepo) GetAgentStats(ctx context.Context, agentID string) (*model.AgentStats, error) {
	stats := &model.AgentStats{AgentID: agentID}

	var last sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		`SELECT last_synced_at FROM agents WHERE agent_id = $1`, agentID).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return nil, storageErr("read agent", err)
	}
	if last.Valid {
		t := last.Time
		stats.LastSyncedAt = &t
	}

	total, err := r.CountConversations(ctx, agentID)
	if err != nil {
		return nil, err
	}
	stats.Total = total
	return stats, nil
}

// ListConversations returns mirrored rows for an agent, newest first.
// status filters exactly; fromUnix/toUnix bound start_time_unix when set.
func (r *PostgresRepo) ListConversations(ctx context.Context, agentID, status string, fromUnix, toUnix *int64, limit int) ([]model.ConversationRow, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE agent_id = $1`
	args := []interface{}{agentID}
	idx := 2

	if status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, status)
		idx++
	}
	if fromUnix != nil {
		q += fmt.Sprintf(" AND start_time_unix >= $%d", idx)
		args = append(args, *fromUnix)
		idx++
	}
	if toUnix != nil {
		q += fmt.Sprintf(" AND start_time_unix <= $%d", idx)
		args = append(args, *toUnix)
		idx++
	}

	q += " ORDER BY start_time_unix DESC"
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("list conversations", err)
	}
	defer rows.Close()

	out := []model.ConversationRow{}
	for rows.Next() {
		row, err := scanConversation(rows)
		if err != nil {
			return nil, storageErr("scan conversation", err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list conversations", err)
	}
	return out, nil
}

func (r *PostgresRepo) GetConversation(ctx context.Context, conversationID string) (*model.ConversationRow, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE conversation_id = $1 LIMIT 1`
	rows, err := r.DB.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, storageErr("get conversation", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	row, err := scanConversation(rows)
	if err != nil {
		return nil, storageErr("scan conversation", err)
	}
	return row, nil
}

func scanConversation(rows *sql.Rows) (*model.ConversationRow, error) {
	var (
		row                     model.ConversationRow
		userName                sql.NullString
		transcript, metadata    []byte
		cost, llmCost, llmPrice sql.NullFloat64
		summary                 sql.NullString
		confidence, coverage    []byte
		primary, category       sql.NullString
	)

	if err := rows.Scan(
		&row.ConversationID, &row.AgentID, &row.Status, &row.StartTimeUnix, &row.CallDuration,
		&userName, &transcript, &metadata, &cost, &llmCost, &llmPrice, &summary,
		&confidence, &coverage, &primary, &category, &row.SyncedAt,
	); err != nil {
		return nil, err
	}

	if userName.Valid {
		row.UserName = &userName.String
	}
	row.Transcript = []model.TranscriptTurn{}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &row.Transcript); err != nil {
			return nil, err
		}
	}
	row.Metadata = map[string]interface{}{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &row.Metadata); err != nil {
			return nil, err
		}
	}
	if cost.Valid {
		row.Cost = &cost.Float64
	}
	if llmCost.Valid {
		row.LLMCost = &llmCost.Float64
	}
	if llmPrice.Valid {
		row.LLMPrice = &llmPrice.Float64
	}
	if summary.Valid {
		row.Summary = &summary.String
	}
	if len(confidence) > 0 {
		var er model.EvalResult
		if err := json.Unmarshal(confidence, &er); err == nil {
			row.ConfidenceScore = &er
		}
	}
	if len(coverage) > 0 {
		var er model.EvalResult
		if err := json.Unmarshal(coverage, &er); err == nil {
			row.KnowledgeCoverageScore = &er
		}
	}
	if primary.Valid {
		row.PrimaryQuestion = &primary.String
	}
	if category.Valid {
		row.QuestionCategory = &category.String
	}
	return &row, nil
}

func (r *PostgresRepo) CreateSyncHistory(ctx context.Context, agentID, status string, durationMs int64, details json.RawMessage) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO sync_history (id, agent_id, status, duration_ms, details)
        VALUES ($1, $2, $3, $4, $5)
    `, uuid.NewString(), agentID, status, durationMs, details)
	return storageErr("create sync history", err)
}

func (r *PostgresRepo) GetSyncHistory(ctx context.Context, limit int) ([]model.SyncHistory, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, agent_id, sync_time, status, duration_ms, details
        FROM sync_history ORDER BY sync_time DESC LIMIT $1
    `, limit)
	if err != nil {
		return nil, storageErr("get sync history", err)
	}
	defer rows.Close()

	out := []model.SyncHistory{}
	for rows.Next() {
		var h model.SyncHistory
		var details []byte
		if err := rows.Scan(&h.ID, &h.AgentID, &h.SyncTime, &h.Status, &h.DurationMs, &details); err != nil {
			return nil, storageErr("scan sync history", err)
		}
		h.Details = details
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get sync history", err)
	}
	return out, nil
}

func (r *PostgresRepo) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at
         FROM admins WHERE username = $1 LIMIT 1`, username)

	var a model.Admin
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepo) UpsertAdmin(ctx context.Context, username, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO admins (username, password_hash) VALUES ($1,$2)
        ON CONFLICT (username) DO UPDATE SET password_hash = $2
    `, username, passwordHash)
	return err
}
