package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const itemColumns = `id, user_id, type, status, confidence, source_document_id, payload,
extracted_text, rejection_reason, metadata, created_at, reviewed_at`

const insertItemSQL = `
INSERT INTO review_items (id, user_id, type, status, confidence, source_document_id, payload,
    extracted_text, rejection_reason, metadata, created_at, reviewed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const getItemSQL = `SELECT ` + itemColumns + ` FROM review_items WHERE id = $1`

const listByDocumentSQL = `SELECT ` + itemColumns + ` FROM review_items
WHERE user_id = $1 AND source_document_id = $2
ORDER BY created_at, id`

const listApprovedSQL = `SELECT ` + itemColumns + ` FROM review_items
WHERE user_id = $1 AND status = 'approved'
ORDER BY created_at, id`

const transitionSQL = `
UPDATE review_items
SET status = $3,
    reviewed_at = $4,
    rejection_reason = COALESCE($5, rejection_reason)
WHERE id = $1 AND user_id = $2 AND status = 'pending'
`

const deleteItemSQL = `
DELETE FROM review_items
WHERE id = $1 AND user_id = $2
RETURNING status
`

func encodeItem(item *common.ReviewItem) ([]any, error) {
	var payload any = item.Entity
	if item.Type == common.ReviewItemRelationship {
		payload = item.Relationship
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of %s: %w", item.ID, err)
	}
	meta := item.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata of %s: %w", item.ID, err)
	}
	return []any{
		item.ID,
		item.UserID,
		string(item.Type),
		string(item.Status),
		item.Confidence,
		item.SourceDocumentID,
		rawPayload,
		util.SanitizePostgresText(item.ExtractedText),
		item.RejectionReason,
		rawMeta,
		item.CreatedAt,
		item.ReviewedAt,
	}, nil
}

func scanItem(row pgxv5.Row) (*common.ReviewItem, error) {
	var (
		item      common.ReviewItem
		itemType  string
		status    string
		payload   []byte
		meta      []byte
		createdAt time.Time
	)
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&itemType,
		&status,
		&item.Confidence,
		&item.SourceDocumentID,
		&payload,
		&item.ExtractedText,
		&item.RejectionReason,
		&meta,
		&createdAt,
		&item.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Type = common.ReviewItemType(itemType)
	item.Status = common.ReviewStatus(status)
	item.CreatedAt = createdAt.UTC()

	switch item.Type {
	case common.ReviewItemEntity:
		item.Entity = &common.Entity{}
		err = json.Unmarshal(payload, item.Entity)
	case common.ReviewItemRelationship:
		item.Relationship = &common.Relationship{}
		err = json.Unmarshal(payload, item.Relationship)
	default:
		err = fmt.Errorf("unknown review item type %q", itemType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", item.ID, err)
	}

	item.Metadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &item.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", item.ID, err)
		}
	}
	return &item, nil
}

func collectItems(rows pgxv5.Rows) ([]*common.ReviewItem, error) {
	defer rows.Close()
	items := make([]*common.ReviewItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertItems stores items in one transaction using chunked pgx batches.
func (s *ReviewDBStorage) InsertItems(ctx context.Context, items []*common.ReviewItem) error {
	if len(items) == 0 {
		return nil
	}
	args := make([][]any, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		a, err := encodeItem(item)
		if err != nil {
			return err
		}
		args = append(args, a)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = store.ChunkRange(len(args), insertChunkSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, a := range args[start:end] {
			batch.Queue(insertItemSQL, a...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert review items: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *ReviewDBStorage) GetItem(ctx context.Context, itemID string) (*common.ReviewItem, error) {
	item, err := scanItem(s.conn.QueryRow(ctx, getItemSQL, itemID))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// pendingSQL builds the pending list statement. The sort column comes from
// a fixed set and is never taken from user input verbatim.
func pendingSQL(q store.PendingQuery) (string, []any) {
	q = q.Normalize()

	var b strings.Builder
	b.WriteString("SELECT " + itemColumns + " FROM review_items WHERE user_id = $1 AND status = 'pending' AND confidence >= $2")
	args := []any{q.UserID, q.MinConfidence}
	if q.ItemType != "" {
		args = append(args, string(q.ItemType))
		fmt.Fprintf(&b, " AND type = $%d", len(args))
	}

	column := "confidence"
	if q.OrderBy == store.OrderByCreatedAt {
		column = "created_at"
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	args = append(args, q.Limit)
	fmt.Fprintf(&b, " ORDER BY %s %s, id LIMIT $%d", column, dir, len(args))
	return b.String(), args
}

func (s *ReviewDBStorage) ListPending(ctx context.Context, q store.PendingQuery) ([]*common.ReviewItem, error) {
	sql, args := pendingSQL(q)
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	return collectItems(rows)
}

func (s *ReviewDBStorage) ListByDocument(ctx context.Context, userID string, documentID string) ([]*common.ReviewItem, error) {
	rows, err := s.conn.Query(ctx, listByDocumentSQL, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document items: %w", err)
	}
	return collectItems(rows)
}

func (s *ReviewDBStorage) ListApproved(ctx context.Context, userID string) ([]*common.ReviewItem, error) {
	rows, err := s.conn.Query(ctx, listApprovedSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved items: %w", err)
	}
	return collectItems(rows)
}

func (s *ReviewDBStorage) TransitionStatus(ctx context.Context, t store.Transition) (bool, error) {
	tag, err := s.conn.Exec(ctx, transitionSQL, t.ItemID, t.UserID, string(t.Status), t.ReviewedAt, t.Reason)
	if err != nil {
		return false, fmt.Errorf("failed to update status of %s: %w", t.ItemID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *ReviewDBStorage) DeleteItem(ctx context.Context, itemID string, userID string) (common.ReviewStatus, error) {
	var status string
	err := s.conn.QueryRow(ctx, deleteItemSQL, itemID, userID).Scan(&status)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", itemID, err)
	}
	return common.ReviewStatus(status), nil
}
