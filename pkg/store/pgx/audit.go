package pgx

import (
	"context"
	"fmt"

	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const insertAuditSQL = `
INSERT INTO review_audit_log (id, item_id, item_type, user_id, action, reason, confidence,
    source_document_id, payload, extracted_text, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

const listAuditSQL = `
SELECT id, item_id, item_type, user_id, action, reason, confidence, source_document_id,
    payload, extracted_text, created_at
FROM review_audit_log
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`

func (s *ReviewDBStorage) WriteAudit(ctx context.Context, e *common.AuditEntry) error {
	if e.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		e.ID = id
	}
	_, err := s.conn.Exec(ctx, insertAuditSQL,
		e.ID,
		e.ItemID,
		string(e.ItemType),
		e.UserID,
		string(e.Action),
		e.Reason,
		e.Confidence,
		e.SourceDocumentID,
		[]byte(e.Payload),
		util.SanitizePostgresText(e.ExtractedText),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry for %s: %w", e.ItemID, err)
	}
	return nil
}

func (s *ReviewDBStorage) ListAudit(ctx context.Context, userID string, limit int) ([]*common.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.Query(ctx, listAuditSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]*common.AuditEntry, 0)
	for rows.Next() {
		var (
			e        common.AuditEntry
			itemType string
			action   string
			payload  []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.ItemID,
			&itemType,
			&e.UserID,
			&action,
			&e.Reason,
			&e.Confidence,
			&e.SourceDocumentID,
			&payload,
			&e.ExtractedText,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.ItemType = common.ReviewItemType(itemType)
		e.Action = common.AuditAction(action)
		e.Payload = payload
		out = append(out, &e)
	}
	return out, rows.Err()
}
