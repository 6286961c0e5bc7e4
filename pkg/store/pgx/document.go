package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const documentColumns = `id, user_id, title, source_url, content_key, status, error, summary,
created_at, updated_at, processing_started_at, processing_completed_at`

const insertDocumentSQL = `
INSERT INTO documents (id, user_id, title, source_url, content_key, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
`

const getDocumentSQL = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

const listDocumentsSQL = `SELECT ` + documentColumns + ` FROM documents
WHERE user_id = $1
ORDER BY created_at DESC, id`

// updateDocumentSQL only applies when the current status is one of $6.
const updateDocumentSQL = `
UPDATE documents
SET status = $2::text,
    updated_at = $3,
    error = $4,
    summary = COALESCE($5::jsonb, summary),
    processing_started_at = CASE WHEN $2::text = 'processing' THEN $3 ELSE processing_started_at END,
    processing_completed_at = CASE WHEN $2::text = 'processing' THEN NULL ELSE $3 END
WHERE id = $1 AND status = ANY($6::text[])
`

var documentStatuses = []common.DocumentStatus{
	common.DocumentPending,
	common.DocumentProcessing,
	common.DocumentCompleted,
	common.DocumentFailed,
}

// allowedFrom lists the statuses a document may be in to move to next.
func allowedFrom(next common.DocumentStatus) []string {
	out := make([]string, 0, len(documentStatuses))
	for _, s := range documentStatuses {
		if s.CanTransition(next) {
			out = append(out, string(s))
		}
	}
	return out
}

func scanDocument(row pgxv5.Row) (*common.Document, error) {
	var (
		d       common.Document
		status  string
		summary []byte
	)
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Title,
		&d.SourceURL,
		&d.ContentKey,
		&status,
		&d.Error,
		&summary,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ProcessingStartedAt,
		&d.ProcessingCompletedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = common.DocumentStatus(status)
	if len(summary) > 0 {
		d.Summary = &common.ExtractionSummary{}
		if err := json.Unmarshal(summary, d.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary of %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func (s *ReviewDBStorage) CreateDocument(ctx context.Context, doc *common.Document) error {
	_, err := s.conn.Exec(ctx, insertDocumentSQL,
		doc.ID,
		doc.UserID,
		doc.Title,
		doc.SourceURL,
		doc.ContentKey,
		string(doc.Status),
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *ReviewDBStorage) GetDocument(ctx context.Context, documentID string) (*common.Document, error) {
	doc, err := scanDocument(s.conn.QueryRow(ctx, getDocumentSQL, documentID))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

func (s *ReviewDBStorage) ListDocuments(ctx context.Context, userID string) ([]*common.Document, error) {
	rows, err := s.conn.Query(ctx, listDocumentsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	out := make([]*common.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *ReviewDBStorage) UpdateDocumentStatus(ctx context.Context, u store.DocumentUpdate) (bool, error) {
	from := allowedFrom(u.Status)
	if len(from) == 0 {
		return false, nil
	}

	var summary []byte
	if u.Summary != nil {
		raw, err := json.Marshal(u.Summary)
		if err != nil {
			return false, err
		}
		summary = raw
	}

	tag, err := s.conn.Exec(ctx, updateDocumentSQL, u.DocumentID, string(u.Status), u.At, u.Error, summary, from)
	if err != nil {
		return false, fmt.Errorf("failed to update document %s: %w", u.DocumentID, err)
	}
	return tag.RowsAffected() == 1, nil
}
