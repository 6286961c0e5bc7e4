package common

import "time"

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

// CanTransition reports whether a document may move from s to next.
// Failed and stuck processing documents may be claimed again by a worker.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch next {
	case DocumentProcessing:
		return s == DocumentPending || s == DocumentFailed || s == DocumentProcessing
	case DocumentCompleted, DocumentFailed:
		return s == DocumentProcessing
	default:
		return false
	}
}

// ExtractionSummary is stored on a document once processing completed.
type ExtractionSummary struct {
	ChunkCount                int     `json:"chunk_count"`
	FailedChunks              int     `json:"failed_chunks"`
	EntityCount               int     `json:"entity_count"`
	RelationshipCount         int     `json:"relationship_count"`
	AutoApprovedEntities      int     `json:"auto_approved_entities"`
	AutoApprovedRelationships int     `json:"auto_approved_relationships"`
	InputTokens               int64   `json:"input_tokens"`
	OutputTokens              int64   `json:"output_tokens"`
	EstimatedCostUSD          float64 `json:"estimated_cost_usd"`
}

// Document is a piece of user text submitted for extraction. The body is
// kept in object storage under ContentKey.
type Document struct {
	ID                    string             `json:"id"`
	UserID                string             `json:"user_id"`
	Title                 string             `json:"title"`
	SourceURL             string             `json:"source_url,omitempty"`
	ContentKey            string             `json:"content_key,omitempty"`
	Status                DocumentStatus     `json:"status"`
	Error                 string             `json:"error,omitempty"`
	Summary               *ExtractionSummary `json:"summary,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
	ProcessingStartedAt   *time.Time         `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time         `json:"processing_completed_at,omitempty"`
}
