package common

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditApproved AuditAction = "approved"
	AuditRejected AuditAction = "rejected"
	AuditDeleted  AuditAction = "deleted"
)

// AuditEntry is an append-only record of a review decision. Payload keeps
// a copy of the candidate so rejected items stay inspectable.
type AuditEntry struct {
	ID               string          `json:"id"`
	ItemID           string          `json:"item_id"`
	ItemType         ReviewItemType  `json:"item_type"`
	UserID           string          `json:"user_id"`
	Action           AuditAction     `json:"action"`
	Reason           string          `json:"reason,omitempty"`
	Confidence       float64         `json:"confidence"`
	SourceDocumentID string          `json:"source_document_id"`
	Payload          json.RawMessage `json:"payload"`
	ExtractedText    string          `json:"extracted_text"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewAuditEntry snapshots item for the given action.
func NewAuditEntry(item *ReviewItem, action AuditAction, reason string) (*AuditEntry, error) {
	var payload any = item.Entity
	if item.Type == ReviewItemRelationship {
		payload = item.Relationship
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &AuditEntry{
		ItemID:           item.ID,
		ItemType:         item.Type,
		UserID:           item.UserID,
		Action:           action,
		Reason:           reason,
		Confidence:       item.Confidence,
		SourceDocumentID: item.SourceDocumentID,
		Payload:          raw,
		ExtractedText:    item.ExtractedText,
		CreatedAt:        time.Now().UTC(),
	}, nil
}
