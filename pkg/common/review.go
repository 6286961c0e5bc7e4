package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReviewItemType string

const (
	ReviewItemEntity       ReviewItemType = "entity"
	ReviewItemRelationship ReviewItemType = "relationship"
)

func (t ReviewItemType) Valid() bool {
	return t == ReviewItemEntity || t == ReviewItemRelationship
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) Valid() bool {
	return s == ReviewPending || s == ReviewApproved || s == ReviewRejected
}

// Terminal reports whether no further transition is allowed from s.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// CanTransition reports whether a review item may move from s to next.
// Only pending items can change and only into a terminal state.
func (s ReviewStatus) CanTransition(next ReviewStatus) bool {
	return s == ReviewPending && next.Terminal()
}

// ReviewItem is a candidate entity or relationship awaiting a human
// decision. Exactly one of Entity or Relationship is set and it matches
// Type.
type ReviewItem struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Type             ReviewItemType `json:"type"`
	Status           ReviewStatus   `json:"status"`
	Confidence       float64        `json:"confidence"`
	SourceDocumentID string         `json:"source_document_id"`
	CreatedAt        time.Time      `json:"created_at"`
	ReviewedAt       *time.Time     `json:"reviewed_at"`
	Entity           *Entity        `json:"entity"`
	Relationship     *Relationship  `json:"relationship"`
	ExtractedText    string         `json:"extracted_text"`
	RejectionReason  *string        `json:"rejection_reason"`
	Metadata         map[string]any `json:"metadata"`
}

// NewEntityReviewItem wraps an extracted entity in a pending review item.
func NewEntityReviewItem(userID string, e *Entity, extractedText string) *ReviewItem {
	return &ReviewItem{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             ReviewItemEntity,
		Status:           ReviewPending,
		Confidence:       e.Confidence,
		SourceDocumentID: e.SourceDocumentID,
		CreatedAt:        time.Now().UTC(),
		Entity:           e,
		ExtractedText:    extractedText,
		Metadata:         map[string]any{},
	}
}

// NewRelationshipReviewItem wraps a detected relationship in a pending
// review item.
func NewRelationshipReviewItem(userID string, r *Relationship, extractedText string) *ReviewItem {
	return &ReviewItem{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             ReviewItemRelationship,
		Status:           ReviewPending,
		Confidence:       r.Confidence,
		SourceDocumentID: r.SourceDocumentID,
		CreatedAt:        time.Now().UTC(),
		Relationship:     r,
		ExtractedText:    extractedText,
		Metadata:         map[string]any{},
	}
}

func (i *ReviewItem) Validate() error {
	if i.UserID == "" {
		return NewValidationError("user_id", "user id cannot be empty")
	}
	if !i.Type.Valid() {
		return NewValidationError("type", "invalid review item type %q", i.Type)
	}
	if !i.Status.Valid() {
		return NewValidationError("status", "invalid review status %q", i.Status)
	}
	if err := validateConfidence(i.Confidence); err != nil {
		return err
	}
	switch i.Type {
	case ReviewItemEntity:
		if i.Entity == nil || i.Relationship != nil {
			return NewValidationError("entity", "entity review item must carry exactly one entity")
		}
	case ReviewItemRelationship:
		if i.Relationship == nil || i.Entity != nil {
			return NewValidationError("relationship", "relationship review item must carry exactly one relationship")
		}
	}
	return nil
}

func (i *ReviewItem) UnmarshalJSON(data []byte) error {
	type alias ReviewItem
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = ReviewItem(raw)
	if i.Metadata == nil {
		i.Metadata = map[string]any{}
	}
	return i.Validate()
}

// DisplayName is a short human readable label for the item.
func (i *ReviewItem) DisplayName() string {
	switch {
	case i.Entity != nil:
		return i.Entity.Name
	case i.Relationship != nil:
		return fmt.Sprintf("%s → %s → %s", i.Relationship.SourceEntity, i.Relationship.RelationshipType, i.Relationship.TargetEntity)
	default:
		return i.ID
	}
}

// ConfidenceLevel buckets the confidence into high, medium or low.
func (i *ReviewItem) ConfidenceLevel() string {
	switch {
	case i.Confidence >= 0.8:
		return "high"
	case i.Confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// UserStats is the per-user review counter row. AverageConfidence is the
// running mean over reviewed items only.
type UserStats struct {
	UserID            string     `json:"user_id"`
	TotalPending      int        `json:"total_pending"`
	TotalApproved     int        `json:"total_approved"`
	TotalRejected     int        `json:"total_rejected"`
	LastReviewAt      *time.Time `json:"last_review_at"`
	AverageConfidence float64    `json:"average_confidence"`
}

func (s *UserStats) TotalReviewed() int {
	return s.TotalApproved + s.TotalRejected
}

// ApprovalRate is the share of reviewed items that were approved, in percent.
func (s *UserStats) ApprovalRate() float64 {
	reviewed := s.TotalReviewed()
	if reviewed == 0 {
		return 0
	}
	return float64(s.TotalApproved) / float64(reviewed) * 100
}

// RecordReview applies a single review decision to the counters.
func (s *UserStats) RecordReview(status ReviewStatus, confidence float64, at time.Time) {
	reviewed := s.TotalReviewed()
	s.AverageConfidence = (s.AverageConfidence*float64(reviewed) + confidence) / float64(reviewed+1)
	switch status {
	case ReviewApproved:
		s.TotalApproved++
	case ReviewRejected:
		s.TotalRejected++
	}
	s.TotalPending = max(s.TotalPending-1, 0)
	s.LastReviewAt = &at
}
