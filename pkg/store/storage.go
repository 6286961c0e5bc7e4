package store

import (
	"context"
	"time"

	"github.com/aletheia-codex/backend/pkg/common"
)

// Pending query defaults and bounds.
const (
	DefaultPendingLimit = 50
	MaxPendingLimit     = 100
)

// PendingOrder is a column the pending list can be sorted by.
type PendingOrder string

const (
	OrderByConfidence PendingOrder = "confidence"
	OrderByCreatedAt  PendingOrder = "created_at"
)

func (o PendingOrder) Valid() bool {
	return o == OrderByConfidence || o == OrderByCreatedAt
}

// PendingQuery filters the pending review items of a user.
type PendingQuery struct {
	UserID        string
	Limit         int
	MinConfidence float64
	// ItemType is optional; the zero value returns both kinds.
	ItemType   common.ReviewItemType
	OrderBy    PendingOrder
	Descending bool
}

// Normalize applies the defaults for unset fields and caps the limit.
func (q PendingQuery) Normalize() PendingQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultPendingLimit
	}
	if q.Limit > MaxPendingLimit {
		q.Limit = MaxPendingLimit
	}
	if !q.OrderBy.Valid() {
		q.OrderBy = OrderByConfidence
	}
	return q
}

// Transition describes a compare-and-swap status change of a review item.
// It only applies while the stored item is pending and owned by UserID.
type Transition struct {
	ItemID     string
	UserID     string
	Status     common.ReviewStatus
	ReviewedAt time.Time
	// Reason is stored on rejections when set.
	Reason *string
}

// ReviewStore persists review items.
type ReviewStore interface {
	// InsertItems stores all items or none of them.
	InsertItems(ctx context.Context, items []*common.ReviewItem) error
	// GetItem returns nil without an error when the item does not exist.
	GetItem(ctx context.Context, itemID string) (*common.ReviewItem, error)
	ListPending(ctx context.Context, q PendingQuery) ([]*common.ReviewItem, error)
	ListByDocument(ctx context.Context, userID string, documentID string) ([]*common.ReviewItem, error)
	ListApproved(ctx context.Context, userID string) ([]*common.ReviewItem, error)
	// TransitionStatus reports false when the item is missing, owned by
	// someone else or no longer pending.
	TransitionStatus(ctx context.Context, t Transition) (bool, error)
	// DeleteItem removes an owned item and returns the status it had.
	// The status is empty when nothing was deleted.
	DeleteItem(ctx context.Context, itemID string, userID string) (common.ReviewStatus, error)
}

// StatsStore keeps the per user review counters. Every method is a single
// atomic update on the store side.
type StatsStore interface {
	AddPending(ctx context.Context, userID string, delta int) error
	RecordReview(ctx context.Context, userID string, status common.ReviewStatus, confidence float64, at time.Time) error
	// GetUserStats creates zeroed statistics on first access.
	GetUserStats(ctx context.Context, userID string) (*common.UserStats, error)
}

// AuditLog records review decisions.
type AuditLog interface {
	WriteAudit(ctx context.Context, entry *common.AuditEntry) error
	ListAudit(ctx context.Context, userID string, limit int) ([]*common.AuditEntry, error)
}

// DocumentStore persists documents and their processing status.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *common.Document) error
	// GetDocument returns nil without an error when the document does not
	// exist.
	GetDocument(ctx context.Context, documentID string) (*common.Document, error)
	ListDocuments(ctx context.Context, userID string) ([]*common.Document, error)
	// UpdateDocumentStatus moves a document to status when the transition is
	// allowed. It reports false when the document is missing or the current
	// status does not allow the move.
	UpdateDocumentStatus(ctx context.Context, update DocumentUpdate) (bool, error)
}

// DocumentUpdate is the payload of a document status change.
type DocumentUpdate struct {
	DocumentID string
	Status     common.DocumentStatus
	Error      string
	Summary    *common.ExtractionSummary
	At         time.Time
}

// GraphStore writes approved knowledge into the per user graph. Entities are
// keyed by owner, type and name and relationships by owner, source, type and
// target. Repeated writes keep the highest confidence and merge properties
// with the incoming values winning.
type GraphStore interface {
	EnsureUser(ctx context.Context, userID string) error
	CreateEntity(ctx context.Context, entity *common.Entity) error
	// CreateRelationship fails when an endpoint does not exist for the owner.
	CreateRelationship(ctx context.Context, rel *common.Relationship) error
	EntityExists(ctx context.Context, userID string, name string) (bool, error)
	PopulateFromDocument(ctx context.Context, entities []*common.Entity, relationships []*common.Relationship, userID string) (*common.PopulateResult, error)
	GetUserStats(ctx context.Context, userID string) (*common.GraphStats, error)
}

// ReviewRepository bundles the relational stores used by the review
// pipeline.
type ReviewRepository interface {
	ReviewStore
	StatsStore
	AuditLog
	DocumentStore
}
