// Package review holds the human review side of the pipeline: the queue of
// extracted candidates, the approval workflow that moves them into the
// graph and the batch processor on top of both.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/store"
)

// Queue is the review queue of all extracted candidates. Statistics are
// secondary bookkeeping: their failures are logged and never fail the
// queue operation itself.
type Queue struct {
	items store.ReviewStore
	stats store.StatsStore
	now   func() time.Time
}

func NewQueue(items store.ReviewStore, stats store.StatsStore) *Queue {
	return &Queue{
		items: items,
		stats: stats,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue stores items atomically for userID. Items carrying a different
// owner or source document are reconciled to the given values.
func (q *Queue) Enqueue(
	ctx context.Context,
	userID string,
	items []*common.ReviewItem,
	sourceDocumentID string,
) ([]string, error) {
	if userID == "" {
		return nil, common.NewValidationError("user_id", "user id cannot be empty")
	}
	if len(items) == 0 {
		return nil, common.NewValidationError("items", "no items to enqueue")
	}

	ids := make([]string, 0, len(items))
	pending := 0
	for _, item := range items {
		if item == nil {
			return nil, common.NewValidationError("items", "nil review item")
		}
		reconcile(item, userID, sourceDocumentID)
		if item.Status == "" {
			item.Status = common.ReviewPending
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = q.now()
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("invalid review item %s: %w", item.ID, err)
		}
		if item.Status == common.ReviewPending {
			pending++
		}
		ids = append(ids, item.ID)
	}

	if err := q.items.InsertItems(ctx, items); err != nil {
		return nil, fmt.Errorf("failed to enqueue review items: %w", err)
	}
	if pending > 0 {
		if err := q.stats.AddPending(ctx, userID, pending); err != nil {
			logger.Warn("[Review] Failed to update pending count", "user_id", userID, "err", err)
		}
	}

	logger.Debug("[Review] Enqueued items", "user_id", userID, "document_id", sourceDocumentID, "count", len(ids))
	return ids, nil
}

func reconcile(item *common.ReviewItem, userID, sourceDocumentID string) {
	if item.UserID != userID {
		if item.UserID != "" {
			logger.Warn("[Review] Item owner differs from queue owner, overriding", "item_id", item.ID, "item_user", item.UserID, "user_id", userID)
		}
		item.UserID = userID
	}
	if item.SourceDocumentID != sourceDocumentID {
		if item.SourceDocumentID != "" {
			logger.Warn("[Review] Item document differs from queue document, overriding", "item_id", item.ID, "item_document", item.SourceDocumentID, "document_id", sourceDocumentID)
		}
		item.SourceDocumentID = sourceDocumentID
	}
	if item.Entity != nil {
		item.Entity.UserID = userID
		item.Entity.SourceDocumentID = sourceDocumentID
	}
	if item.Relationship != nil {
		item.Relationship.UserID = userID
		item.Relationship.SourceDocumentID = sourceDocumentID
	}
}

// GetPending lists the pending items of q.UserID. Unset limit and order
// fall back to 50 items by descending confidence.
func (q *Queue) GetPending(ctx context.Context, query store.PendingQuery) ([]*common.ReviewItem, error) {
	if query.UserID == "" {
		return nil, common.NewValidationError("user_id", "user id cannot be empty")
	}
	if query.ItemType != "" && !query.ItemType.Valid() {
		return nil, common.NewValidationError("type", "invalid item type %q", query.ItemType)
	}
	if query.OrderBy == "" {
		query.OrderBy = store.OrderByConfidence
		query.Descending = true
	}
	return q.items.ListPending(ctx, query)
}

// GetItem returns nil when the item does not exist.
func (q *Queue) GetItem(ctx context.Context, itemID string) (*common.ReviewItem, error) {
	return q.items.GetItem(ctx, itemID)
}

// GetItemForUser is GetItem with the ownership check applied.
func (q *Queue) GetItemForUser(ctx context.Context, itemID string, userID string) (*common.ReviewItem, error) {
	item, err := q.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, common.NotFoundf("review item %s", itemID)
	}
	if item.UserID != userID {
		return nil, common.Forbiddenf("review item %s belongs to another user", itemID)
	}
	return item, nil
}

// UpdateStatus moves a pending item into a terminal status. It reports
// false when the item does not exist or is no longer pending.
func (q *Queue) UpdateStatus(
	ctx context.Context,
	itemID string,
	status common.ReviewStatus,
	userID string,
	reason *string,
) (bool, error) {
	if !status.Terminal() {
		return false, common.NewValidationError("status", "cannot move an item to %q", status)
	}
	item, err := q.items.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	if item.UserID != userID {
		return false, common.Forbiddenf("review item %s belongs to another user", itemID)
	}
	if !item.Status.CanTransition(status) {
		return false, nil
	}

	at := q.now()
	if reason != nil && *reason == "" {
		reason = nil
	}
	ok, err := q.items.TransitionStatus(ctx, store.Transition{
		ItemID:     itemID,
		UserID:     userID,
		Status:     status,
		ReviewedAt: at,
		Reason:     reason,
	})
	if err != nil || !ok {
		return false, err
	}

	if err := q.stats.RecordReview(ctx, userID, status, item.Confidence, at); err != nil {
		logger.Warn("[Review] Failed to update review stats", "user_id", userID, "item_id", itemID, "err", err)
	}
	return true, nil
}

// Delete removes an owned item. Deleting a pending item lowers the pending
// count.
func (q *Queue) Delete(ctx context.Context, itemID string, userID string) (bool, error) {
	item, err := q.items.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	if item.UserID != userID {
		return false, common.Forbiddenf("review item %s belongs to another user", itemID)
	}

	status, err := q.items.DeleteItem(ctx, itemID, userID)
	if err != nil {
		return false, err
	}
	if status == "" {
		return false, nil
	}
	if status == common.ReviewPending {
		if err := q.stats.AddPending(ctx, userID, -1); err != nil {
			logger.Warn("[Review] Failed to update pending count", "user_id", userID, "err", err)
		}
	}
	return true, nil
}

func (q *Queue) GetUserStats(ctx context.Context, userID string) (*common.UserStats, error) {
	if userID == "" {
		return nil, common.NewValidationError("user_id", "user id cannot be empty")
	}
	return q.stats.GetUserStats(ctx, userID)
}

func (q *Queue) ListByDocument(ctx context.Context, userID string, documentID string) ([]*common.ReviewItem, error) {
	return q.items.ListByDocument(ctx, userID, documentID)
}

func (q *Queue) ListApproved(ctx context.Context, userID string) ([]*common.ReviewItem, error) {
	return q.items.ListApproved(ctx, userID)
}
