package review

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/store"
)

// Workflow approves and rejects review items. An approval writes to the
// graph first and only then marks the item approved, so a failed graph
// write leaves the item pending.
type Workflow struct {
	queue *Queue
	graph store.GraphStore
	audit store.AuditLog
	now   func() time.Time
}

type NewWorkflowParams struct {
	Queue *Queue
	Graph store.GraphStore
	Audit store.AuditLog
}

func NewWorkflow(params NewWorkflowParams) *Workflow {
	return &Workflow{
		queue: params.Queue,
		graph: params.Graph,
		audit: params.Audit,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// load returns the item after checking existence, ownership and kind. A
// nil item with a nil error means the item is no longer pending.
func (w *Workflow) load(ctx context.Context, itemID, userID string, kind common.ReviewItemType) (*common.ReviewItem, error) {
	item, err := w.queue.GetItemForUser(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	if kind != "" && item.Type != kind {
		return nil, common.NewValidationError("type", "item %s is a %s, not a %s", itemID, item.Type, kind)
	}
	if item.Status != common.ReviewPending {
		logger.Debug("[Review] Item is no longer pending", "item_id", itemID, "status", item.Status)
		return nil, nil
	}
	return item, nil
}

// Approve dispatches on the stored item type.
func (w *Workflow) Approve(ctx context.Context, itemID string, userID string) (bool, error) {
	item, err := w.queue.GetItemForUser(ctx, itemID, userID)
	if err != nil {
		return false, err
	}
	if item.Type == common.ReviewItemRelationship {
		return w.ApproveRelationship(ctx, itemID, userID)
	}
	return w.ApproveEntity(ctx, itemID, userID)
}

// Reject dispatches on the stored item type.
func (w *Workflow) Reject(ctx context.Context, itemID string, userID string, reason string) (bool, error) {
	item, err := w.queue.GetItemForUser(ctx, itemID, userID)
	if err != nil {
		return false, err
	}
	if item.Type == common.ReviewItemRelationship {
		return w.RejectRelationship(ctx, itemID, userID, reason)
	}
	return w.RejectEntity(ctx, itemID, userID, reason)
}

func (w *Workflow) provenance(item *common.ReviewItem, meta map[string]any) map[string]any {
	out := maps.Clone(meta)
	if out == nil {
		out = map[string]any{}
	}
	out["review_item_id"] = item.ID
	out["approved_at"] = w.now().Format(time.RFC3339)
	out["extracted_text"] = item.ExtractedText
	return out
}

func (w *Workflow) ApproveEntity(ctx context.Context, itemID string, userID string) (bool, error) {
	item, err := w.load(ctx, itemID, userID, common.ReviewItemEntity)
	if err != nil || item == nil {
		return false, err
	}

	e := *item.Entity
	e.Properties = maps.Clone(item.Entity.Properties)
	e.Confidence = item.Confidence
	e.UserID = item.UserID
	e.SourceDocumentID = item.SourceDocumentID
	e.Metadata = w.provenance(item, item.Entity.Metadata)

	if err := w.graph.CreateEntity(ctx, &e); err != nil {
		logger.Error("[Review] Graph write failed, item stays pending", "item_id", itemID, "entity", e.Name, "err", err)
		return false, common.Internalf(err, "failed to write entity to graph")
	}
	return w.finishApproval(ctx, item)
}

func (w *Workflow) ApproveRelationship(ctx context.Context, itemID string, userID string) (bool, error) {
	item, err := w.load(ctx, itemID, userID, common.ReviewItemRelationship)
	if err != nil || item == nil {
		return false, err
	}

	r := *item.Relationship
	r.Properties = maps.Clone(item.Relationship.Properties)
	r.Confidence = item.Confidence
	r.UserID = item.UserID
	r.SourceDocumentID = item.SourceDocumentID
	r.Metadata = w.provenance(item, item.Relationship.Metadata)

	for _, name := range []string{r.SourceEntity, r.TargetEntity} {
		if err := w.ensureEndpoint(ctx, item, name); err != nil {
			logger.Error("[Review] Endpoint creation failed, item stays pending", "item_id", itemID, "entity", name, "err", err)
			return false, common.Internalf(err, "failed to ensure endpoint %q", name)
		}
	}

	if err := w.graph.CreateRelationship(ctx, &r); err != nil {
		logger.Error("[Review] Graph write failed, item stays pending", "item_id", itemID, "relationship", item.DisplayName(), "err", err)
		return false, common.Internalf(err, "failed to write relationship to graph")
	}
	return w.finishApproval(ctx, item)
}

// ensureEndpoint creates a placeholder node for a relationship endpoint
// that is not in the owner's graph yet. Its type is taken from an entity
// item of the same document when one exists.
func (w *Workflow) ensureEndpoint(ctx context.Context, item *common.ReviewItem, name string) error {
	ok, err := w.graph.EntityExists(ctx, item.UserID, name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	placeholder := &common.Entity{
		Type:             w.guessType(ctx, item, name),
		Name:             name,
		Properties:       map[string]any{},
		Confidence:       1.0,
		UserID:           item.UserID,
		SourceDocumentID: item.SourceDocumentID,
		CreatedAt:        w.now(),
		Metadata: map[string]any{
			"auto_created":   true,
			"reason":         "relationship_approval",
			"review_item_id": item.ID,
		},
	}
	logger.Warn("[Review] Creating placeholder endpoint", "item_id", item.ID, "entity", name, "type", placeholder.Type)
	return w.graph.CreateEntity(ctx, placeholder)
}

func (w *Workflow) guessType(ctx context.Context, item *common.ReviewItem, name string) string {
	if item.SourceDocumentID == "" {
		return common.EntityThing
	}
	siblings, err := w.queue.ListByDocument(ctx, item.UserID, item.SourceDocumentID)
	if err != nil {
		logger.Warn("[Review] Failed to load document items for type lookup", "document_id", item.SourceDocumentID, "err", err)
		return common.EntityThing
	}
	for _, s := range siblings {
		if s.Entity != nil && strings.EqualFold(s.Entity.Name, name) {
			return s.Entity.Type
		}
	}
	return common.EntityThing
}

func (w *Workflow) finishApproval(ctx context.Context, item *common.ReviewItem) (bool, error) {
	ok, err := w.queue.UpdateStatus(ctx, item.ID, common.ReviewApproved, item.UserID, nil)
	if err != nil {
		return false, fmt.Errorf("graph written but status update failed: %w", err)
	}
	if !ok {
		logger.Warn("[Review] Item was reviewed concurrently", "item_id", item.ID)
		return false, nil
	}
	w.writeAudit(ctx, item, common.AuditApproved, "")
	logger.Info("[Review] Approved item", "item_id", item.ID, "type", item.Type, "name", item.DisplayName())
	return true, nil
}

func (w *Workflow) RejectEntity(ctx context.Context, itemID string, userID string, reason string) (bool, error) {
	return w.reject(ctx, itemID, userID, common.ReviewItemEntity, reason)
}

func (w *Workflow) RejectRelationship(ctx context.Context, itemID string, userID string, reason string) (bool, error) {
	return w.reject(ctx, itemID, userID, common.ReviewItemRelationship, reason)
}

func (w *Workflow) reject(ctx context.Context, itemID, userID string, kind common.ReviewItemType, reason string) (bool, error) {
	item, err := w.load(ctx, itemID, userID, kind)
	if err != nil || item == nil {
		return false, err
	}

	w.writeAudit(ctx, item, common.AuditRejected, reason)

	var r *string
	if reason != "" {
		r = &reason
	}
	ok, err := w.queue.UpdateStatus(ctx, itemID, common.ReviewRejected, userID, r)
	if err != nil || !ok {
		return false, err
	}
	logger.Info("[Review] Rejected item", "item_id", itemID, "type", item.Type, "reason", reason)
	return true, nil
}

func (w *Workflow) writeAudit(ctx context.Context, item *common.ReviewItem, action common.AuditAction, reason string) {
	if w.audit == nil {
		return
	}
	entry, err := common.NewAuditEntry(item, action, reason)
	if err == nil {
		err = w.audit.WriteAudit(ctx, entry)
	}
	if err != nil {
		logger.Warn("[Review] Failed to write audit entry", "item_id", item.ID, "action", action, "err", err)
	}
}
