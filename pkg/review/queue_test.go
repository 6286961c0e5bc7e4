package review

import (
	"context"
	"errors"
	"testing"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"
	"github.com/aletheia-codex/backend/pkg/store/memory"
)

type fixture struct {
	store    *memory.Store
	graph    *memory.Graph
	queue    *Queue
	workflow *Workflow
	batch    *BatchProcessor
}

func newFixture() *fixture {
	s := memory.NewStore()
	g := memory.NewGraph()
	q := NewQueue(s, s)
	w := NewWorkflow(NewWorkflowParams{Queue: q, Graph: g, Audit: s})
	return &fixture{store: s, graph: g, queue: q, workflow: w, batch: NewBatchProcessor(q, w)}
}

func newEntityItem(t *testing.T, userID, entityType, name string, confidence float64) *common.ReviewItem {
	t.Helper()
	e, err := common.NewEntity(common.NewEntityParams{Type: entityType, Name: name, Confidence: confidence})
	if err != nil {
		t.Fatalf("failed to build entity: %v", err)
	}
	return common.NewEntityReviewItem(userID, e, name+" appears in the text.")
}

func newRelationshipItem(t *testing.T, userID, source, relType, target string, confidence float64) *common.ReviewItem {
	t.Helper()
	r, err := common.NewRelationship(common.NewRelationshipParams{
		SourceEntity:     source,
		TargetEntity:     target,
		RelationshipType: relType,
		Confidence:       confidence,
	})
	if err != nil {
		t.Fatalf("failed to build relationship: %v", err)
	}
	return common.NewRelationshipReviewItem(userID, r, "")
}

func (f *fixture) enqueue(t *testing.T, userID, documentID string, items ...*common.ReviewItem) {
	t.Helper()
	if _, err := f.queue.Enqueue(context.Background(), userID, items, documentID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
}

// failingGraph fails every entity write.
type failingGraph struct {
	*memory.Graph
}

func (failingGraph) CreateEntity(ctx context.Context, entity *common.Entity) error {
	return errors.New("graph unavailable")
}

// staleGraph reports every endpoint as present but has none of them, so
// relationship writes fail with a not found error.
type staleGraph struct {
	*memory.Graph
}

func (staleGraph) EntityExists(ctx context.Context, userID string, name string) (bool, error) {
	return true, nil
}

func TestEnqueueReconcilesOwnerAndDocument(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	item := newEntityItem(t, "someone-else", common.EntityPerson, "Alice", 0.6)
	item.SourceDocumentID = "other-doc"
	ids, err := f.queue.Enqueue(ctx, "u1", []*common.ReviewItem{item}, "d1")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != item.ID {
		t.Fatalf("unexpected ids %v", ids)
	}

	got, _ := f.queue.GetItem(ctx, item.ID)
	if got.UserID != "u1" || got.SourceDocumentID != "d1" || got.Entity.UserID != "u1" {
		t.Fatalf("item not reconciled: %+v", got)
	}

	stats, _ := f.queue.GetUserStats(ctx, "u1")
	if stats.TotalPending != 1 {
		t.Fatalf("expected one pending item, got %d", stats.TotalPending)
	}
}

func TestEnqueueValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.queue.Enqueue(ctx, "", []*common.ReviewItem{newEntityItem(t, "u1", common.EntityPerson, "A", 0.5)}, ""); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for empty user, got %v", err)
	}
	if _, err := f.queue.Enqueue(ctx, "u1", nil, ""); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for empty items, got %v", err)
	}
}

func TestUpdateStatusOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := newEntityItem(t, "u1", common.EntityPerson, "Alice", 0.6)
	f.enqueue(t, "u1", "d1", item)

	_, err := f.queue.UpdateStatus(ctx, item.ID, common.ReviewApproved, "u2", nil)
	if !errors.Is(err, common.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	got, _ := f.queue.GetItem(ctx, item.ID)
	if got.Status != common.ReviewPending {
		t.Fatalf("item modified by foreign user: %s", got.Status)
	}

	ok, err := f.queue.UpdateStatus(ctx, "missing", common.ReviewApproved, "u1", nil)
	if ok || err != nil {
		t.Fatalf("expected false without error for missing item, got %v %v", ok, err)
	}
}

func TestUpdateStatusUpdatesStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := newEntityItem(t, "u1", common.EntityPerson, "Alice", 0.9)
	b := newEntityItem(t, "u1", common.EntityPerson, "Bob", 0.5)
	f.enqueue(t, "u1", "d1", a, b)

	reason := "duplicate"
	if ok, err := f.queue.UpdateStatus(ctx, a.ID, common.ReviewApproved, "u1", nil); !ok || err != nil {
		t.Fatalf("approve failed: %v %v", ok, err)
	}
	if ok, err := f.queue.UpdateStatus(ctx, b.ID, common.ReviewRejected, "u1", &reason); !ok || err != nil {
		t.Fatalf("reject failed: %v %v", ok, err)
	}
	if ok, _ := f.queue.UpdateStatus(ctx, b.ID, common.ReviewApproved, "u1", nil); ok {
		t.Fatalf("terminal item must not transition again")
	}

	stats, _ := f.queue.GetUserStats(ctx, "u1")
	if stats.TotalPending != 0 || stats.TotalApproved != 1 || stats.TotalRejected != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if diff := stats.AverageConfidence - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected average confidence 0.7, got %v", stats.AverageConfidence)
	}

	got, _ := f.queue.GetItem(ctx, b.ID)
	if got.RejectionReason == nil || *got.RejectionReason != reason || got.ReviewedAt == nil {
		t.Fatalf("rejection not recorded: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := newEntityItem(t, "u1", common.EntityPerson, "Alice", 0.6)
	f.enqueue(t, "u1", "d1", item)

	if _, err := f.queue.Delete(ctx, item.ID, "u2"); !errors.Is(err, common.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	ok, err := f.queue.Delete(ctx, item.ID, "u1")
	if !ok || err != nil {
		t.Fatalf("delete failed: %v %v", ok, err)
	}
	stats, _ := f.queue.GetUserStats(ctx, "u1")
	if stats.TotalPending != 0 {
		t.Fatalf("pending count not decremented: %d", stats.TotalPending)
	}
	if ok, _ := f.queue.Delete(ctx, item.ID, "u1"); ok {
		t.Fatalf("second delete should report false")
	}
}

func TestGetPendingRejectsUnknownType(t *testing.T) {
	f := newFixture()
	_, err := f.queue.GetPending(context.Background(), store.PendingQuery{UserID: "u1", ItemType: "node"})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
