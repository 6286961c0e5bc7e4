package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/internal/storage"
	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/ai"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/graph"
	"github.com/aletheia-codex/backend/pkg/leaselock"
	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/store"
)

const (
	documentLockTTL = 10 * time.Minute
	maxErrorLength  = 500
)

// DocumentProcessor runs extraction for a document's text.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, params graph.ProcessDocumentParams) (*common.ExtractionSummary, error)
}

// ApprovedLister returns the approved review items of a user.
type ApprovedLister interface {
	ListApproved(ctx context.Context, userID string) ([]*common.ReviewItem, error)
}

// Worker handles the messages of the extract and rebuild queues.
type Worker struct {
	documents store.DocumentStore
	storage   storage.DocumentStorage
	pipeline  DocumentProcessor
	approved  ApprovedLister
	graph     store.GraphStore
	locks     *leaselock.Client
	cache     cache.Cache
	now       func() time.Time
}

type NewWorkerParams struct {
	Documents store.DocumentStore
	Storage   storage.DocumentStorage
	Pipeline  DocumentProcessor
	Approved  ApprovedLister
	Graph     store.GraphStore
	Locks     *leaselock.Client
	Cache     cache.Cache
}

func NewWorker(params NewWorkerParams) *Worker {
	locks := params.Locks
	if locks == nil {
		locks = leaselock.NewMemory()
	}
	return &Worker{
		documents: params.Documents,
		storage:   params.Storage,
		pipeline:  params.Pipeline,
		approved:  params.Approved,
		graph:     params.Graph,
		locks:     locks,
		cache:     params.Cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle dispatches a message body by queue. A nil result means the message
// is done, including permanent failures recorded on the document; an error
// asks for a retry.
func (w *Worker) Handle(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case ExtractQueue:
		return w.HandleExtract(ctx, body)
	case RebuildQueue:
		return w.HandleRebuild(ctx, body)
	default:
		logger.Warn("[Queue] Dropping message for unknown queue", "queue", queueName)
		return nil
	}
}

// Retryable reports whether a failed job may succeed when run again.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrPermission):
		return false
	case errors.Is(err, ai.ErrAuth), errors.Is(err, ai.ErrRequest), errors.Is(err, ai.ErrResponse):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

func (w *Worker) HandleExtract(ctx context.Context, body []byte) error {
	var msg ExtractMsg
	if err := json.Unmarshal(body, &msg); err != nil || msg.DocumentID == "" {
		logger.Error("[Queue] Dropping malformed extract message", "err", err)
		return nil
	}

	err := w.locks.WithLease(ctx, "document:"+msg.DocumentID, leaselock.Options{TTL: documentLockTTL}, func(ctx context.Context) error {
		return w.extract(ctx, msg)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] Document is being processed elsewhere", "document_id", msg.DocumentID)
	}
	return err
}

func (w *Worker) extract(ctx context.Context, msg ExtractMsg) error {
	doc, err := w.documents.GetDocument(ctx, msg.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil || (msg.UserID != "" && doc.UserID != msg.UserID) {
		logger.Warn("[Queue] Document not found for extract message", "document_id", msg.DocumentID, "user_id", msg.UserID)
		return nil
	}
	if doc.Status == common.DocumentCompleted {
		logger.Info("[Queue] Document already completed, skipping", "document_id", doc.ID)
		return nil
	}

	claimed, err := w.documents.UpdateDocumentStatus(ctx, store.DocumentUpdate{
		DocumentID: doc.ID,
		Status:     common.DocumentProcessing,
		At:         w.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to claim document: %w", err)
	}
	if !claimed {
		logger.Warn("[Queue] Document could not be claimed", "document_id", doc.ID, "status", doc.Status)
		return nil
	}
	logger.Info("[Queue] Processing document", "document_id", doc.ID, "user_id", doc.UserID, "correlation_id", msg.CorrelationID)

	text, err := w.storage.GetDocument(ctx, doc.ContentKey)
	if err != nil {
		return w.fail(ctx, doc, fmt.Errorf("failed to read document body: %w", err))
	}

	summary, err := w.pipeline.ProcessDocument(ctx, graph.ProcessDocumentParams{
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		Text:       string(text),
	})
	if err != nil {
		return w.fail(ctx, doc, err)
	}

	ok, err := w.documents.UpdateDocumentStatus(context.WithoutCancel(ctx), store.DocumentUpdate{
		DocumentID: doc.ID,
		Status:     common.DocumentCompleted,
		Summary:    summary,
		At:         w.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to complete document: %w", err)
	}
	if !ok {
		logger.Warn("[Queue] Document left processing concurrently", "document_id", doc.ID)
	}
	metrics.DocumentsProcessed.WithLabelValues(string(common.DocumentCompleted)).Inc()
	if summary.AutoApprovedEntities+summary.AutoApprovedRelationships > 0 {
		cache.Invalidate(ctx, w.cache, cache.GraphStatsKey(doc.UserID))
	}
	return nil
}

// fail records cause on the document. The cause is returned when the job
// should be retried.
func (w *Worker) fail(ctx context.Context, doc *common.Document, cause error) error {
	logger.Error("[Queue] Document processing failed", "document_id", doc.ID, "err", cause)
	metrics.DocumentsProcessed.WithLabelValues(string(common.DocumentFailed)).Inc()

	_, err := w.documents.UpdateDocumentStatus(context.WithoutCancel(ctx), store.DocumentUpdate{
		DocumentID: doc.ID,
		Status:     common.DocumentFailed,
		Error:      util.Truncate(cause.Error(), maxErrorLength),
		At:         w.now(),
	})
	if err != nil {
		logger.Error("[Queue] Failed to mark document failed", "document_id", doc.ID, "err", err)
	}
	if Retryable(cause) {
		return cause
	}
	return nil
}

func (w *Worker) HandleRebuild(ctx context.Context, body []byte) error {
	var msg RebuildMsg
	if err := json.Unmarshal(body, &msg); err != nil || msg.UserID == "" {
		logger.Error("[Queue] Dropping malformed rebuild message", "err", err)
		return nil
	}
	return w.locks.WithLease(ctx, "rebuild:"+msg.UserID, leaselock.Options{TTL: documentLockTTL}, func(ctx context.Context) error {
		_, err := w.Rebuild(ctx, msg.UserID)
		return err
	})
}

// Rebuild writes every approved review item of userID into the graph again.
// Relationship endpoints that no approved entity covers and that are not in
// the graph yet are created as placeholders.
func (w *Worker) Rebuild(ctx context.Context, userID string) (*common.PopulateResult, error) {
	items, err := w.approved.ListApproved(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved items: %w", err)
	}

	var (
		entities []*common.Entity
		rels     []*common.Relationship
		known    = make(map[string]bool)
	)
	for _, item := range items {
		switch {
		case item.Entity != nil:
			e := *item.Entity
			e.Metadata = withReviewItem(e.Metadata, item.ID)
			entities = append(entities, &e)
			known[strings.ToLower(e.Name)] = true
		case item.Relationship != nil:
			r := *item.Relationship
			r.Metadata = withReviewItem(r.Metadata, item.ID)
			rels = append(rels, &r)
		}
	}

	for _, r := range rels {
		for _, name := range []string{r.SourceEntity, r.TargetEntity} {
			if known[strings.ToLower(name)] {
				continue
			}
			known[strings.ToLower(name)] = true
			exists, err := w.graph.EntityExists(ctx, userID, name)
			if err != nil {
				return nil, fmt.Errorf("failed to check endpoint %q: %w", name, err)
			}
			if exists {
				continue
			}
			entities = append(entities, &common.Entity{
				Type:       common.EntityThing,
				Name:       name,
				Properties: map[string]any{},
				Confidence: 1.0,
				UserID:     userID,
				CreatedAt:  w.now(),
				Metadata:   map[string]any{"auto_created": true, "reason": "graph_rebuild"},
			})
		}
	}

	res, err := w.graph.PopulateFromDocument(ctx, entities, rels, userID)
	if err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, w.cache, cache.GraphStatsKey(userID))
	logger.Info("[Queue] Rebuilt graph", "user_id", userID, "items", len(items))
	return res, nil
}

func withReviewItem(meta map[string]any, itemID string) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["review_item_id"] = itemID
	return out
}
