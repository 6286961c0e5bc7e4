package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/store"
)

const (
	// MaxBatchSize caps the items handled by one batch request. Larger
	// requests are truncated.
	MaxBatchSize = 50
	// EstimatedSecondsPerItem is the planning cost of one item.
	EstimatedSecondsPerItem = 0.1
	// longBatchSeconds is the estimate above which a batch is flagged as
	// slow.
	longBatchSeconds = 10.0
)

// itemResult is the outcome of one item of a batch.
type itemResult struct {
	err       error
	errorType string
}

func (r itemResult) ok() bool { return r.err == nil }

// BatchProcessor runs approvals and rejections for many items one after the
// other. Items are independent: a failure is recorded for that item only and
// earlier successes are never rolled back.
type BatchProcessor struct {
	queue    *Queue
	workflow *Workflow
	now      func() time.Time
}

func NewBatchProcessor(queue *Queue, workflow *Workflow) *BatchProcessor {
	return &BatchProcessor{
		queue:    queue,
		workflow: workflow,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateBatch(itemIDs []string, userID string) error {
	if len(itemIDs) == 0 {
		return common.NewValidationError("item_ids", "item ids cannot be empty")
	}
	if userID == "" {
		return common.NewValidationError("user_id", "user id cannot be empty")
	}
	return nil
}

func truncate(itemIDs []string, op common.BatchOperationType) []string {
	if len(itemIDs) <= MaxBatchSize {
		return itemIDs
	}
	logger.Warn("[Batch] Batch exceeds maximum size, truncating", "operation", op, "requested", len(itemIDs), "max", MaxBatchSize)
	return itemIDs[:MaxBatchSize]
}

func (b *BatchProcessor) BatchApprove(ctx context.Context, itemIDs []string, userID string) (*common.BatchResult, error) {
	if err := validateBatch(itemIDs, userID); err != nil {
		return nil, err
	}
	itemIDs = truncate(itemIDs, common.BatchApprove)
	result := b.start(len(itemIDs), common.BatchApprove)
	b.run(ctx, result, itemIDs, common.BatchApprove, func(ctx context.Context, id string) itemResult {
		return b.approveOne(ctx, id, userID)
	})
	return b.finish(result), nil
}

func (b *BatchProcessor) BatchReject(ctx context.Context, itemIDs []string, userID string, reason string) (*common.BatchResult, error) {
	if err := validateBatch(itemIDs, userID); err != nil {
		return nil, err
	}
	itemIDs = truncate(itemIDs, common.BatchReject)
	result := b.start(len(itemIDs), common.BatchReject)
	b.run(ctx, result, itemIDs, common.BatchReject, func(ctx context.Context, id string) itemResult {
		return b.rejectOne(ctx, id, userID, reason)
	})
	return b.finish(result), nil
}

// BatchProcess splits mixed operations into approvals and rejections. All
// rejections share the reason of the first rejection that has one.
func (b *BatchProcessor) BatchProcess(ctx context.Context, ops []common.BatchOperation, userID string) (*common.BatchResult, error) {
	if len(ops) == 0 {
		return nil, common.NewValidationError("operations", "operations cannot be empty")
	}
	if userID == "" {
		return nil, common.NewValidationError("user_id", "user id cannot be empty")
	}
	if len(ops) > MaxBatchSize {
		logger.Warn("[Batch] Batch exceeds maximum size, truncating", "operation", common.BatchMixed, "requested", len(ops), "max", MaxBatchSize)
		ops = ops[:MaxBatchSize]
	}

	var approve, reject []string
	reason := ""
	for _, op := range ops {
		switch op.OperationType {
		case common.BatchApprove:
			approve = append(approve, op.ItemID)
		case common.BatchReject:
			reject = append(reject, op.ItemID)
			if reason == "" {
				reason = op.Reason
			}
		default:
			return nil, common.NewValidationError("operation_type", "unknown operation %q for item %s", op.OperationType, op.ItemID)
		}
	}

	result := b.start(len(ops), common.BatchMixed)
	b.run(ctx, result, approve, common.BatchApprove, func(ctx context.Context, id string) itemResult {
		return b.approveOne(ctx, id, userID)
	})
	b.run(ctx, result, reject, common.BatchReject, func(ctx context.Context, id string) itemResult {
		return b.rejectOne(ctx, id, userID, reason)
	})
	return b.finish(result), nil
}

func (b *BatchProcessor) start(total int, op common.BatchOperationType) *common.BatchResult {
	return &common.BatchResult{
		TotalItems:    total,
		Successful:    []string{},
		Failed:        []common.BatchFailure{},
		OperationType: op,
		StartedAt:     b.now(),
	}
}

func (b *BatchProcessor) finish(result *common.BatchResult) *common.BatchResult {
	result.Complete(b.now())
	logger.Info("[Batch] Batch completed",
		"operation", result.OperationType,
		"total", result.TotalItems,
		"successful", result.SuccessfulCount(),
		"failed", result.FailedCount(),
		"duration", fmt.Sprintf("%.2fs", result.DurationSeconds),
	)
	return result
}

func (b *BatchProcessor) run(
	ctx context.Context,
	result *common.BatchResult,
	itemIDs []string,
	op common.BatchOperationType,
	fn func(ctx context.Context, id string) itemResult,
) {
	for _, id := range itemIDs {
		r := guard(ctx, id, fn)
		if r.ok() {
			result.Successful = append(result.Successful, id)
			metrics.BatchItems.WithLabelValues(string(op), "success").Inc()
			continue
		}
		result.Failed = append(result.Failed, common.BatchFailure{
			ItemID:    id,
			Error:     r.err.Error(),
			ErrorType: r.errorType,
		})
		metrics.BatchItems.WithLabelValues(string(op), r.errorType).Inc()
		logger.Warn("[Batch] Item failed", "operation", op, "item_id", id, "error_type", r.errorType, "err", r.err)
	}
}

// guard turns a panic inside one item into a failure of that item.
func guard(ctx context.Context, id string, fn func(ctx context.Context, id string) itemResult) (r itemResult) {
	defer func() {
		if p := recover(); p != nil {
			r = itemResult{err: fmt.Errorf("panic: %v", p), errorType: common.ErrorTypeException}
		}
	}()
	if err := ctx.Err(); err != nil {
		return itemResult{err: err, errorType: common.ErrorTypeException}
	}
	return fn(ctx, id)
}

func (b *BatchProcessor) approveOne(ctx context.Context, id, userID string) itemResult {
	item, err := b.queue.GetItemForUser(ctx, id, userID)
	if err != nil {
		return itemResult{err: err, errorType: common.ErrorTypeException}
	}

	var ok bool
	if item.Type == common.ReviewItemRelationship {
		ok, err = b.workflow.ApproveRelationship(ctx, id, userID)
	} else {
		ok, err = b.workflow.ApproveEntity(ctx, id, userID)
	}
	if err != nil {
		return itemResult{err: err, errorType: common.ErrorTypeException}
	}
	if !ok {
		return itemResult{err: errors.New("item could not be approved, it is no longer pending"), errorType: common.ErrorTypeApprovalFailed}
	}
	metrics.ReviewTransitions.WithLabelValues(string(item.Type), string(common.ReviewApproved), "manual").Inc()
	return itemResult{}
}

func (b *BatchProcessor) rejectOne(ctx context.Context, id, userID, reason string) itemResult {
	item, err := b.queue.GetItemForUser(ctx, id, userID)
	if err != nil {
		return itemResult{err: err, errorType: common.ErrorTypeException}
	}

	var ok bool
	if item.Type == common.ReviewItemRelationship {
		ok, err = b.workflow.RejectRelationship(ctx, id, userID, reason)
	} else {
		ok, err = b.workflow.RejectEntity(ctx, id, userID, reason)
	}
	if err != nil {
		return itemResult{err: err, errorType: common.ErrorTypeException}
	}
	if !ok {
		return itemResult{err: errors.New("item could not be rejected, it is no longer pending"), errorType: common.ErrorTypeRejectionFailed}
	}
	metrics.ReviewTransitions.WithLabelValues(string(item.Type), string(common.ReviewRejected), "manual").Inc()
	return itemResult{}
}

// GetBatchEstimate estimates the duration of a batch without doing any
// work.
func (b *BatchProcessor) GetBatchEstimate(itemIDs []string) *common.BatchEstimate {
	n := len(itemIDs)
	est := &common.BatchEstimate{
		TotalItems:               n,
		EstimatedDurationSeconds: float64(n) * EstimatedSecondsPerItem,
		MaxBatchSize:             MaxBatchSize,
		Recommendations:          []string{},
	}
	if n > MaxBatchSize {
		est.Recommendations = append(est.Recommendations, fmt.Sprintf("Consider splitting into smaller batches (max %d items)", MaxBatchSize))
	}
	if est.EstimatedDurationSeconds > longBatchSeconds {
		est.Recommendations = append(est.Recommendations, "Large batch may take significant time to complete")
	}
	if n == 0 {
		est.Recommendations = append(est.Recommendations, "No items to process")
	}
	est.EstimatedCompletion = b.now().Add(time.Duration(est.EstimatedDurationSeconds * float64(time.Second)))
	return est
}

// ValidateBatchPermissions reports which items do not exist or belong to
// another user.
func (b *BatchProcessor) ValidateBatchPermissions(ctx context.Context, itemIDs []string, userID string) (bool, []string, error) {
	if err := validateBatch(itemIDs, userID); err != nil {
		return false, nil, err
	}
	unauthorized := make([]string, 0)
	for _, id := range store.DedupeStrings(itemIDs) {
		item, err := b.queue.GetItem(ctx, id)
		if err != nil {
			return false, nil, err
		}
		if item == nil || item.UserID != userID {
			unauthorized = append(unauthorized, id)
		}
	}
	return len(unauthorized) == 0, unauthorized, nil
}
