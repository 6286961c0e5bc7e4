package common

import (
	"encoding/json"
	"time"
)

type BatchOperationType string

const (
	BatchApprove BatchOperationType = "approve"
	BatchReject  BatchOperationType = "reject"
	BatchMixed   BatchOperationType = "mixed"
)

// Failure categories reported per item in a BatchResult.
const (
	ErrorTypeApprovalFailed  = "approval_failed"
	ErrorTypeRejectionFailed = "rejection_failed"
	ErrorTypeException       = "exception"
)

// BatchOperation is a single step of a mixed batch.
type BatchOperation struct {
	ItemID        string             `json:"item_id" validate:"required"`
	OperationType BatchOperationType `json:"operation_type" validate:"required,oneof=approve reject"`
	Reason        string             `json:"reason,omitempty"`
}

type BatchFailure struct {
	ItemID    string `json:"item_id"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// BatchResult collects the per-item outcome of a batch. Items are
// independent: a failure never undoes earlier successes.
type BatchResult struct {
	TotalItems      int                `json:"total_items"`
	Successful      []string           `json:"successful"`
	Failed          []BatchFailure     `json:"failed"`
	OperationType   BatchOperationType `json:"operation_type"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     time.Time          `json:"completed_at"`
	DurationSeconds float64            `json:"duration_seconds"`
}

func (r *BatchResult) SuccessfulCount() int { return len(r.Successful) }

func (r *BatchResult) FailedCount() int { return len(r.Failed) }

// SuccessRate is the percentage of successful items, 0 for an empty batch.
func (r *BatchResult) SuccessRate() float64 {
	if r.TotalItems == 0 {
		return 0
	}
	return float64(len(r.Successful)) / float64(r.TotalItems) * 100
}

// Complete stamps the completion time and duration.
func (r *BatchResult) Complete(at time.Time) {
	r.CompletedAt = at
	r.DurationSeconds = at.Sub(r.StartedAt).Seconds()
}

func (r BatchResult) MarshalJSON() ([]byte, error) {
	type alias BatchResult
	successful := r.Successful
	if successful == nil {
		successful = []string{}
	}
	failed := r.Failed
	if failed == nil {
		failed = []BatchFailure{}
	}
	a := alias(r)
	a.Successful = successful
	a.Failed = failed
	return json.Marshal(struct {
		alias
		SuccessfulCount int     `json:"successful_count"`
		FailedCount     int     `json:"failed_count"`
		SuccessRate     float64 `json:"success_rate"`
	}{
		alias:           a,
		SuccessfulCount: r.SuccessfulCount(),
		FailedCount:     r.FailedCount(),
		SuccessRate:     r.SuccessRate(),
	})
}

// BatchEstimate is the pre-flight estimate returned before running a batch.
type BatchEstimate struct {
	TotalItems               int       `json:"total_items"`
	EstimatedDurationSeconds float64   `json:"estimated_duration_seconds"`
	MaxBatchSize             int       `json:"max_batch_size"`
	Recommendations          []string  `json:"recommendations"`
	EstimatedCompletion      time.Time `json:"estimated_completion"`
}
