package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/aletheia-codex/backend/pkg/common"
)

const addPendingSQL = `
INSERT INTO user_stats (user_id, total_pending)
VALUES ($1, GREATEST($2::int, 0))
ON CONFLICT (user_id) DO UPDATE
SET total_pending = GREATEST(user_stats.total_pending + $2::int, 0)
`

// recordReviewSQL folds one decision into the running mean. All right hand
// sides read the row as it was before the update.
const recordReviewSQL = `
INSERT INTO user_stats (user_id, total_pending, total_approved, total_rejected, last_review_at, average_confidence)
VALUES ($1, 0, $2::int, $3::int, $4, $5::double precision)
ON CONFLICT (user_id) DO UPDATE
SET average_confidence = (user_stats.average_confidence * (user_stats.total_approved + user_stats.total_rejected) + $5::double precision)
        / (user_stats.total_approved + user_stats.total_rejected + 1),
    total_approved = user_stats.total_approved + $2::int,
    total_rejected = user_stats.total_rejected + $3::int,
    total_pending  = GREATEST(user_stats.total_pending - 1, 0),
    last_review_at = $4
`

const getUserStatsSQL = `
INSERT INTO user_stats (user_id) VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING user_id, total_pending, total_approved, total_rejected, last_review_at, average_confidence
`

func (s *ReviewDBStorage) AddPending(ctx context.Context, userID string, delta int) error {
	if _, err := s.conn.Exec(ctx, addPendingSQL, userID, delta); err != nil {
		return fmt.Errorf("failed to update pending count: %w", err)
	}
	return nil
}

func (s *ReviewDBStorage) RecordReview(
	ctx context.Context,
	userID string,
	status common.ReviewStatus,
	confidence float64,
	at time.Time,
) error {
	approved, rejected := reviewDeltas(status)
	if _, err := s.conn.Exec(ctx, recordReviewSQL, userID, approved, rejected, at, confidence); err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	return nil
}

func reviewDeltas(status common.ReviewStatus) (approved int, rejected int) {
	switch status {
	case common.ReviewApproved:
		return 1, 0
	case common.ReviewRejected:
		return 0, 1
	default:
		return 0, 0
	}
}

func (s *ReviewDBStorage) GetUserStats(ctx context.Context, userID string) (*common.UserStats, error) {
	var st common.UserStats
	err := s.conn.QueryRow(ctx, getUserStatsSQL, userID).Scan(
		&st.UserID,
		&st.TotalPending,
		&st.TotalApproved,
		&st.TotalRejected,
		&st.LastReviewAt,
		&st.AverageConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	return &st, nil
}
