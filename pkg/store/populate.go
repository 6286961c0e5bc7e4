package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/logger"
)

// entityWriter is the subset of GraphStore needed to populate a graph.
type entityWriter interface {
	EnsureUser(ctx context.Context, userID string) error
	CreateEntity(ctx context.Context, entity *common.Entity) error
	CreateRelationship(ctx context.Context, rel *common.Relationship) error
}

// Populate writes entities and then relationships for userID. Individual
// failures are logged and counted; only a failure to create the owner node
// aborts the population.
func Populate(
	ctx context.Context,
	g entityWriter,
	entities []*common.Entity,
	relationships []*common.Relationship,
	userID string,
) (*common.PopulateResult, error) {
	if userID == "" {
		return nil, common.NewValidationError("user_id", "user id cannot be empty")
	}
	if err := g.EnsureUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure user node: %w", err)
	}

	res := &common.PopulateResult{UserID: userID}
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.UserID = userID
		if err := g.CreateEntity(ctx, e); err != nil {
			res.EntitiesFailed++
			metrics.GraphWrites.WithLabelValues("entity", "failed").Inc()
			logger.Warn("[Graph] Skipping entity", "user_id", userID, "name", e.Name, "err", err)
			continue
		}
		res.EntitiesCreated++
		metrics.GraphWrites.WithLabelValues("entity", "ok").Inc()
	}
	for _, r := range relationships {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r.UserID = userID
		if err := g.CreateRelationship(ctx, r); err != nil {
			res.RelationshipsFailed++
			metrics.GraphWrites.WithLabelValues("relationship", "failed").Inc()
			logger.Warn("[Graph] Skipping relationship",
				"user_id", userID,
				"source", r.SourceEntity,
				"type", r.RelationshipType,
				"target", r.TargetEntity,
				"err", err,
			)
			continue
		}
		res.RelationshipsCreated++
		metrics.GraphWrites.WithLabelValues("relationship", "ok").Inc()
	}
	res.Timestamp = time.Now().UTC()

	logger.Info("[Graph] Populated graph",
		"user_id", userID,
		"entities", res.EntitiesCreated,
		"relationships", res.RelationshipsCreated,
		"entities_failed", res.EntitiesFailed,
		"relationships_failed", res.RelationshipsFailed,
	)
	return res, nil
}
