package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/ai"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// maxExtractedText bounds the chunk excerpt stored on each review item.
const maxExtractedText = 1000

type ProcessDocumentParams struct {
	UserID     string
	DocumentID string
	Text       string
}

type chunkResult struct {
	entities      []entityCandidate
	relationships []relationshipCandidate
}

// ProcessDocument extracts candidates from every chunk of the document,
// enqueues all of them for review and auto approves those above the
// configured thresholds. A failing chunk is skipped; the document only
// fails when no chunk could be processed.
func (g *GraphClient) ProcessDocument(ctx context.Context, params ProcessDocumentParams) (*common.ExtractionSummary, error) {
	if params.UserID == "" {
		return nil, common.NewValidationError("user_id", "user id cannot be empty")
	}
	start := time.Now()
	defer func() { metrics.ProcessingDuration.Observe(time.Since(start).Seconds()) }()

	chunks := ChunkText(params.Text, g.chunkSize, g.chunkOverlap)
	summary := &common.ExtractionSummary{ChunkCount: len(chunks)}
	if len(chunks) == 0 {
		logger.Info("[Graph] Document has no text to extract", "document_id", params.DocumentID)
		return summary, nil
	}

	var (
		mu       sync.Mutex
		entities []entityCandidate
		rels     []relationshipCandidate
		cost     ai.CostEstimate
		firstErr error
	)

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, chunk := range chunks {
		eg.Go(func() error {
			res, c, err := g.processChunk(gCtx, params, chunk)

			mu.Lock()
			defer mu.Unlock()
			cost = cost.Add(c)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				summary.FailedChunks++
				metrics.FailedChunks.Inc()
				if firstErr == nil {
					firstErr = err
				}
				logger.Warn("[Graph] Skipping chunk after extraction failure", "document_id", params.DocumentID, "chunk", i, "err", err)
				return nil
			}
			entities = mergeEntities(entities, res.entities)
			rels = mergeRelationships(rels, res.relationships)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if summary.FailedChunks == len(chunks) {
		return nil, fmt.Errorf("extraction failed for all %d chunks: %w", len(chunks), firstErr)
	}

	summary.InputTokens = cost.InputTokens
	summary.OutputTokens = cost.OutputTokens
	summary.EstimatedCostUSD = cost.USD
	metrics.AITokens.WithLabelValues("input").Add(float64(cost.InputTokens))
	metrics.AITokens.WithLabelValues("output").Add(float64(cost.OutputTokens))
	metrics.AICostUSD.Add(cost.USD)

	items := make([]*common.ReviewItem, 0, len(entities)+len(rels))
	for _, c := range entities {
		items = append(items, common.NewEntityReviewItem(params.UserID, c.entity, util.Truncate(c.text, maxExtractedText)))
	}
	for _, c := range rels {
		items = append(items, common.NewRelationshipReviewItem(params.UserID, c.relationship, util.Truncate(c.text, maxExtractedText)))
	}
	summary.EntityCount = len(entities)
	summary.RelationshipCount = len(rels)
	if len(items) == 0 {
		return summary, nil
	}

	if _, err := g.queue.Enqueue(ctx, params.UserID, items, params.DocumentID); err != nil {
		return nil, fmt.Errorf("failed to enqueue review items: %w", err)
	}
	metrics.ExtractedCandidates.WithLabelValues(string(common.ReviewItemEntity)).Add(float64(len(entities)))
	metrics.ExtractedCandidates.WithLabelValues(string(common.ReviewItemRelationship)).Add(float64(len(rels)))

	g.autoApprove(ctx, params, items, summary)

	logger.Info("[Graph] Processed document",
		"document_id", params.DocumentID,
		"chunks", summary.ChunkCount,
		"failed_chunks", summary.FailedChunks,
		"entities", summary.EntityCount,
		"relationships", summary.RelationshipCount,
		"auto_entities", summary.AutoApprovedEntities,
		"auto_relationships", summary.AutoApprovedRelationships,
		"cost_usd", fmt.Sprintf("%.6f", summary.EstimatedCostUSD),
	)
	return summary, nil
}

func (g *GraphClient) processChunk(ctx context.Context, params ProcessDocumentParams, chunk common.TextChunk) (*chunkResult, ai.CostEstimate, error) {
	found, cost, err := g.extractor.ExtractEntities(ctx, chunk.Text, params.UserID, params.DocumentID, g.entityMinConfidence)
	if err != nil {
		return nil, cost, err
	}

	res := &chunkResult{}
	for _, e := range found {
		res.entities = append(res.entities, entityCandidate{entity: e, text: chunk.Text})
	}

	rels, relCost, err := g.extractor.DetectRelationships(ctx, chunk.Text, found, params.UserID, params.DocumentID, g.relationshipMinConfidence)
	cost = cost.Add(relCost)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, cost, err
		}
		logger.Warn("[Graph] Relationship detection failed, keeping entities", "document_id", params.DocumentID, "err", err)
		return res, cost, nil
	}
	for _, r := range rels {
		res.relationships = append(res.relationships, relationshipCandidate{relationship: r, text: chunk.Text})
	}
	return res, cost, nil
}

// autoApprove approves entities first so relationships only go through
// once both endpoints are in the graph, either from this run or from an
// earlier document.
func (g *GraphClient) autoApprove(ctx context.Context, params ProcessDocumentParams, items []*common.ReviewItem, summary *common.ExtractionSummary) {
	approved := make(map[string]bool)
	for _, item := range items {
		if item.Type != common.ReviewItemEntity || item.Confidence < g.autoApproveEntity {
			continue
		}
		if g.approve(ctx, params.UserID, item) {
			approved[strings.ToLower(item.Entity.Name)] = true
			summary.AutoApprovedEntities++
		}
	}

	for _, item := range items {
		if item.Type != common.ReviewItemRelationship || item.Confidence < g.autoApproveRelationship {
			continue
		}
		r := item.Relationship
		if !g.endpointInGraph(ctx, params.UserID, r.SourceEntity, approved) ||
			!g.endpointInGraph(ctx, params.UserID, r.TargetEntity, approved) {
			logger.Debug("[Graph] Relationship endpoint not in graph, leaving pending", "item_id", item.ID)
			continue
		}
		if g.approve(ctx, params.UserID, item) {
			summary.AutoApprovedRelationships++
		}
	}
}

func (g *GraphClient) endpointInGraph(ctx context.Context, userID, name string, approved map[string]bool) bool {
	if approved[strings.ToLower(name)] {
		return true
	}
	if g.endpoints == nil {
		return false
	}
	ok, err := g.endpoints.EntityExists(ctx, userID, name)
	if err != nil {
		logger.Warn("[Graph] Could not check relationship endpoint", "name", name, "err", err)
		return false
	}
	if ok {
		approved[strings.ToLower(name)] = true
	}
	return ok
}

func (g *GraphClient) approve(ctx context.Context, userID string, item *common.ReviewItem) bool {
	ok, err := g.approver.Approve(ctx, item.ID, userID)
	if err != nil {
		logger.Error("[Graph] Auto approval failed, item stays pending", "item_id", item.ID, "type", item.Type, "err", err)
		return false
	}
	if ok {
		metrics.ReviewTransitions.WithLabelValues(string(item.Type), string(common.ReviewApproved), "auto").Inc()
	}
	return ok
}
