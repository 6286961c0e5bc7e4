package graph

import (
	"context"

	"github.com/aletheia-codex/backend/pkg/common"
)

// Auto approval thresholds. Candidates at or above them are written to the
// graph during extraction without waiting for a reviewer.
const (
	DefaultAutoApproveEntityConfidence       = 0.85
	DefaultAutoApproveRelationshipConfidence = 0.80
)

// ReviewQueue receives every extracted candidate.
type ReviewQueue interface {
	Enqueue(ctx context.Context, userID string, items []*common.ReviewItem, sourceDocumentID string) ([]string, error)
}

// ReviewApprover approves queued items and writes them to the graph.
type ReviewApprover interface {
	Approve(ctx context.Context, itemID string, userID string) (bool, error)
}

// EndpointChecker reports whether an entity is already in a user's graph.
type EndpointChecker interface {
	EntityExists(ctx context.Context, userID string, name string) (bool, error)
}

// GraphClient runs the extraction pipeline for a document: chunking,
// extraction, queueing and confidence gated auto approval.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	extractor *Extractor
	queue     ReviewQueue
	approver  ReviewApprover
	endpoints EndpointChecker

	chunkSize          int
	chunkOverlap       int
	parallelAiRequests int

	entityMinConfidence       float64
	relationshipMinConfidence float64
	autoApproveEntity         float64
	autoApproveRelationship   float64
}

// NewGraphClientParams defines the configuration of a GraphClient. Zero
// values fall back to the package defaults.
type NewGraphClientParams struct {
	Extractor *Extractor
	Queue     ReviewQueue
	Approver  ReviewApprover
	// Endpoints lets relationships auto approve against entities written
	// by earlier documents. Without it only entities approved in the same
	// run count.
	Endpoints EndpointChecker

	ChunkSize          int
	ChunkOverlap       int
	ParallelAiRequests int

	EntityMinConfidence       float64
	RelationshipMinConfidence float64
	AutoApproveEntity         float64
	AutoApproveRelationship   float64
}

// NewGraphClient creates and returns a new GraphClient.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{
//		Extractor:          graph.NewExtractor(graph.NewExtractorParams{Client: aiClient}),
//		Queue:              reviewQueue,
//		Approver:           workflow,
//		Endpoints:          graphStore,
//		ParallelAiRequests: 4,
//	})
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	g := &GraphClient{
		extractor:                 params.Extractor,
		queue:                     params.Queue,
		approver:                  params.Approver,
		endpoints:                 params.Endpoints,
		chunkSize:                 params.ChunkSize,
		chunkOverlap:              params.ChunkOverlap,
		parallelAiRequests:        params.ParallelAiRequests,
		entityMinConfidence:       params.EntityMinConfidence,
		relationshipMinConfidence: params.RelationshipMinConfidence,
		autoApproveEntity:         params.AutoApproveEntity,
		autoApproveRelationship:   params.AutoApproveRelationship,
	}
	if g.chunkSize <= 0 {
		g.chunkSize = DefaultChunkSize
	}
	if g.chunkOverlap <= 0 {
		g.chunkOverlap = DefaultChunkOverlap
	}
	if g.parallelAiRequests <= 0 {
		g.parallelAiRequests = 1
	}
	if g.entityMinConfidence <= 0 {
		g.entityMinConfidence = DefaultEntityMinConfidence
	}
	if g.relationshipMinConfidence <= 0 {
		g.relationshipMinConfidence = DefaultRelationshipMinConfidence
	}
	if g.autoApproveEntity <= 0 {
		g.autoApproveEntity = DefaultAutoApproveEntityConfidence
	}
	if g.autoApproveRelationship <= 0 {
		g.autoApproveRelationship = DefaultAutoApproveRelationshipConfidence
	}
	return g
}
