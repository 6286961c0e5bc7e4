package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"
)

type nodeKey struct {
	userID string
	typ    string
	name   string
}

type edgeKey struct {
	userID string
	source string
	typ    string
	target string
}

// Graph is an in-memory GraphStore with the same merge rules as the Neo4j
// implementation.
type Graph struct {
	mu    sync.RWMutex
	users map[string]struct{}
	nodes map[nodeKey]*common.Entity
	edges map[edgeKey]*common.Relationship
}

func NewGraph() *Graph {
	return &Graph{
		users: make(map[string]struct{}),
		nodes: make(map[nodeKey]*common.Entity),
		edges: make(map[edgeKey]*common.Relationship),
	}
}

var _ store.GraphStore = (*Graph)(nil)

func (g *Graph) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return common.NewValidationError("user_id", "user id cannot be empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users[userID] = struct{}{}
	return nil
}

func (g *Graph) CreateEntity(ctx context.Context, entity *common.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	if err := g.EnsureUser(ctx, entity.UserID); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	k := nodeKey{userID: entity.UserID, typ: entity.Type, name: entity.Name}
	existing, ok := g.nodes[k]
	if !ok {
		e := *entity
		e.Properties = maps.Clone(entity.Properties)
		e.Metadata = maps.Clone(entity.Metadata)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		g.nodes[k] = &e
		return nil
	}

	existing.Confidence = max(existing.Confidence, entity.Confidence)
	existing.Properties = mergeProps(existing.Properties, entity.Properties)
	return nil
}

func (g *Graph) CreateRelationship(ctx context.Context, rel *common.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasName(rel.UserID, rel.SourceEntity) {
		return common.NotFoundf("source entity %q", rel.SourceEntity)
	}
	if !g.hasName(rel.UserID, rel.TargetEntity) {
		return common.NotFoundf("target entity %q", rel.TargetEntity)
	}

	k := edgeKey{userID: rel.UserID, source: rel.SourceEntity, typ: common.RelationshipLabel(rel.RelationshipType), target: rel.TargetEntity}
	existing, ok := g.edges[k]
	if !ok {
		r := *rel
		r.Properties = maps.Clone(rel.Properties)
		r.Metadata = maps.Clone(rel.Metadata)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		g.edges[k] = &r
		return nil
	}

	existing.Confidence = max(existing.Confidence, rel.Confidence)
	existing.Properties = mergeProps(existing.Properties, rel.Properties)
	return nil
}

func mergeProps(existing, incoming map[string]any) map[string]any {
	if existing == nil {
		existing = make(map[string]any, len(incoming))
	}
	maps.Copy(existing, incoming)
	return existing
}

func (g *Graph) hasName(userID, name string) bool {
	for k := range g.nodes {
		if k.userID == userID && k.name == name {
			return true
		}
	}
	return false
}

func (g *Graph) EntityExists(ctx context.Context, userID string, name string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasName(userID, name), nil
}

func (g *Graph) PopulateFromDocument(
	ctx context.Context,
	entities []*common.Entity,
	relationships []*common.Relationship,
	userID string,
) (*common.PopulateResult, error) {
	return store.Populate(ctx, g, entities, relationships, userID)
}

func (g *Graph) GetUserStats(ctx context.Context, userID string) (*common.GraphStats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := &common.GraphStats{UserID: userID}
	types := make(map[string]struct{})
	for k := range g.nodes {
		if k.userID == userID {
			stats.EntityCount++
			types[k.typ] = struct{}{}
		}
	}
	for k := range g.edges {
		if k.userID == userID {
			stats.RelationshipCount++
		}
	}
	stats.EntityTypes = len(types)
	return stats, nil
}

// Entity returns a copy of the stored node, mainly for tests.
func (g *Graph) Entity(userID, entityType, name string) (*common.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.nodes[nodeKey{userID: userID, typ: entityType, name: name}]
	if !ok {
		return nil, false
	}
	c := *e
	c.Properties = maps.Clone(e.Properties)
	return &c, true
}

// Relationship returns a copy of the stored edge, mainly for tests.
func (g *Graph) Relationship(userID, source, relType, target string) (*common.Relationship, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.edges[edgeKey{userID: userID, source: source, typ: common.RelationshipLabel(relType), target: target}]
	if !ok {
		return nil, false
	}
	c := *r
	c.Properties = maps.Clone(r.Properties)
	return &c, true
}
