package neo4j

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const ensureUserCypher = `
MERGE (u:User {user_id: $user_id})
ON CREATE SET u.created_at = datetime()
`

// Entities are keyed by owner, label and name. Confidence only ever grows;
// incoming properties overwrite existing ones.
const createEntityCypher = `
MERGE (u:User {user_id: $user_id})
ON CREATE SET u.created_at = datetime()
MERGE (u)-[:OWNS]->(e:%s {user_id: $user_id, name: $name})
ON CREATE SET e.created_at = datetime(),
              e.confidence = $confidence,
              e.entity_type = $entity_type,
              e.source_document_id = $source_document_id
ON MATCH SET e.confidence = CASE
    WHEN e.confidence IS NULL OR $confidence > e.confidence THEN $confidence
    ELSE e.confidence
END
SET e += $properties,
    e.updated_at = datetime()
FOREACH (_ IN CASE WHEN $metadata_json = '' THEN [] ELSE [1] END |
    SET e.metadata_json = $metadata_json)
RETURN e.confidence AS confidence
`

const createRelationshipCypher = `
MATCH (u:User {user_id: $user_id})-[:OWNS]->(s {name: $source})
MATCH (u)-[:OWNS]->(t {name: $target})
MERGE (s)-[r:%s]->(t)
ON CREATE SET r.created_at = datetime(),
              r.confidence = $confidence,
              r.user_id = $user_id,
              r.source_document_id = $source_document_id
ON MATCH SET r.confidence = CASE
    WHEN r.confidence IS NULL OR $confidence > r.confidence THEN $confidence
    ELSE r.confidence
END
SET r += $properties,
    r.updated_at = datetime()
RETURN count(r) AS written
`

const entityExistsCypher = `
MATCH (:User {user_id: $user_id})-[:OWNS]->(e {name: $name})
RETURN count(e) > 0 AS found
`

const entityStatsCypher = `
MATCH (:User {user_id: $user_id})-[:OWNS]->(e)
RETURN count(e) AS entities, count(DISTINCT e.entity_type) AS entity_types
`

const relationshipStatsCypher = `
MATCH (u:User {user_id: $user_id})-[:OWNS]->()-[r]->(t)<-[:OWNS]-(u)
RETURN count(DISTINCT r) AS relationships
`

// reservedProperties are managed by the store and never taken from the
// extracted properties.
var reservedProperties = map[string]struct{}{
	"user_id":            {},
	"name":               {},
	"confidence":         {},
	"entity_type":        {},
	"source_document_id": {},
	"created_at":         {},
	"updated_at":         {},
	"metadata_json":      {},
}

// entityLabel maps the entity type onto one of the known node labels.
func entityLabel(entityType string) string {
	return common.NormalizeEntityType(entityType)
}

func entityLabels() []string {
	return common.EntityTypes
}

// toProperties flattens values Neo4j cannot store as properties. Nested maps
// and mixed lists are stored as JSON strings.
func toProperties(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, ok := reservedProperties[k]; ok || k == "" {
			continue
		}
		switch val := v.(type) {
		case nil:
			continue
		case string, bool, int, int32, int64, float32, float64:
			out[k] = val
		case []string:
			out[k] = val
		case []any:
			if strs, ok := stringSlice(val); ok {
				out[k] = strs
				continue
			}
			out[k] = jsonString(val)
		default:
			out[k] = jsonString(val)
		}
	}
	return out
}

func stringSlice(in []any) ([]string, bool) {
	out := make([]string, 0, len(in))
	for _, v := range in {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func jsonString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func (s *GraphNeo4jStorage) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return common.NewValidationError("user_id", "user id cannot be empty")
	}
	if _, err := s.run.write(ctx, ensureUserCypher, map[string]any{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", userID, err)
	}
	return nil
}

func (s *GraphNeo4jStorage) CreateEntity(ctx context.Context, entity *common.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	if entity.UserID == "" {
		return common.NewValidationError("user_id", "user id cannot be empty")
	}

	label := entityLabel(entity.Type)
	meta := ""
	if len(entity.Metadata) > 0 {
		meta = jsonString(entity.Metadata)
	}
	params := map[string]any{
		"user_id":            entity.UserID,
		"name":               entity.Name,
		"confidence":         entity.Confidence,
		"entity_type":        label,
		"source_document_id": entity.SourceDocumentID,
		"properties":         toProperties(entity.Properties),
		"metadata_json":      meta,
	}
	cypher := fmt.Sprintf(createEntityCypher, "`"+label+"`")
	if _, err := s.run.write(ctx, cypher, params); err != nil {
		return fmt.Errorf("failed to write entity %q: %w", entity.Name, err)
	}
	return nil
}

func (s *GraphNeo4jStorage) CreateRelationship(ctx context.Context, rel *common.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	params := map[string]any{
		"user_id":            rel.UserID,
		"source":             rel.SourceEntity,
		"target":             rel.TargetEntity,
		"confidence":         rel.Confidence,
		"source_document_id": rel.SourceDocumentID,
		"properties":         toProperties(rel.Properties),
	}
	cypher := fmt.Sprintf(createRelationshipCypher, "`"+common.RelationshipLabel(rel.RelationshipType)+"`")
	records, err := s.run.write(ctx, cypher, params)
	if err != nil {
		return fmt.Errorf("failed to write relationship %s -> %s: %w", rel.SourceEntity, rel.TargetEntity, err)
	}
	if intValue(records, "written") == 0 {
		return common.NotFoundf("endpoints %q and %q for user %s", rel.SourceEntity, rel.TargetEntity, rel.UserID)
	}
	return nil
}

func (s *GraphNeo4jStorage) EntityExists(ctx context.Context, userID string, name string) (bool, error) {
	records, err := s.run.read(ctx, entityExistsCypher, map[string]any{"user_id": userID, "name": name})
	if err != nil {
		return false, fmt.Errorf("failed to look up entity %q: %w", name, err)
	}
	if len(records) == 0 {
		return false, nil
	}
	found, _ := records[0].Get("found")
	ok, _ := found.(bool)
	return ok, nil
}

func (s *GraphNeo4jStorage) PopulateFromDocument(
	ctx context.Context,
	entities []*common.Entity,
	relationships []*common.Relationship,
	userID string,
) (*common.PopulateResult, error) {
	return store.Populate(ctx, s, entities, relationships, userID)
}

func (s *GraphNeo4jStorage) GetUserStats(ctx context.Context, userID string) (*common.GraphStats, error) {
	params := map[string]any{"user_id": userID}
	entityRecords, err := s.run.read(ctx, entityStatsCypher, params)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	relRecords, err := s.run.read(ctx, relationshipStatsCypher, params)
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships: %w", err)
	}
	return &common.GraphStats{
		UserID:            userID,
		EntityCount:       intValue(entityRecords, "entities"),
		EntityTypes:       intValue(entityRecords, "entity_types"),
		RelationshipCount: intValue(relRecords, "relationships"),
	}, nil
}

// intValue reads an integer column of the first record. Missing rows or
// columns count as zero.
func intValue(records []*neo4jdrv.Record, key string) int {
	if len(records) == 0 {
		return 0
	}
	v, ok := records[0].Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
