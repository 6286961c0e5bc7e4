package common

import (
	"encoding/json"
	"strings"
	"time"
)

// Entity types recognised by the graph. Anything else is normalised to one
// of these through the alias table or falls back to EntityThing.
const (
	EntityPerson       = "Person"
	EntityOrganization = "Organization"
	EntityPlace        = "Place"
	EntityConcept      = "Concept"
	EntityMoment       = "Moment"
	EntityThing        = "Thing"
)

// Standard relationship types. Unknown relationship types are kept as-is
// after normalisation so the model can introduce domain specific edges.
const (
	RelKnows      = "KNOWS"
	RelWorksAt    = "WORKS_AT"
	RelLocatedIn  = "LOCATED_IN"
	RelRelatedTo  = "RELATED_TO"
	RelHappenedAt = "HAPPENED_AT"
	RelInvolves   = "INVOLVES"
	RelPartOf     = "PART_OF"
	RelCreated    = "CREATED"
	RelOwns       = "OWNS"
	RelMemberOf   = "MEMBER_OF"
	RelManages    = "MANAGES"
	RelReportsTo  = "REPORTS_TO"
	RelFounded    = "FOUNDED"
	RelAttended   = "ATTENDED"
	RelStudiedAt  = "STUDIED_AT"
)

// EntityTypes lists the valid entity types in prompt order.
var EntityTypes = []string{
	EntityPerson, EntityOrganization, EntityPlace, EntityConcept, EntityMoment, EntityThing,
}

// RelationshipTypes lists the standard relationship types in prompt order.
var RelationshipTypes = []string{
	RelKnows, RelWorksAt, RelLocatedIn, RelRelatedTo, RelHappenedAt, RelInvolves, RelPartOf,
	RelCreated, RelOwns, RelMemberOf, RelManages, RelReportsTo, RelFounded, RelAttended, RelStudiedAt,
}

var entityTypeAliases = map[string]string{
	"Company":  EntityOrganization,
	"Business": EntityOrganization,
	"Location": EntityPlace,
	"Event":    EntityMoment,
	"Idea":     EntityConcept,
	"Topic":    EntityConcept,
	"Object":   EntityThing,
	"Item":     EntityThing,
}

var relationshipTypeAliases = map[string]string{
	"EMPLOYED_BY":     RelWorksAt,
	"EMPLOYEE_OF":     RelWorksAt,
	"IN":              RelLocatedIn,
	"AT":              RelLocatedIn,
	"CONNECTED_TO":    RelRelatedTo,
	"ASSOCIATED_WITH": RelRelatedTo,
	"OCCURRED_AT":     RelHappenedAt,
	"INCLUDES":        RelInvolves,
	"CONTAINS":        RelInvolves,
	"COMPONENT_OF":    RelPartOf,
	"BELONGS_TO":      RelPartOf,
}

// RelationshipLabel reduces s to [A-Z0-9_] so it can be used as a graph
// edge label. Empty results fall back to RELATED_TO.
func RelationshipLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return RelRelatedTo
	}
	return b.String()
}

// TextChunk represents a contiguous, sentence aligned slice of a document.
// Chunks are transient: they only live for the duration of an extraction
// run and are never persisted.
type TextChunk struct {
	Text     string `json:"text"`
	StartPos int    `json:"start_pos"`
	EndPos   int    `json:"end_pos"`
	Length   int    `json:"length"`
}

// Entity represents a node in a user's knowledge graph. Entities are
// identified by (owner, type, name); repeated writes merge into the same
// node and keep the highest confidence seen.
type Entity struct {
	Type             string         `json:"type"`
	Name             string         `json:"name"`
	Properties       map[string]any `json:"properties"`
	Confidence       float64        `json:"confidence"`
	SourceDocumentID string         `json:"source_document_id,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	Metadata         map[string]any `json:"metadata"`
}

type NewEntityParams struct {
	Type             string
	Name             string
	Properties       map[string]any
	Confidence       float64
	SourceDocumentID string
	UserID           string
	Metadata         map[string]any
}

// NewEntity normalises the type and name of an entity and validates it.
func NewEntity(params NewEntityParams) (*Entity, error) {
	e := &Entity{
		Type:             params.Type,
		Name:             params.Name,
		Properties:       params.Properties,
		Confidence:       params.Confidence,
		SourceDocumentID: params.SourceDocumentID,
		UserID:           params.UserID,
		CreatedAt:        time.Now().UTC(),
		Metadata:         params.Metadata,
	}
	e.normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Entity) normalize() {
	e.Name = strings.TrimSpace(e.Name)
	e.Type = NormalizeEntityType(e.Type)
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
}

// Validate checks the invariants of an entity.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return NewValidationError("name", "entity name cannot be empty")
	}
	if e.Type == "" {
		return NewValidationError("type", "entity type cannot be empty")
	}
	return validateConfidence(e.Confidence)
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	type alias Entity
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entity(raw)
	e.normalize()
	return e.Validate()
}

// Relationship represents a directed, typed edge between two entities that
// are referenced by name within the same owner's graph.
type Relationship struct {
	SourceEntity     string         `json:"source_entity"`
	TargetEntity     string         `json:"target_entity"`
	RelationshipType string         `json:"relationship_type"`
	Properties       map[string]any `json:"properties"`
	Confidence       float64        `json:"confidence"`
	SourceDocumentID string         `json:"source_document_id,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	Metadata         map[string]any `json:"metadata"`
}

type NewRelationshipParams struct {
	SourceEntity     string
	TargetEntity     string
	RelationshipType string
	Properties       map[string]any
	Confidence       float64
	SourceDocumentID string
	UserID           string
	Metadata         map[string]any
}

func NewRelationship(params NewRelationshipParams) (*Relationship, error) {
	r := &Relationship{
		SourceEntity:     params.SourceEntity,
		TargetEntity:     params.TargetEntity,
		RelationshipType: params.RelationshipType,
		Properties:       params.Properties,
		Confidence:       params.Confidence,
		SourceDocumentID: params.SourceDocumentID,
		UserID:           params.UserID,
		CreatedAt:        time.Now().UTC(),
		Metadata:         params.Metadata,
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Relationship) normalize() {
	r.SourceEntity = strings.TrimSpace(r.SourceEntity)
	r.TargetEntity = strings.TrimSpace(r.TargetEntity)
	r.RelationshipType = NormalizeRelationshipType(r.RelationshipType)
	if r.Properties == nil {
		r.Properties = map[string]any{}
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
}

func (r *Relationship) Validate() error {
	if r.SourceEntity == "" {
		return NewValidationError("source_entity", "source entity cannot be empty")
	}
	if r.TargetEntity == "" {
		return NewValidationError("target_entity", "target entity cannot be empty")
	}
	return validateConfidence(r.Confidence)
}

func (r *Relationship) UnmarshalJSON(data []byte) error {
	type alias Relationship
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Relationship(raw)
	r.normalize()
	return r.Validate()
}

// NormalizeEntityType title-cases the given type and maps it onto one of
// the known entity types. Unknown types become EntityThing.
func NormalizeEntityType(t string) string {
	t = titleCase(strings.TrimSpace(t))
	for _, known := range EntityTypes {
		if t == known {
			return t
		}
	}
	if alias, ok := entityTypeAliases[t]; ok {
		return alias
	}
	return EntityThing
}

// NormalizeRelationshipType upper-cases the type and replaces spaces with
// underscores. Aliases are mapped onto the standard types, anything else is
// returned unchanged. An empty type becomes RELATED_TO.
func NormalizeRelationshipType(t string) string {
	t = strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(t)), " ", "_")
	if t == "" {
		return RelRelatedTo
	}
	if alias, ok := relationshipTypeAliases[t]; ok {
		return alias
	}
	return t
}

func titleCase(s string) string {
	b := []rune(strings.ToLower(s))
	upper := true
	for i, r := range b {
		if upper {
			b[i] = []rune(strings.ToUpper(string(r)))[0]
		}
		upper = r == ' ' || r == '_' || r == '-'
	}
	return string(b)
}

func validateConfidence(c float64) error {
	if c < 0 || c > 1 {
		return NewValidationError("confidence", "confidence must be between 0 and 1, got %v", c)
	}
	return nil
}
