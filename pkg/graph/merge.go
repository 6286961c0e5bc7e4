package graph

import (
	"maps"
	"strings"

	"github.com/aletheia-codex/backend/pkg/common"
)

// entityCandidate is an extracted entity together with the chunk it was
// found in.
type entityCandidate struct {
	entity *common.Entity
	text   string
}

type relationshipCandidate struct {
	relationship *common.Relationship
	text         string
}

func entityKey(e *common.Entity) string {
	return e.Type + "\x00" + strings.ToLower(e.Name)
}

func relationshipKey(r *common.Relationship) string {
	return strings.ToLower(r.SourceEntity) + "\x00" + r.RelationshipType + "\x00" + strings.ToLower(r.TargetEntity)
}

// mergeEntities folds candidates found in several chunks into one per type and name.
// The most confident candidate wins and its properties take precedence.
func mergeEntities(existing []entityCandidate, found []entityCandidate) []entityCandidate {
	index := make(map[string]int, len(existing))
	for i, c := range existing {
		index[entityKey(c.entity)] = i
	}
	for _, c := range found {
		k := entityKey(c.entity)
		i, ok := index[k]
		if !ok {
			index[k] = len(existing)
			existing = append(existing, c)
			continue
		}
		existing[i] = mergeEntityCandidate(existing[i], c)
	}
	return existing
}

func mergeEntityCandidate(a, b entityCandidate) entityCandidate {
	winner, other := a, b
	if b.entity.Confidence > a.entity.Confidence {
		winner, other = b, a
	}
	props := maps.Clone(other.entity.Properties)
	if props == nil {
		props = map[string]any{}
	}
	maps.Copy(props, winner.entity.Properties)

	e := *winner.entity
	e.Properties = props
	return entityCandidate{entity: &e, text: winner.text}
}

func mergeRelationships(existing []relationshipCandidate, found []relationshipCandidate) []relationshipCandidate {
	index := make(map[string]int, len(existing))
	for i, c := range existing {
		index[relationshipKey(c.relationship)] = i
	}
	for _, c := range found {
		k := relationshipKey(c.relationship)
		i, ok := index[k]
		if !ok {
			index[k] = len(existing)
			existing = append(existing, c)
			continue
		}
		if c.relationship.Confidence > existing[i].relationship.Confidence {
			props := maps.Clone(existing[i].relationship.Properties)
			if props == nil {
				props = map[string]any{}
			}
			maps.Copy(props, c.relationship.Properties)
			r := *c.relationship
			r.Properties = props
			existing[i] = relationshipCandidate{relationship: &r, text: c.text}
		}
	}
	return existing
}
