package graph

import (
	"testing"

	"github.com/aletheia-codex/backend/pkg/common"
)

func entityAt(typ, name string, confidence float64, props map[string]any) entityCandidate {
	return entityCandidate{
		entity: &common.Entity{Type: typ, Name: name, Confidence: confidence, Properties: props},
		text:   name,
	}
}

func TestMergeEntities(t *testing.T) {
	merged := mergeEntities(
		[]entityCandidate{entityAt(common.EntityOrganization, "Apple", 0.8, map[string]any{"founded": "1976"})},
		[]entityCandidate{
			entityAt(common.EntityOrganization, "apple", 0.95, map[string]any{"industry": "tech"}),
			entityAt(common.EntityThing, "Apple", 0.9, nil),
		},
	)
	if len(merged) != 2 {
		t.Fatalf("expected organization and thing kept apart, got %d candidates", len(merged))
	}

	org := merged[0].entity
	if org.Type != common.EntityOrganization || org.Confidence != 0.95 || org.Name != "apple" {
		t.Fatalf("most confident candidate should win, got %+v", org)
	}
	if org.Properties["founded"] != "1976" || org.Properties["industry"] != "tech" {
		t.Fatalf("properties should be combined, got %v", org.Properties)
	}
	if merged[1].entity.Type != common.EntityThing {
		t.Fatalf("unexpected second candidate %+v", merged[1].entity)
	}
}

func TestMergeRelationshipsKeepsMaxConfidence(t *testing.T) {
	rel := func(confidence float64) relationshipCandidate {
		return relationshipCandidate{relationship: &common.Relationship{
			SourceEntity: "Steve Jobs", TargetEntity: "Apple", RelationshipType: common.RelFounded, Confidence: confidence,
		}}
	}
	merged := mergeRelationships([]relationshipCandidate{rel(0.7)}, []relationshipCandidate{rel(0.9), rel(0.6)})
	if len(merged) != 1 || merged[0].relationship.Confidence != 0.9 {
		t.Fatalf("expected one relationship at 0.9, got %+v", merged)
	}
}
