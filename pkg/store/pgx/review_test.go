package pgx

import (
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"
)

// valueRow replays encoded values into Scan destinations.
type valueRow struct {
	values []any
}

func (r valueRow) Scan(dest ...any) error {
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		v := reflect.ValueOf(r.values[i])
		if !v.IsValid() {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		switch {
		case v.Type().AssignableTo(dv.Type()):
			dv.Set(v)
		case v.Type().ConvertibleTo(dv.Type()):
			dv.Set(v.Convert(dv.Type()))
		default:
			dv.Set(reflect.Zero(dv.Type()))
		}
	}
	return nil
}

func TestPendingSQL(t *testing.T) {
	tests := []struct {
		name     string
		query    store.PendingQuery
		contains []string
		args     int
	}{
		{
			name:     "defaults",
			query:    store.PendingQuery{UserID: "u1"},
			contains: []string{"ORDER BY confidence ASC, id", "LIMIT $3"},
			args:     3,
		},
		{
			name:     "type filter and created order",
			query:    store.PendingQuery{UserID: "u1", ItemType: common.ReviewItemEntity, OrderBy: store.OrderByCreatedAt, Descending: true},
			contains: []string{"AND type = $3", "ORDER BY created_at DESC, id", "LIMIT $4"},
			args:     4,
		},
		{
			name:     "unknown order falls back",
			query:    store.PendingQuery{UserID: "u1", OrderBy: "name; DROP TABLE review_items"},
			contains: []string{"ORDER BY confidence ASC"},
			args:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := pendingSQL(tt.query)
			for _, c := range tt.contains {
				if !strings.Contains(sql, c) {
					t.Fatalf("expected %q in %s", c, sql)
				}
			}
			if strings.Contains(sql, "DROP") {
				t.Fatalf("order by leaked into sql: %s", sql)
			}
			if len(args) != tt.args {
				t.Fatalf("expected %d args, got %d", tt.args, len(args))
			}
		})
	}
}

func TestPendingSQLCapsLimit(t *testing.T) {
	_, args := pendingSQL(store.PendingQuery{UserID: "u1", Limit: 1000})
	if args[len(args)-1] != store.MaxPendingLimit {
		t.Fatalf("expected limit capped to %d, got %v", store.MaxPendingLimit, args[len(args)-1])
	}
}

func TestEncodeScanItemRoundTrip(t *testing.T) {
	rel, err := common.NewRelationship(common.NewRelationshipParams{
		SourceEntity:     "Steve Jobs",
		TargetEntity:     "Apple",
		RelationshipType: "founded",
		Confidence:       0.98,
		UserID:           "u1",
		SourceDocumentID: "d1",
	})
	if err != nil {
		t.Fatalf("failed to build relationship: %v", err)
	}
	item := common.NewRelationshipReviewItem("u1", rel, "Steve Jobs founded Apple.")
	item.Metadata["origin"] = "test"

	values, err := encodeItem(item)
	if err != nil {
		t.Fatalf("encodeItem failed: %v", err)
	}
	got, err := scanItem(valueRow{values: values})
	if err != nil {
		t.Fatalf("scanItem failed: %v", err)
	}

	if got.ID != item.ID || got.Type != common.ReviewItemRelationship || got.Status != common.ReviewPending {
		t.Fatalf("unexpected item %+v", got)
	}
	if got.Relationship == nil || got.Relationship.RelationshipType != common.RelFounded {
		t.Fatalf("relationship payload not restored: %+v", got.Relationship)
	}
	if got.Metadata["origin"] != "test" {
		t.Fatalf("metadata not restored: %v", got.Metadata)
	}
}

func TestAllowedFrom(t *testing.T) {
	got := allowedFrom(common.DocumentCompleted)
	if !slices.Equal(got, []string{"processing"}) {
		t.Fatalf("unexpected sources for completed: %v", got)
	}
	got = allowedFrom(common.DocumentProcessing)
	if !slices.Equal(got, []string{"pending", "processing", "failed"}) {
		t.Fatalf("unexpected sources for processing: %v", got)
	}
	if got := allowedFrom(common.DocumentPending); len(got) != 0 {
		t.Fatalf("nothing may move back to pending, got %v", got)
	}
}

func TestReviewDeltas(t *testing.T) {
	if a, r := reviewDeltas(common.ReviewApproved); a != 1 || r != 0 {
		t.Fatalf("unexpected approved deltas %d %d", a, r)
	}
	if a, r := reviewDeltas(common.ReviewRejected); a != 0 || r != 1 {
		t.Fatalf("unexpected rejected deltas %d %d", a, r)
	}
}
