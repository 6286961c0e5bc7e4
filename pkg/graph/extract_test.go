package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/ai"
	"github.com/aletheia-codex/backend/pkg/common"
)

// fakeAI answers entity prompts and relationship prompts with canned
// responses. Errors are returned once each, in order, before any response.
type fakeAI struct {
	ai.MetricsRecorder

	mu            sync.Mutex
	entities      string
	relationships string
	errs          []error
	calls         int
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (ai.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return ai.Completion{}, err
	}
	if strings.Contains(prompt, "You detect relationships") {
		return ai.Completion{Text: f.relationships, InputTokens: 100, OutputTokens: 20}, nil
	}
	return ai.Completion{Text: f.entities, InputTokens: 100, OutputTokens: 40}, nil
}

func (f *fakeAI) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error { return nil }

func (f *fakeAI) Provider() string { return "fake" }

func newTestExtractor(client ai.GraphAIClient) *Extractor {
	return NewExtractor(NewExtractorParams{
		Client:  client,
		Backoff: util.Backoff{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond},
	})
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "plain array",
			response: `[{"name":"Alice","type":"Person","confidence":0.9},{"name":"Acme","type":"company","confidence":0.8}]`,
			want:     []string{"Alice", "Acme"},
		},
		{
			name:     "code fence",
			response: "```json\n[{\"name\":\"Alice\",\"type\":\"Person\",\"confidence\":0.9}]\n```",
			want:     []string{"Alice"},
		},
		{
			name:     "wrapped in object",
			response: `{"entities":[{"name":"Alice","type":"Person","confidence":0.9}]}`,
			want:     []string{"Alice"},
		},
		{
			name:     "single object",
			response: `{"name":"Alice","type":"Person","confidence":0.9}`,
			want:     []string{"Alice"},
		},
		{
			name:     "below threshold and malformed",
			response: `[{"name":"Alice","type":"Person","confidence":0.9},{"name":"Bob","type":"Person","confidence":0.5},{"name":"Eve","type":"Person"},{"name":"","type":"Person","confidence":0.9},{"name":"Mallory","confidence":1.4}]`,
			want:     []string{"Alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newTestExtractor(&fakeAI{entities: tt.response})
			got, cost, err := x.ExtractEntities(context.Background(), "text", "u1", "d1", DefaultEntityMinConfidence)
			if err != nil {
				t.Fatalf("ExtractEntities failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d entities, got %d", len(tt.want), len(got))
			}
			for i, name := range tt.want {
				if got[i].Name != name || got[i].UserID != "u1" || got[i].SourceDocumentID != "d1" {
					t.Fatalf("unexpected entity %d: %+v", i, got[i])
				}
			}
			if cost.InputTokens != 100 || cost.OutputTokens != 40 {
				t.Fatalf("unexpected cost %+v", cost)
			}
		})
	}
}

func TestExtractEntitiesNormalizesType(t *testing.T) {
	x := newTestExtractor(&fakeAI{entities: `[{"name":" Acme ","type":"company","confidence":0.8}]`})
	got, _, err := x.ExtractEntities(context.Background(), "text", "u1", "d1", 0.7)
	if err != nil {
		t.Fatalf("ExtractEntities failed: %v", err)
	}
	if got[0].Type != common.EntityOrganization || got[0].Name != "Acme" {
		t.Fatalf("unexpected entity %+v", got[0])
	}
}

func TestExtractEntitiesInvalidResponse(t *testing.T) {
	x := newTestExtractor(&fakeAI{entities: "I could not find any entities."})
	_, _, err := x.ExtractEntities(context.Background(), "text", "u1", "d1", 0.7)
	if !errors.Is(err, ai.ErrResponse) {
		t.Fatalf("expected response error, got %v", err)
	}
}

func TestExtractEntitiesRetriesTransientErrors(t *testing.T) {
	client := &fakeAI{
		entities: `[{"name":"Alice","type":"Person","confidence":0.9}]`,
		errs: []error{
			ai.NewProviderError("fake", ai.ErrRateLimit, 429, errors.New("slow down")),
			ai.NewProviderError("fake", ai.ErrTransient, 503, errors.New("unavailable")),
		},
	}
	got, _, err := newTestExtractor(client).ExtractEntities(context.Background(), "text", "u1", "d1", 0.7)
	if err != nil {
		t.Fatalf("ExtractEntities failed: %v", err)
	}
	if len(got) != 1 || client.calls != 3 {
		t.Fatalf("expected success on third call, got %d entities after %d calls", len(got), client.calls)
	}
}

func TestExtractEntitiesAuthNotRetried(t *testing.T) {
	client := &fakeAI{errs: []error{ai.NewProviderError("fake", ai.ErrAuth, 401, errors.New("bad key"))}}
	_, _, err := newTestExtractor(client).ExtractEntities(context.Background(), "text", "u1", "d1", 0.7)
	if !errors.Is(err, ai.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("auth errors must not be retried, got %d calls", client.calls)
	}
}

func TestDetectRelationships(t *testing.T) {
	entities := []*common.Entity{
		{Type: common.EntityPerson, Name: "Steve Jobs", Confidence: 0.95},
		{Type: common.EntityOrganization, Name: "Apple", Confidence: 0.98},
	}
	client := &fakeAI{relationships: `[
		{"source_entity":"steve jobs","target_entity":"APPLE","relationship_type":"founded","confidence":0.9},
		{"source_entity":"Steve Jobs","target_entity":"Pixar","relationship_type":"FOUNDED","confidence":0.9},
		{"source_entity":"Apple","target_entity":"Steve Jobs","relationship_type":"employs","confidence":0.3}
	]`}

	rels, _, err := newTestExtractor(client).DetectRelationships(context.Background(), "text", entities, "u1", "d1", DefaultRelationshipMinConfidence)
	if err != nil {
		t.Fatalf("DetectRelationships failed: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("expected two relationships, got %d", len(rels))
	}
	r := rels[0]
	if r.SourceEntity != "Steve Jobs" || r.TargetEntity != "Apple" || r.RelationshipType != common.RelFounded {
		t.Fatalf("endpoints should be resolved to extracted names, got %+v", r)
	}
}

func TestDetectRelationshipsKeepsUnknownEndpoints(t *testing.T) {
	entities := []*common.Entity{
		{Type: common.EntityPerson, Name: "Steve Jobs", Confidence: 0.95},
		{Type: common.EntityOrganization, Name: "Apple", Confidence: 0.98},
	}
	client := &fakeAI{relationships: `[{"source_entity":"steve jobs","target_entity":" Pixar ","relationship_type":"FOUNDED","confidence":0.9}]`}

	rels, _, err := newTestExtractor(client).DetectRelationships(context.Background(), "text", entities, "u1", "d1", DefaultRelationshipMinConfidence)
	if err != nil {
		t.Fatalf("DetectRelationships failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected one relationship, got %d", len(rels))
	}
	if rels[0].SourceEntity != "Steve Jobs" || rels[0].TargetEntity != "Pixar" {
		t.Fatalf("unexpected endpoints %q -> %q", rels[0].SourceEntity, rels[0].TargetEntity)
	}
}

func TestDetectRelationshipsNeedsTwoEntities(t *testing.T) {
	client := &fakeAI{}
	rels, _, err := newTestExtractor(client).DetectRelationships(context.Background(), "text",
		[]*common.Entity{{Type: common.EntityPerson, Name: "Alice", Confidence: 0.9}}, "u1", "d1", 0.6)
	if err != nil || rels != nil {
		t.Fatalf("expected no relationships, got %v %v", rels, err)
	}
	if client.calls != 0 {
		t.Fatalf("provider should not be called for a single entity")
	}
}
