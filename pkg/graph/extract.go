package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/ai"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/logger"
)

const (
	DefaultEntityMinConfidence       = 0.7
	DefaultRelationshipMinConfidence = 0.6
)

type extractEntity struct {
	Name       string         `json:"name" jsonschema_description:"Name of the entity as written in the text"`
	Type       string         `json:"type" jsonschema:"enum=Person,enum=Organization,enum=Place,enum=Concept,enum=Moment,enum=Thing"`
	Properties map[string]any `json:"properties,omitempty" jsonschema_description:"Additional facts about the entity stated in the text"`
	Confidence *float64       `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

type extractRelationship struct {
	SourceEntity     string         `json:"source_entity" jsonschema_description:"Name of the source entity, exactly as listed"`
	TargetEntity     string         `json:"target_entity" jsonschema_description:"Name of the target entity, exactly as listed"`
	RelationshipType string         `json:"relationship_type" jsonschema_description:"One of the listed relationship types"`
	Properties       map[string]any `json:"properties,omitempty"`
	Confidence       *float64       `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

var (
	entitySchema       = ai.SchemaString([]extractEntity{})
	relationshipSchema = ai.SchemaString([]extractRelationship{})
)

// Extractor turns text into validated entity and relationship candidates
// using a language model.
type Extractor struct {
	client  ai.GraphAIClient
	backoff util.Backoff
	pricing ai.Pricing
	model   string
}

type NewExtractorParams struct {
	Client  ai.GraphAIClient
	Backoff util.Backoff
	Pricing ai.Pricing
	// Model overrides the adapter's default extraction model.
	Model string
}

func NewExtractor(params NewExtractorParams) *Extractor {
	b := params.Backoff
	if b.Attempts <= 0 {
		b = util.DefaultBackoff
	}
	p := params.Pricing
	if p.InputPerMillion == 0 && p.OutputPerMillion == 0 {
		p = ai.DefaultPricing
	}
	return &Extractor{client: params.Client, backoff: b, pricing: p, model: params.Model}
}

// ExtractEntities asks the model for entities in text and keeps those with
// at least minConfidence. Malformed candidates are dropped individually.
func (x *Extractor) ExtractEntities(
	ctx context.Context,
	text string,
	userID string,
	documentID string,
	minConfidence float64,
) ([]*common.Entity, ai.CostEstimate, error) {
	prompt := fmt.Sprintf(ai.EntityExtractionPrompt, entitySchema, text)
	raw, cost, err := x.complete(ctx, prompt, ai.EstimatedEntityOutputTokens)
	if err != nil {
		return nil, cost, fmt.Errorf("entity extraction failed: %w", err)
	}

	entities := make([]*common.Entity, 0, len(raw))
	for _, r := range raw {
		var c extractEntity
		if err := json.Unmarshal(r, &c); err != nil {
			logger.Warn("[Extract] Dropping malformed entity candidate", "candidate", string(r), "err", err)
			continue
		}
		if c.Confidence == nil {
			logger.Warn("[Extract] Dropping entity candidate without confidence", "name", c.Name)
			continue
		}
		if *c.Confidence < minConfidence {
			logger.Debug("[Extract] Entity below confidence threshold", "name", c.Name, "confidence", *c.Confidence)
			continue
		}
		e, err := common.NewEntity(common.NewEntityParams{
			Type:             c.Type,
			Name:             c.Name,
			Properties:       c.Properties,
			Confidence:       *c.Confidence,
			SourceDocumentID: documentID,
			UserID:           userID,
		})
		if err != nil {
			logger.Warn("[Extract] Dropping invalid entity candidate", "name", c.Name, "err", err)
			continue
		}
		entities = append(entities, e)
	}

	logger.Debug("[Extract] Extracted entities", "document_id", documentID, "count", len(entities), "candidates", len(raw))
	return entities, cost, nil
}

// DetectRelationships asks the model for relationships between the given
// entities. Endpoints matching an extracted entity take its spelling, other
// endpoints are kept as given and resolved when the graph is written.
func (x *Extractor) DetectRelationships(
	ctx context.Context,
	text string,
	entities []*common.Entity,
	userID string,
	documentID string,
	minConfidence float64,
) ([]*common.Relationship, ai.CostEstimate, error) {
	if len(entities) < 2 {
		return nil, ai.CostEstimate{}, nil
	}

	known := make(map[string]string, len(entities))
	var list strings.Builder
	for _, e := range entities {
		known[strings.ToLower(e.Name)] = e.Name
		fmt.Fprintf(&list, "- %s (%s)\n", e.Name, e.Type)
	}

	prompt := fmt.Sprintf(ai.RelationshipDetectionPrompt, list.String(), relationshipSchema, text)
	raw, cost, err := x.complete(ctx, prompt, ai.EstimatedRelationshipOutputTokens)
	if err != nil {
		return nil, cost, fmt.Errorf("relationship detection failed: %w", err)
	}

	rels := make([]*common.Relationship, 0, len(raw))
	for _, r := range raw {
		var c extractRelationship
		if err := json.Unmarshal(r, &c); err != nil {
			logger.Warn("[Extract] Dropping malformed relationship candidate", "candidate", string(r), "err", err)
			continue
		}
		if c.Confidence == nil {
			logger.Warn("[Extract] Dropping relationship candidate without confidence", "source", c.SourceEntity, "target", c.TargetEntity)
			continue
		}
		if *c.Confidence < minConfidence {
			logger.Debug("[Extract] Relationship below confidence threshold", "source", c.SourceEntity, "target", c.TargetEntity, "confidence", *c.Confidence)
			continue
		}
		src := canonicalName(known, c.SourceEntity)
		tgt := canonicalName(known, c.TargetEntity)
		rel, err := common.NewRelationship(common.NewRelationshipParams{
			SourceEntity:     src,
			TargetEntity:     tgt,
			RelationshipType: c.RelationshipType,
			Properties:       c.Properties,
			Confidence:       *c.Confidence,
			SourceDocumentID: documentID,
			UserID:           userID,
		})
		if err != nil {
			logger.Warn("[Extract] Dropping invalid relationship candidate", "source", c.SourceEntity, "target", c.TargetEntity, "err", err)
			continue
		}
		rels = append(rels, rel)
	}

	logger.Debug("[Extract] Detected relationships", "document_id", documentID, "count", len(rels), "candidates", len(raw))
	return rels, cost, nil
}

func canonicalName(known map[string]string, name string) string {
	name = strings.TrimSpace(name)
	if n, ok := known[strings.ToLower(name)]; ok {
		return n
	}
	return name
}

func (x *Extractor) complete(ctx context.Context, prompt string, expectedOutput int) ([]json.RawMessage, ai.CostEstimate, error) {
	opts := []ai.GenerateOption{ai.WithSystemPrompts(ai.ExtractionSystemPrompt)}
	if x.model != "" {
		opts = append(opts, ai.WithModel(x.model))
	}

	out, err := util.RetryWithBackoff(ctx, x.backoff, ai.IsRetryable, func(ctx context.Context) (ai.Completion, error) {
		out, err := x.client.GenerateCompletion(ctx, prompt, opts...)
		if err != nil {
			metrics.AIErrors.WithLabelValues(x.client.Provider(), ai.Kind(err)).Inc()
			logger.Warn("[Extract] Provider call failed", "provider", x.client.Provider(), "kind", ai.Kind(err), "err", err)
		}
		return out, err
	})
	if err != nil {
		return nil, ai.CostEstimate{}, err
	}

	in, outTokens := out.InputTokens, out.OutputTokens
	if in == 0 {
		in = ai.CountTokens(ai.ExtractionSystemPrompt) + ai.CountTokens(prompt)
	}
	if outTokens == 0 {
		outTokens = expectedOutput
	}
	cost := x.pricing.Estimate(in, outTokens)

	items, err := parseCandidates(out.Text)
	if err != nil {
		return nil, cost, ai.NewProviderError(x.client.Provider(), ai.ErrResponse, 0, err)
	}
	return items, cost, nil
}

// parseCandidates accepts a JSON array, a single object, or an object that
// wraps the array under any key.
func parseCandidates(text string) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := ai.DecodeResponse(text, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]json.RawMessage
	if err := ai.DecodeResponse(text, &obj); err != nil {
		return nil, fmt.Errorf("response is neither a JSON array nor an object: %w", err)
	}
	for _, key := range []string{"entities", "relationships", "items", "results"} {
		if v, ok := obj[key]; ok {
			if err := json.Unmarshal(v, &arr); err == nil {
				return arr, nil
			}
		}
	}
	if len(obj) == 1 {
		for _, v := range obj {
			if err := json.Unmarshal(v, &arr); err == nil {
				return arr, nil
			}
		}
	}

	logger.Warn("[Extract] Response is not a list, wrapping single object")
	single, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return []json.RawMessage{single}, nil
}
