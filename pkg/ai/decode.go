package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

var errEmptyResponse = errors.New("empty response")

// SchemaString renders the JSON Schema of value, indented for embedding in a
// prompt. Definitions are inlined so the model sees a single document.
func SchemaString(value any) string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b, err := json.MarshalIndent(reflector.Reflect(reflect.New(t).Interface()), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// StripCodeFence removes a markdown code fence such as "```json ... ```"
// around a model response.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	body, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	if i := strings.IndexByte(body, '\n'); i >= 0 && !strings.ContainsAny(body[:i], "[{") {
		body = body[i+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// DecodeResponse unmarshals model output into out. It strips code fences,
// unwraps output that was encoded as a JSON string and finally repairs
// malformed JSON (single quotes, bare keys, trailing commas, missing closing
// brackets) before giving up.
func DecodeResponse(text string, out any) error {
	text = StripCodeFence(text)
	if text == "" {
		return errEmptyResponse
	}
	if json.Unmarshal([]byte(text), out) == nil {
		return nil
	}

	var inner string
	if json.Unmarshal([]byte(text), &inner) == nil {
		inner = StripCodeFence(inner)
		if json.Unmarshal([]byte(inner), out) == nil {
			return nil
		}
		text = inner
	}

	repaired, err := jsonrepair.JSONRepair(collapseLeadingBrace(text))
	if err != nil {
		return fmt.Errorf("failed to repair model output: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("failed to decode repaired model output: %w", err)
	}
	return nil
}

// collapseLeadingBrace drops a doubled opening brace, a common artifact of
// models that restart their answer.
func collapseLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "{"); ok {
		if rest = strings.TrimSpace(rest); strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}
