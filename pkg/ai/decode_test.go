package ai

import (
	"strings"
	"testing"
)

type candidate struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain", `[{"name":"Steve Jobs","type":"Person","confidence":0.95}]`},
		{"fenced", "```json\n[{\"name\":\"Steve Jobs\",\"type\":\"Person\",\"confidence\":0.95}]\n```"},
		{"bare keys and single quotes", `[{name: 'Steve Jobs', type: 'Person', confidence: 0.95}]`},
		{"trailing comma", `[{"name":"Steve Jobs","type":"Person","confidence":0.95,},]`},
		{"truncated", `[{"name":"Steve Jobs","type":"Person","confidence":0.95`},
		{"string encoded", `"[{\"name\": \"Steve Jobs\", \"type\": \"Person\", \"confidence\": 0.95}]"`},
		{"string encoded and malformed", `"[{name: 'Steve Jobs', type: 'Person', confidence: 0.95}]"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []candidate
			if err := DecodeResponse(tc.input, &got); err != nil {
				t.Fatalf("DecodeResponse() error = %v", err)
			}
			if len(got) != 1 || got[0].Name != "Steve Jobs" || got[0].Type != "Person" {
				t.Fatalf("unexpected candidates %+v", got)
			}
			if got[0].Confidence == nil || *got[0].Confidence != 0.95 {
				t.Fatalf("confidence not decoded: %+v", got[0])
			}
		})
	}
}

func TestDecodeResponseDoubledBrace(t *testing.T) {
	for _, input := range []string{"{\n{\n  \"name\": \"Apple\"\n}\n", `{ { "name": "Apple" }`} {
		var got candidate
		if err := DecodeResponse(input, &got); err != nil {
			t.Fatalf("DecodeResponse(%q) error = %v", input, err)
		}
		if got.Name != "Apple" {
			t.Fatalf("DecodeResponse(%q) = %+v", input, got)
		}
	}
}

func TestDecodeResponseFailures(t *testing.T) {
	var got []candidate
	if err := DecodeResponse("  ", &got); err == nil {
		t.Fatalf("expected error for empty output")
	}
	if err := DecodeResponse("I could not find any entities.", &got); err == nil {
		t.Fatalf("expected error for prose output")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `[{"name":"A"}]`, `[{"name":"A"}]`},
		{"json fence", "```json\n[{\"name\":\"A\"}]\n```", `[{"name":"A"}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"fence on one line", "```json[]```", `[]`},
		{"surrounding whitespace", "  \n```json\n{}\n```  ", `{}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripCodeFence(tc.input); got != tc.want {
				t.Fatalf("StripCodeFence() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSchemaString(t *testing.T) {
	s := SchemaString([]candidate{})
	for _, want := range []string{`"name"`, `"confidence"`, `"array"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("schema %s does not contain %s", s, want)
		}
	}
}
