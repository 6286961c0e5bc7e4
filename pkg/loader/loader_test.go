package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/aletheia-codex/backend/pkg/common"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"bom", "\xef\xbb\xbfhello", "hello"},
		{"control", "a\x00b\x07c", "abc"},
		{"invalid utf8", "ok\xff\xfe!", "ok!"},
		{"blank lines", "one\n\n\n\n\ntwo", "one\n\ntwo"},
		{"trailing space", "  one  \n\ttwo\t ", "one\n\ttwo"},
		{"tabs kept", "a\tb", "a\tb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText([]byte(tt.in)); got != tt.want {
				t.Fatalf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        SourceType
	}{
		{"notes.docx", "", SourceTypeDocx},
		{"NOTES.DOCX", "application/octet-stream", SourceTypeDocx},
		{"upload", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", SourceTypeDocx},
		{"notes.txt", "text/plain", SourceTypeText},
		{"notes.md", "", SourceTypeText},
	}
	for _, tt := range tests {
		if got := DetectType(tt.filename, tt.contentType); got != tt.want {
			t.Errorf("DetectType(%q, %q) = %q, want %q", tt.filename, tt.contentType, got, tt.want)
		}
	}
}

func TestRegistryLoad(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register(SourceTypeWeb, TextLoaderFunc(func(ctx context.Context, src Source) ([]byte, error) {
		calls++
		if src.URL == "https://fail.example" {
			return nil, errors.New("boom")
		}
		return []byte("Fetched\r\ntext"), nil
	}))

	text, err := r.Load(context.Background(), Source{Type: SourceTypeText, Body: []byte("  plain  ")})
	if err != nil || text != "plain" {
		t.Fatalf("plain text load: %q %v", text, err)
	}

	text, err = r.Load(context.Background(), Source{Type: SourceTypeWeb, URL: "https://ok.example"})
	if err != nil || text != "Fetched\ntext" || calls != 1 {
		t.Fatalf("web load: %q %v calls=%d", text, err, calls)
	}

	if _, err := r.Load(context.Background(), Source{Type: SourceTypeWeb, URL: "https://fail.example"}); err == nil {
		t.Fatalf("expected loader error")
	}
	if _, err := r.Load(context.Background(), Source{Type: SourceTypeDocx}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for unregistered type, got %v", err)
	}
	if _, err := r.Load(context.Background(), Source{Type: SourceTypeText, Body: []byte(" \n\t ")}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}
}
