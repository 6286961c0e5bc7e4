// Package loader turns document sources into the plain text fed to the
// extraction pipeline.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aletheia-codex/backend/pkg/common"
)

type SourceType string

const (
	SourceTypeText SourceType = "text"
	SourceTypeWeb  SourceType = "web"
	SourceTypeDocx SourceType = "docx"
)

// MaxTextBytes bounds the text a single document may carry.
const MaxTextBytes = 5 << 20

// Source is a document as submitted by a user. Text sources carry Body,
// web sources carry URL and file uploads carry Body and Name.
type Source struct {
	Type SourceType
	Name string
	URL  string
	Body []byte
}

// TextLoader extracts text from one kind of source.
type TextLoader interface {
	LoadText(ctx context.Context, src Source) ([]byte, error)
}

// TextLoaderFunc adapts a function to TextLoader.
type TextLoaderFunc func(ctx context.Context, src Source) ([]byte, error)

func (f TextLoaderFunc) LoadText(ctx context.Context, src Source) ([]byte, error) {
	return f(ctx, src)
}

// Registry dispatches sources to the loader registered for their type.
// Plain text is handled without a registered loader.
type Registry struct {
	loaders map[SourceType]TextLoader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[SourceType]TextLoader)}
}

func (r *Registry) Register(t SourceType, l TextLoader) {
	r.loaders[t] = l
}

// Load returns the normalized text of src. Sources that yield no text fail
// with a validation error.
func (r *Registry) Load(ctx context.Context, src Source) (string, error) {
	var raw []byte
	switch src.Type {
	case SourceTypeText, "":
		raw = src.Body
	default:
		l, ok := r.loaders[src.Type]
		if !ok {
			return "", common.NewValidationError("source", "unsupported source type %q", src.Type)
		}
		var err error
		raw, err = l.LoadText(ctx, src)
		if err != nil {
			return "", fmt.Errorf("failed to load %s source: %w", src.Type, err)
		}
	}

	if len(raw) > MaxTextBytes {
		return "", common.NewValidationError("text", "document exceeds %d bytes", MaxTextBytes)
	}
	text := NormalizeText(raw)
	if text == "" {
		return "", common.NewValidationError("text", "document has no text")
	}
	return text, nil
}

// DetectType picks the source type of an uploaded file from its name and
// content type.
func DetectType(filename, contentType string) SourceType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return SourceTypeDocx
	case ".html", ".htm":
		return SourceTypeText
	}
	if strings.Contains(contentType, "wordprocessingml") {
		return SourceTypeDocx
	}
	return SourceTypeText
}

var reBlankLines = regexp.MustCompile(`\n{3,}`)

// NormalizeText makes raw bytes safe for storage and chunking: invalid UTF-8
// and control characters are dropped, line endings become \n and runs of
// blank lines collapse to one.
func NormalizeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	s := string(raw)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
