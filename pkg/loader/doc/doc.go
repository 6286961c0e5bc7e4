// Package doc extracts text from Word (.docx) uploads.
package doc

import (
	"context"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/loader"
)

const docXMLMax = 50 << 20

// Loader reads the body of an uploaded .docx file.
type Loader struct{}

func NewLoader() Loader {
	return Loader{}
}

func (Loader) LoadText(ctx context.Context, src loader.Source) ([]byte, error) {
	if len(src.Body) == 0 {
		return nil, common.NewValidationError("file", "empty upload")
	}
	text, err := parseDocx(src.Body)
	if err != nil {
		return nil, common.NewValidationError("file", "%v", err)
	}
	return text, nil
}
