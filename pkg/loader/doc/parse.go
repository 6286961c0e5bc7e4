package doc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

// docxText accumulates the visible text of a WordprocessingML body.
// Deleted revisions are skipped and table cells are tab separated.
type docxText struct {
	sb       strings.Builder
	inText   bool
	delDepth int
	cellIdx  int
}

func (d *docxText) visible() bool {
	return d.delDepth == 0
}

func (d *docxText) newline() {
	if !d.visible() || d.sb.Len() == 0 {
		return
	}
	if !strings.HasSuffix(d.sb.String(), "\n") {
		d.sb.WriteByte('\n')
	}
}

func (d *docxText) start(name string) {
	switch name {
	case "del":
		d.delDepth++
	case "t":
		d.inText = true
	case "tab":
		if d.visible() {
			d.sb.WriteByte('\t')
		}
	case "br", "cr":
		if d.visible() {
			d.sb.WriteByte('\n')
		}
	case "noBreakHyphen":
		if d.visible() {
			d.sb.WriteByte('-')
		}
	case "tbl":
		d.newline()
	case "tr":
		d.cellIdx = 0
	case "tc":
		if d.visible() && d.cellIdx > 0 {
			d.sb.WriteByte('\t')
		}
		d.cellIdx++
	}
}

func (d *docxText) end(name string) {
	switch name {
	case "t":
		d.inText = false
	case "p", "tr":
		if d.visible() {
			d.sb.WriteByte('\n')
		}
	case "tbl":
		d.newline()
	case "del":
		if d.delDepth > 0 {
			d.delDepth--
		}
	}
}

func (d *docxText) chars(data []byte) {
	if d.inText && d.visible() {
		d.sb.Write(data)
	}
}

func parseDocx(content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, errors.New("document.xml not found in docx")
	}
	if part.UncompressedSize64 > docXMLMax {
		return nil, fmt.Errorf("document.xml too large: %d bytes", part.UncompressedSize64)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, docXMLMax))
	var d docxText
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			d.start(t.Name.Local)
		case xml.EndElement:
			d.end(t.Name.Local)
		case xml.CharData:
			d.chars(t)
		}
	}

	// Blank line collapsing happens in loader.NormalizeText.
	return []byte(strings.TrimSpace(d.sb.String())), nil
}
