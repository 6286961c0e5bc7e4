package graph

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aletheia-codex/backend/pkg/common"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// ChunkText splits text into sentence aligned chunks of roughly chunkSize
// characters. Each chunk after the first starts with the trailing overlap
// characters of its predecessor. A sentence longer than chunkSize is never
// split and becomes its own chunk.
func ChunkText(text string, chunkSize int, overlap int) []common.TextChunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []common.TextChunk
	var current strings.Builder
	currentLen := 0
	position := 0

	emit := func() string {
		chunk := current.String()
		n := utf8.RuneCountInString(chunk)
		chunks = append(chunks, common.TextChunk{
			Text:     chunk,
			StartPos: position,
			EndPos:   position + n,
			Length:   n,
		})
		return chunk
	}

	for _, sentence := range sentences {
		sentenceLen := utf8.RuneCountInString(sentence)

		if currentLen > 0 && currentLen+1+sentenceLen > chunkSize {
			closed := emit()
			seed := lastRunes(closed, min(overlap, chunkSize+overlap-sentenceLen-1))
			seedLen := utf8.RuneCountInString(seed)
			position += utf8.RuneCountInString(closed) - seedLen

			current.Reset()
			currentLen = 0
			if seedLen > 0 {
				current.WriteString(seed)
				current.WriteByte(' ')
				currentLen = seedLen + 1
			}
			current.WriteString(sentence)
			currentLen += sentenceLen
			continue
		}

		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += sentenceLen
	}

	if currentLen > 0 {
		emit()
	}

	return chunks
}

// splitIntoSentences cuts after '.', '!' or '?' when followed by
// whitespace. Empty sentences are dropped.
func splitIntoSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimLeftFunc(string(r[len(r)-n:]), unicode.IsSpace)
}
