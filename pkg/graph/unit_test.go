package graph

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "whitespace only",
			text: "  \n\t ",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{"Hello world.", "This is a test!", "How are you?"},
		},
		{
			name: "sentences separated by blank lines",
			text: "First sentence.\n\nSecond sentence.\n\nThird sentence.",
			want: []string{"First sentence.", "Second sentence.", "Third sentence."},
		},
		{
			name: "punctuation without whitespace does not split",
			text: "Version 1.2 of example.com shipped. Done",
			want: []string{"Version 1.2 of example.com shipped.", "Done"},
		},
		{
			name: "no terminal punctuation",
			text: "just some words",
			want: []string{"just some words"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("", 500, 50); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkTextSingleChunk(t *testing.T) {
	text := "Steve Jobs founded Apple in 1976 in Cupertino, California. It grew quickly."
	chunks := ChunkText(text, 500, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Text != text || c.StartPos != 0 || c.EndPos != len(text) || c.Length != len(text) {
		t.Fatalf("unexpected chunk %+v", c)
	}
}

func TestChunkTextOverlap(t *testing.T) {
	s1 := strings.Repeat("a", 30) + "."
	s2 := strings.Repeat("b", 30) + "."
	s3 := strings.Repeat("c", 30) + "."
	chunks := ChunkText(strings.Join([]string{s1, s2, s3}, " "), 64, 10)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != s1+" "+s2 {
		t.Fatalf("unexpected first chunk %q", chunks[0].Text)
	}
	wantSeed := chunks[0].Text[len(chunks[0].Text)-10:]
	if !strings.HasPrefix(chunks[1].Text, wantSeed+" ") || !strings.HasSuffix(chunks[1].Text, s3) {
		t.Fatalf("second chunk %q does not start with overlap %q", chunks[1].Text, wantSeed)
	}
	if chunks[1].StartPos != chunks[0].Length-10 {
		t.Fatalf("expected start %d, got %d", chunks[0].Length-10, chunks[1].StartPos)
	}
	if chunks[1].EndPos != chunks[1].StartPos+chunks[1].Length {
		t.Fatalf("inconsistent positions %+v", chunks[1])
	}
}

func TestChunkTextOversizedSentence(t *testing.T) {
	long := strings.Repeat("x", 200) + "."
	chunks := ChunkText("Short one. "+long+" Tail.", 50, 10)
	found := false
	for _, c := range chunks {
		if strings.Contains(c.Text, long) {
			found = true
		}
	}
	if !found {
		t.Fatalf("oversized sentence was split: %+v", chunks)
	}
	if last := chunks[len(chunks)-1]; !strings.HasSuffix(last.Text, "Tail.") {
		t.Fatalf("final chunk missing: %+v", last)
	}
}

func TestChunkTextBounds(t *testing.T) {
	var b strings.Builder
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	for i := range 120 {
		b.WriteString(strings.Repeat(words[i%len(words)]+" ", i%7+1))
		b.WriteString("end. ")
	}
	text := b.String()
	sentences := splitIntoSentences(text)

	containsOversized := func(chunk string, size int) bool {
		for _, s := range sentences {
			if utf8.RuneCountInString(s) > size && strings.Contains(chunk, s) {
				return true
			}
		}
		return false
	}

	for _, size := range []int{40, 100, 500} {
		overlap := size / 10
		chunks := ChunkText(text, size, overlap)
		if len(chunks) == 0 {
			t.Fatalf("size %d: expected chunks", size)
		}
		if !strings.HasSuffix(chunks[len(chunks)-1].Text, "end.") {
			t.Fatalf("size %d: final chunk missing", size)
		}
		for i, c := range chunks {
			if c.Length != utf8.RuneCountInString(c.Text) {
				t.Fatalf("size %d: chunk %d length mismatch", size, i)
			}
			if c.Length > size+overlap && !containsOversized(c.Text, size) {
				t.Fatalf("size %d: chunk %d has %d characters", size, i, c.Length)
			}
		}
	}
}

func TestChunkTextMultibytePositions(t *testing.T) {
	text := "Über uns. Straße ist lang. Äpfel sind grün."
	chunks := ChunkText(text, 20, 5)
	for _, c := range chunks {
		if c.Length != utf8.RuneCountInString(c.Text) {
			t.Fatalf("length counts bytes instead of characters: %+v", c)
		}
	}
}
