package chunker

import (
	"strings"
	"testing"

	"ekb/internal/domain"
)

func TestParagraphChunkerEmpty(t *testing.T) {
	chunker := NewParagraphChunker(0)

	for _, input := range []string{"", "   ", "\n\n\t\n"} {
		if chunks := chunker.Chunk(input); len(chunks) != 0 {
			t.Errorf("expected no chunks for %q, got %d", input, len(chunks))
		}
	}
}

func TestParagraphChunkerDefaultTarget(t *testing.T) {
	chunker := NewParagraphChunker(-5)
	if chunker.TargetSize() != domain.DefaultChunkSize {
		t.Errorf("expected default target %d, got %d", domain.DefaultChunkSize, chunker.TargetSize())
	}
}

func TestParagraphChunkerShortText(t *testing.T) {
	chunker := NewParagraphChunker(100)

	inputs := []string{
		"Just a single line of text",
		"  padded line  \n",
		"line one\nline two",
		"Para one.\n\nPara two.",
	}
	for _, input := range inputs {
		chunks := chunker.Chunk(input)
		if len(chunks) != 1 {
			t.Fatalf("expected 1 chunk for %q, got %d", input, len(chunks))
		}
		if chunks[0] != strings.TrimSpace(input) {
			t.Errorf("expected chunk %q, got %q", strings.TrimSpace(input), chunks[0])
		}
	}
}

func TestParagraphChunkerThreeParagraphsOneChunk(t *testing.T) {
	chunker := NewParagraphChunker(1000)

	chunks := chunker.Chunk("Para one.\n\nPara two.\n\nPara three.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "Para one.\n\nPara two.\n\nPara three." {
		t.Errorf("unexpected chunk text %q", chunks[0])
	}
}

func TestParagraphChunkerGroupsUnderTarget(t *testing.T) {
	chunker := NewParagraphChunker(25)

	// "aaaaaaaaaa" + "\n\n" + "bbbbbbbbbb" = 22 < 25, adding the third would exceed.
	content := "aaaaaaaaaa\n\nbbbbbbbbbb\n\ncccccccccc"
	chunks := chunker.Chunk(content)

	want := []string{"aaaaaaaaaa\n\nbbbbbbbbbb", "cccccccccc"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestParagraphChunkerBoundaryIsStrict(t *testing.T) {
	// 10 + 2 + 10 == 22 is not strictly under 22.
	chunker := NewParagraphChunker(22)

	chunks := chunker.Chunk("aaaaaaaaaa\n\nbbbbbbbbbb")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks at exact boundary, got %d", len(chunks))
	}
}

func TestParagraphChunkerRejoinsToOriginal(t *testing.T) {
	chunker := NewParagraphChunker(60)

	paragraphs := []string{
		"The first paragraph talks about storage.",
		"A second one about vectors.",
		"Third: search ranking by distance.",
		"Fourth paragraph is short.",
		"Fifth and final paragraph of the text.",
	}
	content := "  " + strings.Join(paragraphs, "\n\n\n") + "\n"

	chunks := chunker.Chunk(content)
	if len(chunks) == 0 || len(chunks) > len(paragraphs) {
		t.Fatalf("expected between 1 and %d chunks, got %d", len(paragraphs), len(chunks))
	}

	if got, want := strings.Join(chunks, "\n\n"), strings.Join(paragraphs, "\n\n"); got != want {
		t.Errorf("rejoined chunks differ from paragraph-trimmed text:\n got: %q\nwant: %q", got, want)
	}
}

func TestParagraphChunkerOversizedParagraphKeptWhole(t *testing.T) {
	chunker := NewParagraphChunker(20)

	long := strings.Repeat("word ", 20)
	content := "short\n\n" + long + "\n\ntail"

	chunks := chunker.Chunk(content)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[1] != strings.TrimSpace(long) {
		t.Errorf("oversized paragraph should be a single chunk, got %q", chunks[1])
	}
}

func TestParagraphChunkerLongUnbrokenLine(t *testing.T) {
	chunker := NewParagraphChunker(10)

	content := strings.Repeat("x", 35)
	chunks := chunker.Chunk(content)

	if len(chunks) != 4 {
		t.Fatalf("expected 4 fixed-width chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks[:3] {
		if len(chunk) != 10 {
			t.Errorf("chunk %d: expected length 10, got %d", i, len(chunk))
		}
	}
	if strings.Join(chunks, "") != content {
		t.Error("fixed-width chunks should cover the whole line without overlap")
	}
}

func TestParagraphChunkerLineUnderFallbackThreshold(t *testing.T) {
	chunker := NewParagraphChunker(10)

	// 14 characters is over the target but under 1.5x, so it stays whole.
	content := strings.Repeat("y", 14)
	chunks := chunker.Chunk(content)
	if len(chunks) != 1 || chunks[0] != content {
		t.Errorf("expected single chunk %q, got %q", content, chunks)
	}
}

func TestParagraphChunkerCRLF(t *testing.T) {
	chunker := NewParagraphChunker(1000)

	chunks := chunker.Chunk("one\r\n\r\ntwo")
	if len(chunks) != 1 || chunks[0] != "one\n\ntwo" {
		t.Errorf("expected CRLF paragraphs to normalize, got %q", chunks)
	}
}

func TestParagraphChunkerDeterministic(t *testing.T) {
	chunker := NewParagraphChunker(30)
	content := "alpha beta\n\ngamma delta\n\nepsilon zeta eta\n\ntheta"

	first := chunker.Chunk(content)
	second := chunker.Chunk(content)
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Error("chunking should be deterministic")
	}
}

func TestSplitFixedOverlap(t *testing.T) {
	chunks := SplitFixed("abcdefghij", 4, 2)

	want := []string{"abcd", "cdef", "efgh", "ghij"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSplitFixedMultibyte(t *testing.T) {
	chunks := SplitFixed("ééééé", 2, 0)
	if len(chunks) != 3 || chunks[0] != "éé" || chunks[2] != "é" {
		t.Errorf("expected rune-based slicing, got %q", chunks)
	}
}
