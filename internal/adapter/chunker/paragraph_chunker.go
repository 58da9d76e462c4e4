package chunker

import (
	"strings"
	"unicode/utf8"

	"ekb/internal/domain"
)

const paragraphSeparator = "\n\n"

// ParagraphChunker groups blank-line separated paragraphs into chunks whose
// length stays under a target number of characters. A paragraph that is
// longer than the target on its own is kept whole.
type ParagraphChunker struct {
	targetSize int
}

func NewParagraphChunker(targetSize int) *ParagraphChunker {
	if targetSize <= 0 {
		targetSize = domain.DefaultChunkSize
	}
	return &ParagraphChunker{targetSize: targetSize}
}

func (c *ParagraphChunker) TargetSize() int {
	return c.targetSize
}

func (c *ParagraphChunker) Chunk(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	paragraphs := splitNonEmpty(text, paragraphSeparator)
	if len(paragraphs) == 0 {
		paragraphs = splitNonEmpty(text, "\n")
	}

	// A single unbroken line has no boundary to group on.
	if len(paragraphs) <= 1 && !strings.Contains(trimmed, "\n") {
		if float64(utf8.RuneCountInString(trimmed)) > 1.5*float64(c.targetSize) {
			return SplitFixed(trimmed, c.targetSize, 0)
		}
		return []string{trimmed}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, para := range paragraphs {
		paraLen := utf8.RuneCountInString(para)

		if currentLen == 0 {
			current.WriteString(para)
			currentLen = paraLen
			continue
		}

		if currentLen+paraLen+len(paragraphSeparator) < c.targetSize {
			current.WriteString(paragraphSeparator)
			current.WriteString(para)
			currentLen += paraLen + len(paragraphSeparator)
			continue
		}

		chunks = append(chunks, current.String())
		current.Reset()
		current.WriteString(para)
		currentLen = paraLen
	}

	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// SplitFixed slices text into windows of size characters, stepping by
// size-overlap. Windows are trimmed and empty windows are dropped.
func SplitFixed(text string, size, overlap int) []string {
	if size <= 0 {
		size = domain.DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if window := strings.TrimSpace(string(runes[start:end])); window != "" {
			chunks = append(chunks, window)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func splitNonEmpty(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
