package processor

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ekb/internal/domain"
	"ekb/internal/port"
)

// Registry maps step kinds to their processors.
type Registry map[domain.StepKind]port.Processor

// Default returns the registry of built-in processors.
func Default() Registry {
	return Registry{
		domain.StepFileReader:    FileReader{},
		domain.StepTextExtractor: TextExtractor{},
	}
}

// Lookup returns the processor for kind, or false for unknown kinds.
func (r Registry) Lookup(kind domain.StepKind) (port.Processor, bool) {
	p, ok := r[kind]
	return p, ok
}

// FileReader loads the raw bytes behind the input locator.
type FileReader struct{}

func (FileReader) Kind() domain.StepKind { return domain.StepFileReader }

func (FileReader) Process(ctx context.Context, step domain.Step, state *port.StepState) error {
	data, err := os.ReadFile(state.Input.Locator)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrInputNotFound, state.Input.Locator)
		}
		return fmt.Errorf("%w: step %s: %v", domain.ErrExtractionFailure, step.Name, err)
	}
	state.Raw = data
	return nil
}

// TextExtractor decodes raw content as UTF-8 text and tags its document type.
type TextExtractor struct{}

func (TextExtractor) Kind() domain.StepKind { return domain.StepTextExtractor }

// Process leaves state untouched when no raw content has been read.
func (TextExtractor) Process(ctx context.Context, step domain.Step, state *port.StepState) error {
	if state.Raw == nil {
		return nil
	}
	state.Text = DecodeText(state.Raw)
	state.DocType = DetectDocType(state.Input, defaultDocType(step.Processor))
	state.Extracted = true
	return nil
}

// DecodeText returns data as valid UTF-8, replacing invalid sequences and
// dropping a leading byte order mark.
func DecodeText(data []byte) string {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return strings.TrimPrefix(text, "\uFEFF")
}

func defaultDocType(processor string) string {
	switch strings.ToLower(processor) {
	case "markdown_text_extractor_processor":
		return domain.DocTypeMarkdown
	case "plain_text_extractor_processor":
		return domain.DocTypeText
	default:
		return domain.DocTypeUnknown
	}
}

// DetectDocType derives the document type from the declared content type,
// then the file extension, then fallback.
func DetectDocType(in domain.InputRef, fallback string) string {
	if ct := in.ContentType; ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			switch mediaType {
			case "text/markdown", "text/x-markdown":
				return domain.DocTypeMarkdown
			case "text/plain":
				return domain.DocTypeText
			}
		}
	}

	name := in.OriginalName
	if name == "" {
		name = in.Locator
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return domain.DocTypeMarkdown
	case ".txt", ".text":
		return domain.DocTypeText
	}
	return fallback
}
