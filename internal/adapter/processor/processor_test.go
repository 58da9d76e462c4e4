package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekb/internal/domain"
	"ekb/internal/port"
)

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody"), 0644))

	state := &port.StepState{Input: domain.InputRef{Locator: path}}
	err := FileReader{}.Process(context.Background(), domain.Step{Name: "read"}, state)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", string(state.Raw))
}

func TestFileReaderErrors(t *testing.T) {
	state := &port.StepState{Input: domain.InputRef{Locator: filepath.Join(t.TempDir(), "missing.md")}}
	err := FileReader{}.Process(context.Background(), domain.Step{Name: "read"}, state)
	assert.ErrorIs(t, err, domain.ErrInputNotFound)

	// Reading a directory is an I/O failure, not a missing input.
	state = &port.StepState{Input: domain.InputRef{Locator: t.TempDir()}}
	err = FileReader{}.Process(context.Background(), domain.Step{Name: "read"}, state)
	assert.ErrorIs(t, err, domain.ErrExtractionFailure)
}

func TestTextExtractor(t *testing.T) {
	cases := []struct {
		name      string
		processor string
		input     domain.InputRef
		want      string
	}{
		{"markdown default", "markdown_text_extractor_processor", domain.InputRef{Locator: "/tmp/upload-123"}, domain.DocTypeMarkdown},
		{"content type wins", "markdown_text_extractor_processor", domain.InputRef{Locator: "/x.md", ContentType: "text/plain; charset=utf-8"}, domain.DocTypeText},
		{"extension", "text_extractor", domain.InputRef{Locator: "/tmp/abc", OriginalName: "README.markdown"}, domain.DocTypeMarkdown},
		{"unknown", "text_extractor", domain.InputRef{Locator: "/tmp/abc.bin"}, domain.DocTypeUnknown},
		{"plain default", "plain_text_extractor_processor", domain.InputRef{Locator: "/tmp/abc"}, domain.DocTypeText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := &port.StepState{Input: tc.input, Raw: []byte("hello")}
			err := TextExtractor{}.Process(context.Background(), domain.Step{Processor: tc.processor}, state)
			require.NoError(t, err)
			assert.True(t, state.Extracted)
			assert.Equal(t, "hello", state.Text)
			assert.Equal(t, tc.want, state.DocType)
		})
	}
}

func TestTextExtractorWithoutRaw(t *testing.T) {
	state := &port.StepState{}
	require.NoError(t, TextExtractor{}.Process(context.Background(), domain.Step{}, state))
	assert.False(t, state.Extracted)
	assert.Empty(t, state.Text)
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "ok\uFFFDtext", DecodeText([]byte("ok\xfftext")))
	assert.Equal(t, "bom", DecodeText([]byte("\xef\xbb\xbfbom")))
}

func TestRegistryLookup(t *testing.T) {
	r := Default()

	p, ok := r.Lookup(domain.StepFileReader)
	require.True(t, ok)
	assert.Equal(t, domain.StepFileReader, p.Kind())

	_, ok = r.Lookup(domain.StepUnknown)
	assert.False(t, ok)
}
