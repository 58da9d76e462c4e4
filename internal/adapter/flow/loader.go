package flow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"ekb/internal/domain"
	"ekb/internal/port"
)

// MarkdownParserFlow is the built-in flow used when no definition file overrides it.
const MarkdownParserFlow = "markdown_parser_flow"

var builtin = map[string]domain.Flow{
	MarkdownParserFlow: {
		Name:        MarkdownParserFlow,
		Description: "Read a markdown file and extract its text",
		Steps: []domain.Step{
			{Name: "read_file", Processor: "file_reader_processor"},
			{Name: "extract_markdown", Processor: "markdown_text_extractor_processor"},
		},
	},
}

var extensions = []string{".yaml", ".yml", ".json"}

// Loader resolves flow names against definition files in a directory, then
// against the built-in flows. A file named like a built-in flow replaces it.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load returns the flow definition named name.
func (l *Loader) Load(name string) (domain.Flow, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return domain.Flow{}, fmt.Errorf("%w: %q", domain.ErrFlowNotFound, name)
	}

	if l.dir != "" {
		for _, ext := range extensions {
			path := filepath.Join(l.dir, name+ext)
			f, err := readFlowFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return domain.Flow{}, err
			}
			if f.Name == "" {
				f.Name = name
			}
			f.Resolve()
			return f, nil
		}
	}

	if f, ok := builtin[name]; ok {
		f.Steps = append([]domain.Step(nil), f.Steps...)
		f.Resolve()
		return f, nil
	}
	return domain.Flow{}, fmt.Errorf("%w: %q", domain.ErrFlowNotFound, name)
}

// LoadSteps implements port.FlowLoader.
func (l *Loader) LoadSteps(name string) ([]domain.Step, error) {
	f, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	return f.Steps, nil
}

// List returns the names of every resolvable flow, sorted.
func (l *Loader) List() ([]string, error) {
	seen := make(map[string]struct{}, len(builtin))
	for name := range builtin {
		seen[name] = struct{}{}
	}

	if l.dir != "" {
		matches, err := doublestar.Glob(os.DirFS(l.dir), "*.{yaml,yml,json}")
		if err != nil {
			return nil, fmt.Errorf("failed to list flows in %s: %w", l.dir, err)
		}
		for _, m := range matches {
			seen[strings.TrimSuffix(m, filepath.Ext(m))] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// readFlowFile parses YAML or JSON; JSON is a subset of YAML so one decoder serves both.
func readFlowFile(path string) (domain.Flow, error) {
	var f domain.Flow
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse flow definition %s: %w", path, err)
	}
	return f, nil
}

var _ port.FlowLoader = (*Loader)(nil)
