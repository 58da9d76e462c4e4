package domain

import "strings"

// StepKind is the closed set of processors an ingestion flow can dispatch to.
type StepKind int

const (
	StepUnknown StepKind = iota
	StepFileReader
	StepTextExtractor
)

func (k StepKind) String() string {
	switch k {
	case StepFileReader:
		return "file_reader"
	case StepTextExtractor:
		return "text_extractor"
	default:
		return "unknown"
	}
}

// Step is one directive of a flow definition.
type Step struct {
	Name      string   `yaml:"name" json:"name"`
	Processor string   `yaml:"processor" json:"processor"`
	Kind      StepKind `yaml:"-" json:"-"`
}

// Flow is a named, ordered list of steps.
type Flow struct {
	Name        string `yaml:"flow_name" json:"flow_name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// ParseStepKind maps a processor name onto a known step kind.
func ParseStepKind(processor string) StepKind {
	switch strings.ToLower(strings.TrimSpace(processor)) {
	case "file_reader", "file_reader_processor":
		return StepFileReader
	case "text_extractor", "markdown_text_extractor_processor", "plain_text_extractor_processor":
		return StepTextExtractor
	default:
		return StepUnknown
	}
}

// Resolve fills in Kind for every step from its processor name.
func (f *Flow) Resolve() {
	for i := range f.Steps {
		f.Steps[i].Kind = ParseStepKind(f.Steps[i].Processor)
	}
}
