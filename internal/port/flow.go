package port

import (
	"context"

	"ekb/internal/domain"
)

// FlowLoader resolves a flow name to its ordered step directives.
type FlowLoader interface {
	LoadSteps(name string) ([]domain.Step, error)
}

// StepState carries data between the steps of one ingestion run.
type StepState struct {
	Input     domain.InputRef
	Raw       []byte
	Text      string
	DocType   string
	Extracted bool
}

// Processor executes one kind of flow step.
type Processor interface {
	Kind() domain.StepKind
	Process(ctx context.Context, step domain.Step, state *StepState) error
}
