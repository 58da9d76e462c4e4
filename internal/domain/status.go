package domain

import "fmt"

// ProcessingStatus is the ingestion lifecycle state of a Document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

var statusRank = map[ProcessingStatus]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusCompleted:  2,
}

// Valid reports whether s is one of the known states.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a document may move from s to next.
// Statuses only move forward; failed is reachable from any non-terminal state.
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// CheckTransition returns ErrInvalidStatusTransition when from→to is not allowed.
func CheckTransition(from, to ProcessingStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}
