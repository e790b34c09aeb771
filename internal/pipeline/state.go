package pipeline

import "fmt"

// State is a job's position in the pipeline.
type State string

const (
	StateQueued      State = "queued"
	StateConverting  State = "converting"
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateAggregating State = "aggregating"
	StateReporting   State = "reporting"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

var next = map[State]State{
	StateQueued:      StateConverting,
	StateConverting:  StateExtracting,
	StateExtracting:  StateNormalizing,
	StateNormalizing: StateAggregating,
	StateAggregating: StateReporting,
	StateReporting:   StateSucceeded,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

func transition(r *Result, to State) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("illegal state transition %s → %s", r.State, to)
	}
	r.State = to
	return nil
}
