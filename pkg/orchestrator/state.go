package orchestrator

import "fmt"

// Stage is the orchestrator's run state. A run moves
// Start -> Acquiring -> Detecting -> Dispatching -> Done, and any stage may
// transition directly to Failed (terminal).
type Stage string

const (
	StageStart       Stage = "start"
	StageAcquiring   Stage = "acquiring"
	StageDetecting   Stage = "detecting"
	StageDispatching Stage = "dispatching"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// IsTerminal reports whether the stage is terminal.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// transition validates and performs a stage change.
func transition(from, to Stage) (Stage, error) {
	if !isAllowedTransition(from, to) {
		return from, fmt.Errorf("disallowed stage transition: %s -> %s", from, to)
	}
	return to, nil
}

func isAllowedTransition(from, to Stage) bool {
	if to == StageFailed {
		return !from.IsTerminal()
	}
	switch from {
	case StageStart:
		return to == StageAcquiring
	case StageAcquiring:
		return to == StageDetecting
	case StageDetecting:
		return to == StageDispatching
	case StageDispatching:
		return to == StageDone
	default:
		return false
	}
}
