package runner

import (
	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validation"
)

// State is the position of a session in the turn loop.
type State string

const (
	StateInit       State = "init"
	StateCalling    State = "calling"
	StateParsing    State = "parsing"
	StateValidating State = "validating"
	StateReasking   State = "reasking"
	StateDone       State = "done"
	StateTerminated State = "terminated"
)

// Turn is what Decide knows about a finished turn.
type Turn struct {
	// Index is the zero-based turn number, which is also the number of
	// reasks already spent.
	Index     int
	NumReasks int
	// Result is the validation result of the turn, nil when Err is set.
	Result *validation.Result
	// Err is a session-fatal error raised during the turn.
	Err error
	// CanCall reports whether a backend is available for another turn.
	CanCall bool
}

// Decision is the next state and, when the session ends, its final status.
type Decision struct {
	Next   State
	Status history.Status
}

// Decide returns the transition after a turn. It has no side effects.
func Decide(t Turn) Decision {
	switch {
	case t.Err != nil:
		if types.IsErrorCode(t.Err, types.ErrSessionCancelled) {
			return Decision{Next: StateTerminated, Status: history.StatusCancelled}
		}
		return Decision{Next: StateTerminated, Status: history.StatusFailed}
	case t.Result == nil:
		return Decision{Next: StateTerminated, Status: history.StatusFailed}
	case t.Result.Refrained:
		return Decision{Next: StateDone, Status: history.StatusRefrained}
	case len(t.Result.Failures) == 0:
		return Decision{Next: StateDone, Status: history.StatusPassed}
	case t.Index < t.NumReasks && t.CanCall:
		return Decision{Next: StateReasking, Status: history.StatusRunning}
	default:
		return Decision{Next: StateDone, Status: history.StatusPartial}
	}
}
