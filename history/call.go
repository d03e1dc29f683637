package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validation"
)

// Status is the lifecycle state of a Call.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPassed    Status = "passed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusRefrained Status = "refrained"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s ends a call.
func (s Status) Terminal() bool {
	return s != StatusRunning && s != ""
}

// Iteration records one turn.
type Iteration struct {
	Index int `json:"index"`
	// Request is nil when the turn used a caller-supplied output.
	Request       *llm.Request `json:"request,omitempty"`
	BackendCalled bool         `json:"backend_called"`
	RawOutput     string       `json:"raw_output"`
	// ParsedOutput is the exported value tree before validation.
	ParsedOutput any    `json:"parsed_output,omitempty"`
	ParseError   string `json:"parse_error,omitempty"`
	// ValidatedOutput is the exported value tree after fixes and filters.
	ValidatedOutput any                  `json:"validated_output,omitempty"`
	Failures        []validation.Failure `json:"failures,omitempty"`
	Warnings        []validation.Failure `json:"warnings,omitempty"`
	// ReaskRequest is the corrective request this turn produced, if any.
	ReaskRequest *llm.Request  `json:"reask_request,omitempty"`
	ReaskPaths   []string      `json:"reask_paths,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Duration     time.Duration `json:"duration"`
}

// Passed reports whether the turn validated without failures.
func (it *Iteration) Passed() bool {
	return it.ParseError == "" && len(it.Failures) == 0
}

// Call is the append-only history of one session. It is owned by the session
// that created it; stores receive copies.
type Call struct {
	ID         string          `json:"id"`
	Iterations []*Iteration    `json:"iterations"`
	Output     any             `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  types.ErrorCode `json:"error_code,omitempty"`
	NumReasks  int             `json:"num_reasks"`
	ReasksUsed int             `json:"reasks_used"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// NewCall starts a running call with a fresh ID.
func NewCall(numReasks int) *Call {
	return &Call{
		ID:        uuid.New().String(),
		NumReasks: numReasks,
		Status:    StatusRunning,
		CreatedAt: time.Now(),
	}
}

// Closed reports whether the call has finished.
func (c *Call) Closed() bool {
	return c.Status.Terminal()
}

// Append adds a finished turn. Turns after the first count as reasks.
func (c *Call) Append(it *Iteration) error {
	if c.Closed() {
		return types.NewError(types.ErrCallClosed, "call "+c.ID+" is closed")
	}
	it.Index = len(c.Iterations)
	c.Iterations = append(c.Iterations, it)
	if it.Index > 0 {
		c.ReasksUsed = it.Index
	}
	return nil
}

// Close finishes the call. err may be nil.
func (c *Call) Close(status Status, output any, err error) error {
	if c.Closed() {
		return types.NewError(types.ErrCallClosed, "call "+c.ID+" is closed")
	}
	c.Status = status
	c.Output = output
	if err != nil {
		c.Error = err.Error()
		c.ErrorCode = types.GetErrorCode(err)
	}
	c.FinishedAt = time.Now()
	return nil
}

// Last returns the most recent turn, nil before the first.
func (c *Call) Last() *Iteration {
	if len(c.Iterations) == 0 {
		return nil
	}
	return c.Iterations[len(c.Iterations)-1]
}

// BackendCalls counts the turns that reached the backend.
func (c *Call) BackendCalls() int {
	n := 0
	for _, it := range c.Iterations {
		if it.BackendCalled {
			n++
		}
	}
	return n
}
