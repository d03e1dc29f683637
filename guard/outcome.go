package guard

import (
	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/runner"
	"github.com/BaSui01/guardflow/validation"
)

// Outcome is what a Guard call returns to the caller.
type Outcome struct {
	CallID    string
	Status    history.Status
	RawOutput string
	// Output is the validated output, nil when the session failed or a
	// validator refrained.
	Output   any
	Failures []validation.Failure
	Warnings []validation.Failure
	Passed   bool
	Error    error
	History  *history.Call
}

// ReasksUsed returns the number of corrective turns taken.
func (o *Outcome) ReasksUsed() int {
	if o.History == nil {
		return 0
	}
	return o.History.ReasksUsed
}

func newOutcome(res *runner.Result) *Outcome {
	o := &Outcome{
		Status:    res.Status,
		RawOutput: res.RawOutput,
		Output:    res.Output,
		Failures:  res.Failures,
		Warnings:  res.Warnings,
		Passed:    res.Passed(),
		Error:     res.Err,
		History:   res.Call,
	}
	if res.Call != nil {
		o.CallID = res.Call.ID
	}
	return o
}
