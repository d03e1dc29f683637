// Package runner drives validation sessions: call the backend, parse the
// output, validate it and reask for the failing parts until the output passes
// or the reask budget is spent.
//
// The turn loop is written once. Decide is a pure transition over the outcome
// of a turn, and Session holds every piece of per-session state. Runner and
// AsyncRunner only differ in how they obtain the raw output of a turn, so a
// blocking backend and an asynchronous one fed the same responses produce the
// same history.
package runner
