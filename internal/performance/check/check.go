// Package check evaluates named pass/fail predicates against iteration
// outcomes.
package check

import (
	"github.com/prreview/loadgen/internal/performance"
)

// Predicate reports whether an outcome passes. It must not modify the
// outcome and must be safe for concurrent use.
type Predicate func(o *performance.Outcome) bool

// Check is a named predicate. Checks with the same name share one tally.
type Check struct {
	Name      string
	Predicate Predicate
}

// New creates a check.
func New(name string, p Predicate) Check {
	return Check{Name: name, Predicate: p}
}

// Recorder receives one pass/fail per evaluated check. metrics.Engine
// implements it.
type Recorder interface {
	RecordCheck(name string, passed bool)
}

// Result is the outcome of evaluating one check.
type Result struct {
	Name    string
	Passed  bool
	Err     error
	Outcome *performance.Outcome
}

// Evaluate runs every check against o and reports each result to rec.
//
// Checks are independent: a failing or panicking check does not stop the
// others. A panic is recovered into a *performance.CheckError and counts as
// a failure. rec may be nil.
func Evaluate(o *performance.Outcome, checks []Check, rec Recorder) []Result {
	if len(checks) == 0 {
		return nil
	}

	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		r := evaluateOne(o, c)
		if rec != nil {
			rec.RecordCheck(r.Name, r.Passed)
		}
		results = append(results, r)
	}
	return results
}

func evaluateOne(o *performance.Outcome, c Check) (r Result) {
	r = Result{Name: c.Name, Outcome: o}

	defer func() {
		if p := recover(); p != nil {
			r.Passed = false
			r.Err = &performance.CheckError{Check: c.Name, Cause: p}
		}
	}()

	if c.Predicate == nil {
		return r
	}
	r.Passed = c.Predicate(o)
	return r
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
