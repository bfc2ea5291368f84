package pipeline

import (
	"strings"

	"github.com/ajitpratap0/recordflow/pkg/errors"
)

// Policy is the disposition of per-record failures during a run
type Policy int

const (
	// Skip logs each failure, lists it in the result and continues
	Skip Policy = iota
	// Abort stops the run at the first failure and reports it as fatal
	Abort
	// Collect lists each failure in the result and continues
	Collect
)

func (p Policy) String() string {
	switch p {
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	case Collect:
		return "collect"
	default:
		return "unknown"
	}
}

// ParsePolicy resolves skip, abort or collect
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "skip":
		return Skip, nil
	case "abort":
		return Abort, nil
	case "collect":
		return Collect, nil
	default:
		return Skip, errors.Newf(errors.ErrorTypeConfig, "unknown error policy %q, expected skip, abort or collect", name)
	}
}

// ErrorPolicy configures how a run treats per-record failures.
type ErrorPolicy struct {
	OnRecordError Policy
	// MaxFailures aborts the run once more failures occur; 0 means unlimited.
	// It has no effect under Abort.
	MaxFailures int
}

// DefaultErrorPolicy aborts on the first failure
func DefaultErrorPolicy() ErrorPolicy {
	return ErrorPolicy{OnRecordError: Abort}
}

// exceeded reports whether n failures exceed the limit
func (p ErrorPolicy) exceeded(n int) bool {
	return p.MaxFailures > 0 && n > p.MaxFailures
}
