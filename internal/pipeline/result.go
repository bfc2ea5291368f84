package pipeline

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/recordflow/pkg/errors"
)

// Outcome is how a run terminated
type Outcome int

const (
	// Completed means the producer was exhausted without failures
	Completed Outcome = iota
	// CompletedWithFailures means the producer was exhausted and failures were skipped or collected
	CompletedWithFailures
	// Aborted means a failure stopped the run
	Aborted
	// Cancelled means the caller stopped the run
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case CompletedWithFailures:
		return "completed_with_failures"
	case Aborted:
		return "aborted"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Failure describes one record that was not delivered.
type Failure struct {
	RecordNumber uint64           `json:"record_number"`
	Kind         errors.ErrorType `json:"kind"`
	Message      string           `json:"message"`
}

// failureOf describes a failed record. A source number wins over the
// number the error carries, which renumbering stages may have changed.
func failureOf(err error, number uint64) Failure {
	if number == 0 {
		number = errors.RecordNumberOf(err)
	}
	return Failure{
		RecordNumber: number,
		Kind:         errors.TypeOf(err),
		Message:      err.Error(),
	}
}

// Result summarizes a finished run. It is not modified after Run returns.
type Result struct {
	RunID    string
	Pipeline string
	Outcome  Outcome
	// Read counts records taken from the producer, including failed ones
	Read uint64
	// Written counts records accepted by the consumer
	Written uint64
	// Skipped counts records not delivered because of a per-record failure
	Skipped uint64
	// Filtered counts records dropped by filter stages
	Filtered uint64
	Failures []Failure
	// Fatal is the error that ended the run early, nil when it completed
	Fatal error
	// ReleaseErr is a failure to close the producer or consumer. It equals
	// Fatal when nothing failed earlier and is reported separately otherwise.
	ReleaseErr error
	StartedAt  time.Time
	EndedAt    time.Time
}

// Duration returns the wall clock time of the run
func (r *Result) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// OK reports whether the run completed without any failure
func (r *Result) OK() bool {
	return r.Outcome == Completed && r.Fatal == nil
}

// Exit codes for front-ends
const (
	ExitClean    = 0
	ExitFatal    = 1
	ExitFailures = 2
)

// ExitCode maps the result to a process exit code: 0 clean, 1 fatal,
// aborted or cancelled, 2 completed with record failures.
func (r *Result) ExitCode() int {
	switch {
	case r.Fatal != nil || r.Outcome == Aborted || r.Outcome == Cancelled:
		return ExitFatal
	case len(r.Failures) > 0:
		return ExitFailures
	default:
		return ExitClean
	}
}

type resultJSON struct {
	RunID      string    `json:"run_id"`
	Pipeline   string    `json:"pipeline"`
	Outcome    Outcome   `json:"outcome"`
	Read       uint64    `json:"read"`
	Written    uint64    `json:"written"`
	Skipped    uint64    `json:"skipped"`
	Filtered   uint64    `json:"filtered"`
	Failures   []Failure `json:"failures"`
	Fatal      string    `json:"fatal,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// MarshalJSON renders the summary for reports
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		RunID:      r.RunID,
		Pipeline:   r.Pipeline,
		Outcome:    r.Outcome,
		Read:       r.Read,
		Written:    r.Written,
		Skipped:    r.Skipped,
		Filtered:   r.Filtered,
		Failures:   r.Failures,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration().Milliseconds(),
	}
	if out.Failures == nil {
		out.Failures = []Failure{}
	}
	if r.Fatal != nil {
		out.Fatal = r.Fatal.Error()
	}
	return json.Marshal(out)
}
