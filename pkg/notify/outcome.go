package notify

import (
	"fmt"
	"time"

	"github.com/telekom/go-mail-me/pkg/mail"
)

// Status tags a task outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the captured completion state of one wrapped execution. It is
// built at exactly one point (scope end), is immutable afterwards, and is
// consumed exactly once by the composer.
type Outcome struct {
	Status Status

	// Result holds the task's return value on success, nil otherwise.
	Result any

	// Fault holds the task's error on failure, nil otherwise.
	Fault error

	// Trace holds stack text when the failure came from a recovered panic.
	Trace string

	StartedAt time.Time
	EndedAt   time.Time

	// CapturedOutput aggregates log records emitted during the execution
	// when log capture was active.
	CapturedOutput string
}

func newOutcome(result any, fault error, trace string, startedAt, endedAt time.Time, captured string) Outcome {
	o := Outcome{
		Status:         StatusSuccess,
		Result:         result,
		StartedAt:      startedAt,
		EndedAt:        endedAt,
		CapturedOutput: captured,
	}
	if fault != nil {
		o.Status = StatusFailure
		o.Result = nil
		o.Fault = fault
		o.Trace = trace
	}
	return o
}

// report converts the outcome into the composer's input.
func (o Outcome) report(title string, details []mail.Detail) mail.TaskReport {
	r := mail.TaskReport{
		Title:          title,
		Success:        o.Status == StatusSuccess,
		StartedAt:      o.StartedAt,
		EndedAt:        o.EndedAt,
		CapturedOutput: o.CapturedOutput,
		Details:        details,
	}
	if o.Status == StatusSuccess {
		r.Summary = "Task completed successfully!"
		if o.Result != nil {
			r.Summary = fmt.Sprintf("Task completed successfully! Result: %v", o.Result)
		}
	} else {
		r.Summary = fmt.Sprintf("Task failed: %v", o.Fault)
		r.Trace = o.Trace
	}
	return r
}
