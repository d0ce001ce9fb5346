package artifact

import "time"

// ExecStatus is the outcome classification of one execution attempt.
type ExecStatus string

const (
	ExecSucceeded ExecStatus = "succeeded"
	ExecFailed    ExecStatus = "failed"
	ExecTimedOut  ExecStatus = "timed-out"
)

// EventKind classifies a streamed execution event payload.
type EventKind string

const (
	EventText     EventKind = "text"
	EventFigure   EventKind = "figure"
	EventArtifact EventKind = "artifact"
)

// Event is one incremental output emitted during a streaming execution.
// Figure and artifact events carry the produced file's path as payload.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      EventKind `json:"kind"`
	Payload   string    `json:"payload"`
}

// ExecutionResult is the outcome of one Execution Runner invocation.
//
// Invariant: a failed or timed-out result carries exactly one Diagnostic;
// a succeeded result carries none.
type ExecutionResult struct {
	Status     ExecStatus  `json:"status"`
	Stdout     string      `json:"stdout,omitempty"`
	Events     []Event     `json:"events,omitempty"`
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
}

// Succeeded returns a success result with the captured stdout and events.
func Succeeded(stdout string, events []Event) ExecutionResult {
	return ExecutionResult{Status: ExecSucceeded, Stdout: stdout, Events: events}
}

// Failed returns a failure result carrying the single runtime diagnostic.
func Failed(stdout string, events []Event, d Diagnostic) ExecutionResult {
	return ExecutionResult{Status: ExecFailed, Stdout: stdout, Events: events, Diagnostic: &d}
}

// TimedOut returns a timed-out result with a synthetic diagnostic naming
// the elapsed budget.
func TimedOut(stdout string, events []Event, d Diagnostic) ExecutionResult {
	return ExecutionResult{Status: ExecTimedOut, Stdout: stdout, Events: events, Diagnostic: &d}
}

// ArtifactPaths lists the file paths of figure/artifact events in order.
func (r ExecutionResult) ArtifactPaths() []string {
	var out []string
	for _, e := range r.Events {
		if e.Kind == EventFigure || e.Kind == EventArtifact {
			out = append(out, e.Payload)
		}
	}
	return out
}
