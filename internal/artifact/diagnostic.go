package artifact

import "fmt"

// DiagnosticKind classifies a reported issue.
type DiagnosticKind string

const (
	DiagLintWarning  DiagnosticKind = "lint-warning"
	DiagLintError    DiagnosticKind = "lint-error"
	DiagRuntimeError DiagnosticKind = "runtime-error"
)

// Diagnostic is a single reported issue from the checker or the engine.
// Line is 0 when the source location is unknown.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	Line    int            `json:"line,omitempty"`
	Excerpt string         `json:"excerpt,omitempty"`
}

// Blocking reports whether the diagnostic alone forces a correction.
func (d Diagnostic) Blocking() bool {
	return d.Kind == DiagLintError || d.Kind == DiagRuntimeError
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("[line %d] %s", d.Line, d.Message)
	}
	return d.Message
}

// Same reports whether two diagnostics describe the same issue. Used to
// record repetition across correction attempts.
func (d Diagnostic) Same(o Diagnostic) bool {
	return d.Kind == o.Kind && d.Message == o.Message && d.Line == o.Line
}

// Verdict is the derived classification of a ValidationReport.
type Verdict string

const (
	VerdictClean    Verdict = "clean"
	VerdictWarned   Verdict = "warned"
	VerdictBlocking Verdict = "blocking"
)

// ValidationReport is the outcome of one validation call. Reports are
// produced fresh per call and never merged across revisions.
type ValidationReport struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	Verdict     Verdict      `json:"verdict"`
}

// NewValidationReport derives the verdict from the given diagnostics:
// no diagnostics is clean, only warnings is warned, any error is blocking.
func NewValidationReport(diags []Diagnostic) ValidationReport {
	verdict := VerdictClean
	for _, d := range diags {
		if d.Kind == DiagLintError {
			verdict = VerdictBlocking
			break
		}
		verdict = VerdictWarned
	}
	return ValidationReport{Diagnostics: diags, Verdict: verdict}
}

// Blocking reports whether the report forces a correction.
func (r ValidationReport) Blocking() bool { return r.Verdict == VerdictBlocking }
