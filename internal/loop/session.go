package loop

import (
	"fmt"
	"strings"

	"simagent/internal/artifact"
)

// Attempt pairs one code revision with its outcome. Exactly one of
// Validation/Execution explains a failed attempt: a blocking validation
// means the revision never reached the runner.
type Attempt struct {
	Artifact   artifact.CodeArtifact
	Validation *artifact.ValidationReport
	Execution  *artifact.ExecutionResult

	// FedBack is the diagnostic set handed to the prompt builder when this
	// attempt triggered a correction; empty for the accepted revision.
	FedBack []artifact.Diagnostic
	// Repeated marks that this attempt failed with the same diagnostics as
	// the one before it (the model did not fix the issue).
	Repeated bool
}

// Session is the full record of one correction run: every revision tried,
// its outcome, and the transition history. Sessions are owned by the
// orchestrator for one user request and discarded once terminal; only the
// accepted artifact outlives them, via the store.
type Session struct {
	Intent      string
	Rules       []string
	Attempts    []Attempt
	Transitions []State
}

func (s *Session) transition(to State) {
	s.Transitions = append(s.Transitions, to)
}

// State returns the current (last entered) state.
func (s *Session) State() State {
	if len(s.Transitions) == 0 {
		return ""
	}
	return s.Transitions[len(s.Transitions)-1]
}

// Accepted returns the final accepted artifact, if the session ended in
// StateAccepted.
func (s *Session) Accepted() (artifact.CodeArtifact, bool) {
	if s.State() != StateAccepted || len(s.Attempts) == 0 {
		return artifact.CodeArtifact{}, false
	}
	return s.Attempts[len(s.Attempts)-1].Artifact, true
}

// Count reports how many transitions entered the given state.
func (s *Session) Count(state State) int {
	n := 0
	for _, t := range s.Transitions {
		if t == state {
			n++
		}
	}
	return n
}

// History renders a human-readable account of every attempt and its
// failure reason, for the exhausted-session report.
func (s *Session) History() string {
	var sb strings.Builder
	for _, a := range s.Attempts {
		fmt.Fprintf(&sb, "revision %d (%s):", a.Artifact.Revision, a.Artifact.Origin)
		switch {
		case a.Execution != nil && a.Execution.Status == artifact.ExecSucceeded:
			sb.WriteString(" accepted\n")
			continue
		case a.Execution != nil:
			fmt.Fprintf(&sb, " execution %s\n", a.Execution.Status)
		case a.Validation != nil && a.Validation.Blocking():
			sb.WriteString(" blocked by validation\n")
		default:
			sb.WriteString(" no outcome recorded\n")
		}
		for _, d := range a.FedBack {
			fmt.Fprintf(&sb, "    %s\n", d)
		}
		if a.Repeated {
			sb.WriteString("    (same diagnostics as previous attempt)\n")
		}
	}
	return sb.String()
}
