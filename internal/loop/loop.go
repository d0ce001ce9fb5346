// Package loop is the correction-loop orchestrator: an explicit state
// machine driving generation, validation, execution and correction until a
// revision is accepted or the retry budget is exhausted.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"simagent/internal/artifact"
	"simagent/internal/codegen"
	"simagent/internal/lint"
	"simagent/internal/prompt"
	"simagent/internal/runner"
)

// State is one node of the correction state machine.
type State string

const (
	StateGenerating State = "generating"
	StateValidating State = "validating"
	StateExecuting  State = "executing"
	StateCorrecting State = "correcting"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
	StateAborted    State = "aborted"
)

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateExhausted || s == StateAborted
}

// ErrExhausted is returned when the retry budget runs out. The session
// carries the full history of attempted revisions and their outcomes.
var ErrExhausted = errors.New("loop: correction budget exhausted")

// DefaultMaxAttempts is the default correction budget.
const DefaultMaxAttempts = 3

// Config tunes one orchestrator.
type Config struct {
	// MaxAttempts is the correction budget; DefaultMaxAttempts when <= 0.
	MaxAttempts int
	// Mode selects batch or streaming execution.
	Mode runner.Mode
	// Timeout bounds each execution attempt, not the session.
	Timeout time.Duration
	// StopOnRepeat exhausts the session early when two consecutive
	// attempts fail with identical diagnostics. Off by default: repetition
	// is always recorded, never special-cased unless asked for.
	StopOnRepeat bool
}

// Orchestrator ties generator, validator and runner together. All stages
// within a session are sequential; one session runs at a time.
type Orchestrator struct {
	Gen       *codegen.Generator
	Validator *lint.Validator
	Runner    *runner.Runner
	Config    Config
}

// Run drives one full correction session for the given intent.
//
// The returned session is always populated with whatever history
// accumulated, including on error. ErrExhausted signals a spent budget;
// provider and invalid-request errors surface as-is. A canceled context
// yields a session in StateAborted with a nil error: user abort is a
// terminal outcome, not a failure.
func (o *Orchestrator) Run(ctx context.Context, intent string, rules []string) (*Session, error) {
	s := &Session{Intent: intent, Rules: rules}
	if o.Gen == nil || o.Runner == nil {
		return s, fmt.Errorf("loop: generator and runner are required")
	}
	max := o.Config.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}

	var (
		prior     *artifact.CodeArtifact
		corrDiags []artifact.Diagnostic
		prevDiags []artifact.Diagnostic
		attempts  int
	)

	for {
		if aborted(ctx, s) {
			return s, nil
		}

		// GENERATING
		s.transition(StateGenerating)
		payload, err := prompt.Build(prompt.Request{
			Intent:      intent,
			Prior:       prior,
			Diagnostics: corrDiags,
			Rules:       rules,
		})
		if err != nil {
			return s, err
		}
		art, err := o.Gen.Generate(ctx, payload, prior)
		if err != nil {
			if aborted(ctx, s) {
				return s, nil
			}
			return s, err
		}
		s.Attempts = append(s.Attempts, Attempt{Artifact: art})
		cur := &s.Attempts[len(s.Attempts)-1]

		// VALIDATING
		s.transition(StateValidating)
		blocking := false
		if o.Validator != nil {
			rep, verr := o.Validator.Validate(ctx, art)
			switch {
			case errors.Is(verr, lint.ErrCheckerUnavailable):
				// Validation is advisory: proceed unvalidated.
				log.Printf("loop: checker unavailable, skipping validation: %v", verr)
			case verr != nil:
				if aborted(ctx, s) {
					return s, nil
				}
				return s, verr
			default:
				cur.Validation = &rep
				if rep.Blocking() {
					blocking = true
					corrDiags = rep.Diagnostics
				} else if rep.Verdict == artifact.VerdictWarned {
					// Warnings are logged, never corrected.
					for _, d := range rep.Diagnostics {
						log.Printf("loop: lint warning rev %d: %s", art.Revision, d)
					}
				}
			}
		}

		if !blocking {
			// EXECUTING
			s.transition(StateExecuting)
			res, err := o.Runner.Run(ctx, art, o.Config.Mode, o.Config.Timeout)
			if err != nil {
				if aborted(ctx, s) {
					return s, nil
				}
				return s, err
			}
			cur.Execution = &res
			if res.Status == artifact.ExecSucceeded {
				s.transition(StateAccepted)
				return s, nil
			}
			// Execution-time evidence supersedes static warnings.
			corrDiags = []artifact.Diagnostic{*res.Diagnostic}
		}

		// CORRECTING
		s.transition(StateCorrecting)
		cur.FedBack = corrDiags
		if sameDiagnostics(corrDiags, prevDiags) {
			cur.Repeated = true
			log.Printf("loop: rev %d failed with the same diagnostics as the previous attempt", art.Revision)
		}
		attempts++
		if attempts >= max || (cur.Repeated && o.Config.StopOnRepeat) {
			s.transition(StateExhausted)
			return s, ErrExhausted
		}

		prior = &art
		prevDiags = corrDiags
	}
}

func aborted(ctx context.Context, s *Session) bool {
	if ctx.Err() == nil {
		return false
	}
	s.transition(StateAborted)
	return true
}

func sameDiagnostics(a, b []artifact.Diagnostic) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Same(b[i]) {
			return false
		}
	}
	return true
}
