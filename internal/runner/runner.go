// Package runner drives one execution attempt against the shared engine
// handle: batch run-to-completion or streaming with incremental events.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simagent/internal/artifact"
	"simagent/internal/engine"
)

// Mode selects how an artifact is executed.
type Mode string

const (
	ModeBatch  Mode = "batch"
	ModeStream Mode = "stream"
)

// Runner executes one artifact at a time. It acquires the engine lease for
// the duration of the attempt, so concurrent runners against one handle
// serialize instead of interleaving.
type Runner struct {
	Handle *engine.Handle

	// Sink, when set, observes streamed events live, in emission order.
	// Events are always collected into the result as well.
	Sink func(artifact.Event)
}

// Run executes the artifact and maps the collaborator's outcome into an
// ExecutionResult. The timeout bounds this attempt only.
//
// A connection failure is reported as a failed result (with the connection
// error as its diagnostic), not as a Go error: it consumes a correction
// attempt like any other failure. The error return is reserved for caller
// cancellation and misconfiguration.
func (r *Runner) Run(ctx context.Context, art artifact.CodeArtifact, mode Mode, timeout time.Duration) (artifact.ExecutionResult, error) {
	var zero artifact.ExecutionResult
	if r == nil || r.Handle == nil {
		return zero, fmt.Errorf("runner: engine handle is required")
	}
	if art.Empty() {
		return zero, fmt.Errorf("runner: empty artifact")
	}

	lease, err := r.Handle.Acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer lease.Release()

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch mode {
	case ModeBatch, "":
		return r.runBatch(ctx, runCtx, lease.Client(), art, timeout)
	case ModeStream:
		return r.runStream(ctx, runCtx, lease.Client(), art, timeout)
	default:
		return zero, fmt.Errorf("runner: unknown mode %q", mode)
	}
}

func (r *Runner) runBatch(parent, ctx context.Context, cli *engine.Client, art artifact.CodeArtifact, timeout time.Duration) (artifact.ExecutionResult, error) {
	resp, err := cli.Execute(ctx, art.Source, timeout)
	if err != nil {
		return r.mapRunError(parent, ctx, err, "", nil, timeout)
	}
	events := artifactEvents(resp.Artifacts)
	if !resp.Success {
		return artifact.Failed(resp.Stdout, events, runtimeDiagnostic(resp.Error)), nil
	}
	return artifact.Succeeded(resp.Stdout, events), nil
}

func (r *Runner) runStream(parent, ctx context.Context, cli *engine.Client, art artifact.CodeArtifact, timeout time.Duration) (artifact.ExecutionResult, error) {
	run, err := cli.Stream(ctx, art.Source)
	if err != nil {
		return r.mapRunError(parent, ctx, err, "", nil, timeout)
	}

	var events []artifact.Event
	for ev := range run.Events() {
		events = append(events, ev)
		if r.Sink != nil {
			r.Sink(ev)
		}
	}
	resp, err := run.Wait()
	if err != nil {
		return r.mapRunError(parent, ctx, err, resp.Stdout, events, timeout)
	}
	if !resp.Success {
		return artifact.Failed(resp.Stdout, events, runtimeDiagnostic(resp.Error)), nil
	}
	return artifact.Succeeded(resp.Stdout, events), nil
}

// mapRunError classifies a transport-level failure: per-attempt timeout
// becomes a timed-out result, caller cancellation propagates as an error,
// and an unreachable engine becomes a failed result.
func (r *Runner) mapRunError(parent, ctx context.Context, err error, stdout string, events []artifact.Event, timeout time.Duration) (artifact.ExecutionResult, error) {
	if parent.Err() != nil {
		return artifact.ExecutionResult{}, parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d := artifact.Diagnostic{
			Kind:    artifact.DiagRuntimeError,
			Message: fmt.Sprintf("execution timed out after %s", timeout),
		}
		return artifact.TimedOut(stdout, events, d), nil
	}
	if errors.Is(err, engine.ErrUnavailable) {
		d := artifact.Diagnostic{
			Kind:    artifact.DiagRuntimeError,
			Message: err.Error(),
		}
		return artifact.Failed(stdout, events, d), nil
	}
	return artifact.ExecutionResult{}, err
}

func runtimeDiagnostic(detail *engine.ErrorDetail) artifact.Diagnostic {
	if detail == nil {
		return artifact.Diagnostic{Kind: artifact.DiagRuntimeError, Message: "execution failed"}
	}
	return artifact.Diagnostic{
		Kind:    artifact.DiagRuntimeError,
		Message: detail.Message,
		Line:    detail.Line,
	}
}

func artifactEvents(refs []engine.ArtifactRef) []artifact.Event {
	if len(refs) == 0 {
		return nil
	}
	now := time.Now()
	events := make([]artifact.Event, 0, len(refs))
	for _, ref := range refs {
		kind := artifact.EventArtifact
		if ref.Kind == "figure" {
			kind = artifact.EventFigure
		}
		events = append(events, artifact.Event{Timestamp: now, Kind: kind, Payload: ref.Path})
	}
	return events
}
