package lint

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"simagent/internal/artifact"
)

// ErrCheckerUnavailable indicates the external checker could not be
// invoked. Validation is advisory: the orchestrator treats the artifact as
// unvalidated and proceeds to execution.
var ErrCheckerUnavailable = errors.New("lint: checker unavailable")

// Finding is one raw issue reported by the external static checker.
type Finding struct {
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Checker is the external static-checker collaborator.
type Checker interface {
	Check(ctx context.Context, source string) ([]Finding, error)
}

// Validator maps checker findings into a ValidationReport. Re-validating an
// unchanged artifact returns the identical cached report.
type Validator struct {
	Checker Checker
	cache   *lru.Cache[[32]byte, artifact.ValidationReport]
}

// NewValidator wraps the given checker with a report cache of the given
// size (minimum 1).
func NewValidator(checker Checker, cacheSize int) (*Validator, error) {
	if checker == nil {
		return nil, fmt.Errorf("lint: checker is required")
	}
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[[32]byte, artifact.ValidationReport](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Validator{Checker: checker, cache: cache}, nil
}

// Validate submits the artifact's source to the checker and derives the
// verdict. Severity classification is passed through, not reinterpreted:
// the checker's "error" findings become lint-error diagnostics, everything
// else a lint-warning. Read-only, no side effects.
func (v *Validator) Validate(ctx context.Context, art artifact.CodeArtifact) (artifact.ValidationReport, error) {
	key := sha256.Sum256([]byte(art.Source))
	if rep, ok := v.cache.Get(key); ok {
		return rep, nil
	}

	findings, err := v.Checker.Check(ctx, art.Source)
	if err != nil {
		if errors.Is(err, ErrCheckerUnavailable) {
			return artifact.ValidationReport{}, err
		}
		return artifact.ValidationReport{}, fmt.Errorf("%w: %v", ErrCheckerUnavailable, err)
	}

	diags := make([]artifact.Diagnostic, 0, len(findings))
	for _, f := range findings {
		kind := artifact.DiagLintWarning
		if strings.EqualFold(strings.TrimSpace(f.Severity), "error") {
			kind = artifact.DiagLintError
		}
		diags = append(diags, artifact.Diagnostic{
			Kind:    kind,
			Message: f.Message,
			Line:    f.Line,
		})
	}
	rep := artifact.NewValidationReport(diags)
	v.cache.Add(key, rep)
	return rep, nil
}
