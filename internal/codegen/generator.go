package codegen

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"simagent/internal/artifact"
	"simagent/internal/llm"
	"simagent/internal/prompt"
)

// ErrEmptyResponse indicates the model reply contained no extractable code,
// even after one stricter re-prompt.
var ErrEmptyResponse = errors.New("codegen: no code in model response")

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n(.*?)```")

// Generator turns a prompt payload into a CodeArtifact via one LLM call.
// Transient provider failures are surfaced, not retried; the correction
// loop owns the budget.
type Generator struct {
	LLM llm.Client
}

// Generate calls the model once and parses the reply into a new artifact
// with revision prev.Revision+1 (0 when prev is nil). A reply with no
// extractable code triggers exactly one internal re-prompt with a stricter
// instruction before ErrEmptyResponse is surfaced.
func (g *Generator) Generate(ctx context.Context, payload string, prev *artifact.CodeArtifact) (artifact.CodeArtifact, error) {
	var zero artifact.CodeArtifact
	if g == nil || g.LLM == nil {
		return zero, fmt.Errorf("codegen: missing LLM client")
	}

	code, err := g.once(ctx, payload)
	if err != nil && errors.Is(err, ErrEmptyResponse) {
		code, err = g.once(ctx, payload+"\n\n"+prompt.StrictCodeOnly)
	}
	if err != nil {
		return zero, err
	}

	if prev != nil {
		return prev.Next(code, artifact.OriginCorrected), nil
	}
	return artifact.New(code, artifact.OriginGenerated), nil
}

func (g *Generator) once(ctx context.Context, payload string) (string, error) {
	text, err := g.LLM.GenerateText(ctx, payload)
	if err != nil {
		if errors.Is(err, llm.ErrNoContent) {
			return "", ErrEmptyResponse
		}
		return "", err
	}
	code := ExtractCode(text)
	if strings.TrimSpace(code) == "" {
		return "", ErrEmptyResponse
	}
	return code, nil
}

// ExtractCode strips non-code wrapping from a model reply: the first fenced
// code block when present, otherwise the whole reply treated as code.
func ExtractCode(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	trimmed := strings.TrimSpace(text)
	// A bare opening fence without a closing one still wraps code.
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
			trimmed = trimmed[i+1:]
		} else {
			trimmed = ""
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
