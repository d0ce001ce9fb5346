package prompt

import (
	"errors"
	"fmt"
	"strings"

	"simagent/internal/artifact"
)

// ErrInvalidRequest indicates malformed builder input (e.g. empty intent).
var ErrInvalidRequest = errors.New("prompt: invalid request")

// StrictCodeOnly is the re-prompt instruction appended when a model reply
// contained no extractable code.
const StrictCodeOnly = "Return ONLY a single fenced matlab code block. " +
	"No prose, no explanations, nothing outside the fence."

const generateHeader = "You are a MATLAB simulation expert. " +
	"Write a complete, runnable MATLAB script for the task below. " +
	"Return the script as a single fenced matlab code block."

const correctHeader = "You are an expert MATLAB programmer specializing in fixing code errors. " +
	"Correct the provided MATLAB code based on the diagnostics. " +
	"Return ONLY the corrected script as a single fenced matlab code block."

// Request is the builder input: the user intent, the prior artifact and
// diagnostics when refining after a failure, and optional constraint rules.
type Request struct {
	Intent      string
	Prior       *artifact.CodeArtifact
	Diagnostics []artifact.Diagnostic
	Rules       []string
}

// Build assembles a single prompt payload. Pure data transformation, no I/O.
//
// When diagnostics are present the payload includes, verbatim, each
// diagnostic's message and line reference together with the full prior
// source; correction requests are never diagnostic-only. Rules are appended
// as non-negotiable directives in their configured order.
func Build(req Request) (string, error) {
	intent := strings.TrimSpace(req.Intent)
	if intent == "" {
		return "", fmt.Errorf("%w: empty intent", ErrInvalidRequest)
	}
	if len(req.Diagnostics) > 0 && req.Prior == nil {
		return "", fmt.Errorf("%w: diagnostics without prior code", ErrInvalidRequest)
	}

	var sb strings.Builder
	if len(req.Diagnostics) > 0 {
		sb.WriteString(correctHeader)
	} else {
		sb.WriteString(generateHeader)
	}
	sb.WriteString("\n\n[TASK]\n")
	sb.WriteString(intent)

	if req.Prior != nil {
		sb.WriteString("\n\n[CURRENT CODE (revision ")
		fmt.Fprintf(&sb, "%d", req.Prior.Revision)
		sb.WriteString(")]\n```matlab\n")
		sb.WriteString(strings.TrimRight(req.Prior.Source, "\n"))
		sb.WriteString("\n```")
	}

	if len(req.Diagnostics) > 0 {
		sb.WriteString("\n\n[DIAGNOSTICS]\n")
		for _, d := range req.Diagnostics {
			if d.Line > 0 {
				fmt.Fprintf(&sb, "- [line %d] %s\n", d.Line, d.Message)
			} else {
				fmt.Fprintf(&sb, "- %s\n", d.Message)
			}
			if d.Excerpt != "" {
				fmt.Fprintf(&sb, "    > %s\n", d.Excerpt)
			}
		}
	}

	if len(req.Rules) > 0 {
		sb.WriteString("\n[RULES] Non-negotiable directives, apply all:\n")
		for i, r := range req.Rules {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(r))
		}
	}

	return sb.String(), nil
}
