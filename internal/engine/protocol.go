package engine

import "time"

// Wire types for the collaborator's JSON protocol. Batch execution and lint
// go over HTTP; streaming execution over a persistent websocket.

// ExecRequest is the batch execution request body (POST /v1/execute).
type ExecRequest struct {
	Source    string `json:"source"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
}

// ErrorDetail is the engine's report of a runtime error.
type ErrorDetail struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ArtifactRef points at a file the engine wrote to the working directory.
type ArtifactRef struct {
	Kind string `json:"kind"` // "figure" or "artifact"
	Path string `json:"path"`
}

// ExecResponse is the batch execution response body.
type ExecResponse struct {
	Success   bool          `json:"success"`
	Stdout    string        `json:"stdout,omitempty"`
	Error     *ErrorDetail  `json:"error,omitempty"`
	Artifacts []ArtifactRef `json:"artifacts,omitempty"`
}

// LintRequest is the static-check request body (POST /v1/lint).
type LintRequest struct {
	Source string `json:"source"`
}

// LintFinding mirrors one checker finding on the wire.
type LintFinding struct {
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// LintResponse is the static-check response body.
type LintResponse struct {
	Findings []LintFinding `json:"findings"`
}

// Stream frame types (GET /v1/stream, websocket).
const (
	frameRun    = "run"
	frameCancel = "cancel"
	frameEvent  = "event"
	frameDone   = "done"
)

// streamInbound is a client-to-engine frame.
type streamInbound struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
}

// streamOutbound is an engine-to-client frame. Event frames carry kind,
// payload and timestamp; the terminal done frame carries the outcome.
type streamOutbound struct {
	Type    string       `json:"type"`
	Kind    string       `json:"kind,omitempty"`
	Payload string       `json:"payload,omitempty"`
	TS      time.Time    `json:"ts,omitempty"`
	Success bool         `json:"success,omitempty"`
	Stdout  string       `json:"stdout,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
