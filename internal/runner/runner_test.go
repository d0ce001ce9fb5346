package runner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"simagent/internal/artifact"
	"simagent/internal/engine"
)

func newRunner(t *testing.T, handler http.Handler) *Runner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cli, err := engine.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return &Runner{Handle: engine.NewHandle(cli)}
}

func execHandler(resp engine.ExecResponse) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(resp)
	})
}

func userArtifact(source string) artifact.CodeArtifact {
	return artifact.New(source, artifact.OriginUser)
}

func TestRunBatchSuccess(t *testing.T) {
	r := newRunner(t, execHandler(engine.ExecResponse{
		Success:   true,
		Stdout:    "ans = 42\n",
		Artifacts: []engine.ArtifactRef{{Kind: "figure", Path: "figure_1.png"}},
	}))

	res, err := r.Run(context.Background(), userArtifact("x = 42"), ModeBatch, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != artifact.ExecSucceeded || res.Stdout != "ans = 42\n" {
		t.Fatalf("res = %+v", res)
	}
	if paths := res.ArtifactPaths(); len(paths) != 1 || paths[0] != "figure_1.png" {
		t.Fatalf("artifact paths = %v", paths)
	}
}

func TestRunBatchRuntimeFailure(t *testing.T) {
	r := newRunner(t, execHandler(engine.ExecResponse{
		Success: false,
		Stdout:  "partial output\n",
		Error:   &engine.ErrorDetail{Message: "undefined function 'foo'", Line: 3},
	}))

	res, err := r.Run(context.Background(), userArtifact("foo()"), ModeBatch, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != artifact.ExecFailed {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Diagnostic == nil || res.Diagnostic.Line != 3 || res.Diagnostic.Kind != artifact.DiagRuntimeError {
		t.Fatalf("diagnostic = %+v", res.Diagnostic)
	}
	if res.Stdout != "partial output\n" {
		t.Fatalf("stdout = %q, output before the error must be preserved", res.Stdout)
	}
}

func TestRunTimeoutBecomesTimedOutResult(t *testing.T) {
	r := newRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))

	res, err := r.Run(context.Background(), userArtifact("while true; end"), ModeBatch, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("a per-attempt timeout is a result, not an error: %v", err)
	}
	if res.Status != artifact.ExecTimedOut {
		t.Fatalf("status = %s, want timed-out", res.Status)
	}
	if res.Diagnostic == nil || res.Diagnostic.Kind != artifact.DiagRuntimeError {
		t.Fatalf("diagnostic = %+v", res.Diagnostic)
	}
}

func TestRunUnreachableEngineBecomesFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cli, err := engine.NewClient(url)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	r := &Runner{Handle: engine.NewHandle(cli)}

	res, err := r.Run(context.Background(), userArtifact("x = 1;"), ModeBatch, 0)
	if err != nil {
		t.Fatalf("connection failure must consume an attempt, not abort: %v", err)
	}
	if res.Status != artifact.ExecFailed || res.Diagnostic == nil {
		t.Fatalf("res = %+v", res)
	}
}

func TestRunCallerCancellationIsAnError(t *testing.T) {
	r := newRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Drain the body so the server starts its background read and
		// observes the client disconnect; otherwise the request context
		// is never canceled and Close deadlocks in cleanup.
		io.Copy(io.Discard, req.Body)
		<-req.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	if _, err := r.Run(ctx, userArtifact("x = 1;"), ModeBatch, 0); err == nil {
		t.Fatal("caller cancellation must surface as an error")
	}
}

func TestRunReleasesLeaseOnEveryPath(t *testing.T) {
	r := newRunner(t, execHandler(engine.ExecResponse{Success: true}))

	for i := 0; i < 3; i++ {
		if _, err := r.Run(context.Background(), userArtifact("x = 1;"), ModeBatch, 0); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	lease, ok := r.Handle.TryAcquire()
	if !ok {
		t.Fatal("lease leaked across runs")
	}
	lease.Release()
}

func TestRunRejectsEmptyArtifact(t *testing.T) {
	r := newRunner(t, execHandler(engine.ExecResponse{Success: true}))
	if _, err := r.Run(context.Background(), artifact.CodeArtifact{}, ModeBatch, 0); err == nil {
		t.Fatal("empty artifact must be rejected")
	}
}

func TestRunStream(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stream", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		var run map[string]any
		if err := conn.ReadJSON(&run); err != nil {
			t.Errorf("read run: %v", err)
			return
		}
		conn.WriteJSON(map[string]any{"type": "event", "kind": "text", "payload": "tick\n"})
		conn.WriteJSON(map[string]any{"type": "event", "kind": "artifact", "payload": "results.mat"})
		conn.WriteJSON(map[string]any{"type": "done", "success": true, "stdout": "tick\n"})
	})

	var seen []artifact.Event
	r := newRunner(t, mux)
	r.Sink = func(ev artifact.Event) { seen = append(seen, ev) }

	res, err := r.Run(context.Background(), userArtifact("disp('tick')"), ModeStream, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != artifact.ExecSucceeded {
		t.Fatalf("status = %s", res.Status)
	}
	if len(res.Events) != 2 || len(seen) != 2 {
		t.Fatalf("events = %d, sink = %d, want 2 each", len(res.Events), len(seen))
	}
	if res.Events[0].Kind != artifact.EventText || res.Events[1].Kind != artifact.EventArtifact {
		t.Fatalf("event kinds = %s, %s", res.Events[0].Kind, res.Events[1].Kind)
	}
	if paths := res.ArtifactPaths(); len(paths) != 1 || paths[0] != "results.mat" {
		t.Fatalf("artifact paths = %v", paths)
	}
}
