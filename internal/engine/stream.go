package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"simagent/internal/artifact"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadWait  = 5 * time.Minute
)

// StreamRun is one in-flight streaming execution. Events arrive in emission
// order on Events(); the channel is closed after the terminal frame. The
// connection is closed on normal completion and on cancellation alike.
type StreamRun struct {
	events chan artifact.Event
	done   chan struct{}
	conn   *websocket.Conn

	writeMu    sync.Mutex
	cancelOnce sync.Once

	outcome ExecResponse
	err     error
}

// Stream establishes the persistent connection, submits the source, and
// starts delivering incremental events. The caller must drain Events() and
// then call Wait for the final outcome. Canceling ctx signals the engine to
// stop and tears the connection down.
func (c *Client) Stream(ctx context.Context, source string) (*StreamRun, error) {
	wsURL := httpToWS(c.base) + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r := &StreamRun{
		// Small buffer: enough to decouple reader and consumer, blocking
		// send beyond it is the back-pressure.
		events: make(chan artifact.Event, 16),
		done:   make(chan struct{}),
		conn:   conn,
	}

	if err := r.writeJSON(streamInbound{Type: frameRun, Source: source}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Unblock the read loop when the caller cancels.
	go func() {
		select {
		case <-ctx.Done():
			r.Cancel()
		case <-r.done:
		}
	}()

	go r.readLoop(ctx)
	return r, nil
}

// Events returns the ordered event stream. Closed after the run ends.
func (r *StreamRun) Events() <-chan artifact.Event { return r.events }

// Wait blocks until the run reaches its terminal frame (or the connection
// fails) and returns the final outcome.
func (r *StreamRun) Wait() (ExecResponse, error) {
	<-r.done
	return r.outcome, r.err
}

// Cancel signals the engine to stop the current run and closes the
// connection. Safe to call more than once.
func (r *StreamRun) Cancel() {
	r.cancelOnce.Do(func() {
		_ = r.writeJSON(streamInbound{Type: frameCancel})
		_ = r.conn.Close()
	})
}

func (r *StreamRun) readLoop(ctx context.Context) {
	defer close(r.done)
	defer close(r.events)
	defer r.conn.Close()

	for {
		_ = r.conn.SetReadDeadline(time.Now().Add(streamReadWait))
		var frame streamOutbound
		if err := r.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				r.err = ctx.Err()
			} else {
				r.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return
		}
		switch frame.Type {
		case frameEvent:
			ev := artifact.Event{
				Timestamp: frame.TS,
				Kind:      eventKind(frame.Kind),
				Payload:   frame.Payload,
			}
			select {
			case r.events <- ev:
			case <-ctx.Done():
				r.err = ctx.Err()
				return
			}
		case frameDone:
			r.outcome = ExecResponse{
				Success: frame.Success,
				Stdout:  frame.Stdout,
				Error:   frame.Error,
			}
			return
		default:
			// Unknown frames are skipped so protocol additions stay
			// backward compatible.
		}
	}
}

func (r *StreamRun) writeJSON(v any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return r.conn.WriteJSON(v)
}

func eventKind(kind string) artifact.EventKind {
	switch kind {
	case "figure":
		return artifact.EventFigure
	case "artifact":
		return artifact.EventArtifact
	default:
		return artifact.EventText
	}
}

func httpToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
