// Package engine is the client for the external numerical-engine
// collaborator. The engine is a single long-lived resource shared across
// sessions: executions against one handle are serialized, never
// interleaved.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable indicates the engine collaborator could not be reached.
// Distinct from an engine-reported runtime error, which is part of a
// normal response.
var ErrUnavailable = errors.New("engine: unavailable")

// Handle wraps the shared engine resource with explicit acquire/release
// semantics: at most one lease is outstanding at a time.
type Handle struct {
	client *Client
	sem    chan struct{}
}

func NewHandle(client *Client) *Handle {
	return &Handle{client: client, sem: make(chan struct{}, 1)}
}

// Acquire blocks until the engine is free or the context is canceled.
func (h *Handle) Acquire(ctx context.Context) (*Lease, error) {
	if h == nil {
		return nil, fmt.Errorf("engine: handle is nil")
	}
	select {
	case h.sem <- struct{}{}:
		return &Lease{h: h}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire is the non-blocking variant; it reports false when the engine
// is held by another execution.
func (h *Handle) TryAcquire() (*Lease, bool) {
	if h == nil {
		return nil, false
	}
	select {
	case h.sem <- struct{}{}:
		return &Lease{h: h}, true
	default:
		return nil, false
	}
}

// Lease is exclusive access to the engine until released.
type Lease struct {
	h    *Handle
	once sync.Once
}

// Client returns the engine client owned by the lease.
func (l *Lease) Client() *Client { return l.h.client }

// Release returns the engine to the pool. Idempotent.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() { <-l.h.sem })
}
