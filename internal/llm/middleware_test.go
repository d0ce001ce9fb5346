package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingClient struct {
	calls int
	fn    func(call int) (string, error)
}

func (c *countingClient) Name() string { return "counting" }
func (c *countingClient) Close() error { return nil }
func (c *countingClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	c.calls++
	return c.fn(c.calls)
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	inner := &countingClient{fn: func(call int) (string, error) {
		if call < 3 {
			return "", errors.New("temporarily overloaded")
		}
		return "ok", nil
	}}
	c := Wrap(inner, Retry(3, time.Millisecond))

	out, err := c.GenerateText(context.Background(), "p")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "ok" || inner.calls != 3 {
		t.Fatalf("out=%q calls=%d, want ok after 3 calls", out, inner.calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &countingClient{fn: func(int) (string, error) {
		return "", NewPermanentError(errors.New("invalid api key"))
	}}
	c := Wrap(inner, Retry(5, time.Millisecond))

	_, err := c.GenerateText(context.Background(), "p")
	var pErr *PermanentError
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want PermanentError", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, permanent errors must not be retried", inner.calls)
	}
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	boom := errors.New("still failing")
	inner := &countingClient{fn: func(int) (string, error) { return "", boom }}
	c := Wrap(inner, Retry(3, time.Millisecond))

	_, err := c.GenerateText(context.Background(), "p")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want last error", err)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	inner := &countingClient{fn: func(int) (string, error) { return "ok", nil }}
	c := Wrap(inner, RateLimit(0, 0))
	for i := 0; i < 5; i++ {
		if _, err := c.GenerateText(context.Background(), "p"); err != nil {
			t.Fatalf("GenerateText: %v", err)
		}
	}
	if inner.calls != 5 {
		t.Fatalf("calls = %d, want 5", inner.calls)
	}
}

func TestRateLimitHonorsContext(t *testing.T) {
	inner := &countingClient{fn: func(int) (string, error) { return "ok", nil }}
	c := Wrap(inner, RateLimit(0.1, 1))
	defer c.Close()

	// First call consumes the burst token.
	if _, err := c.GenerateText(context.Background(), "p"); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GenerateText(ctx, "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded while throttled", err)
	}
	if inner.calls != 1 {
		t.Fatalf("throttled call must not reach the inner client")
	}
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mk := func(tag string) Middleware {
		return func(next Client) Client {
			return &tagged{next: next, tag: tag, order: &order}
		}
	}
	inner := &countingClient{fn: func(int) (string, error) { return "ok", nil }}
	c := Wrap(inner, mk("outer"), mk("inner"))

	if _, err := c.GenerateText(context.Background(), "p"); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("order = %v, want [outer inner]", order)
	}
}

type tagged struct {
	next  Client
	tag   string
	order *[]string
}

func (w *tagged) Name() string { return w.next.Name() }
func (w *tagged) Close() error { return w.next.Close() }
func (w *tagged) GenerateText(ctx context.Context, prompt string) (string, error) {
	*w.order = append(*w.order, w.tag)
	return w.next.GenerateText(ctx, prompt)
}

func TestFakeClientExhausted(t *testing.T) {
	f := &FakeClient{}
	_, err := f.GenerateText(context.Background(), "p")
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent when the queue is empty", err)
	}
}
