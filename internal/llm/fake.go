package llm

import "context"

// FakeClient replays queued responses for offline use and tests. Each call
// consumes one entry; an entry with a non-nil Err fails the call instead.
type FakeClient struct {
	Responses []FakeResponse
	Calls     []string
}

// FakeResponse is one scripted reply.
type FakeResponse struct {
	Text string
	Err  error
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.Calls = append(f.Calls, prompt)
	if len(f.Responses) == 0 {
		return "", ErrNoContent
	}
	next := f.Responses[0]
	f.Responses = f.Responses[1:]
	if next.Err != nil {
		return "", next.Err
	}
	return next.Text, nil
}
