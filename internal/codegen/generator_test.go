package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"simagent/internal/artifact"
	"simagent/internal/llm"
	"simagent/internal/prompt"
)

func TestExtractCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"fenced with language",
			"Here you go:\n```matlab\nx = 1;\nplot(x)\n```\nHope that helps!",
			"x = 1;\nplot(x)",
		},
		{
			"fenced without language",
			"```\ny = 2;\n```",
			"y = 2;",
		},
		{
			"unclosed fence",
			"```matlab\nz = 3;\n",
			"z = 3;",
		},
		{
			"no fence means whole reply",
			"a = 4;\nb = a * 2;",
			"a = 4;\nb = a * 2;",
		},
		{
			"first block wins",
			"```matlab\nfirst = 1;\n```\ntext\n```matlab\nsecond = 2;\n```",
			"first = 1;",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractCode(tc.in); got != tc.want {
				t.Fatalf("ExtractCode = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGenerateFirstRevision(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.FakeResponse{
		{Text: "```matlab\nx = 1;\n```"},
	}}
	g := &Generator{LLM: fake}

	art, err := g.Generate(context.Background(), "payload", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if art.Source != "x = 1;" {
		t.Fatalf("source = %q", art.Source)
	}
	if art.Revision != 0 || art.Origin != artifact.OriginGenerated {
		t.Fatalf("artifact = %+v, want revision 0, origin generated", art)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(fake.Calls))
	}
}

func TestGenerateBumpsRevisionAfterPrior(t *testing.T) {
	prior := artifact.New("x = foo();", artifact.OriginGenerated)
	fake := &llm.FakeClient{Responses: []llm.FakeResponse{
		{Text: "```matlab\nx = bar();\n```"},
	}}
	g := &Generator{LLM: fake}

	art, err := g.Generate(context.Background(), "payload", &prior)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if art.Revision != 1 || art.Origin != artifact.OriginCorrected {
		t.Fatalf("artifact = %+v, want revision 1, origin corrected", art)
	}
}

func TestGenerateRepromptsOnceOnProseReply(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.FakeResponse{
		{Text: "   \n"},
		{Text: "```matlab\nx = 1;\n```"},
	}}
	g := &Generator{LLM: fake}

	art, err := g.Generate(context.Background(), "payload", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if art.Source != "x = 1;" {
		t.Fatalf("source = %q", art.Source)
	}
	if len(fake.Calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(fake.Calls))
	}
	if !strings.Contains(fake.Calls[1], prompt.StrictCodeOnly) {
		t.Fatalf("re-prompt missing strict instruction:\n%s", fake.Calls[1])
	}
}

func TestGenerateGivesUpAfterSecondEmptyReply(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.FakeResponse{
		{Err: llm.ErrNoContent},
		{Err: llm.ErrNoContent},
	}}
	g := &Generator{LLM: fake}

	_, err := g.Generate(context.Background(), "payload", nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
	if len(fake.Calls) != 2 {
		t.Fatalf("calls = %d, want exactly 2 (one re-prompt)", len(fake.Calls))
	}
}

func TestGenerateSurfacesProviderError(t *testing.T) {
	boom := errors.New("rate limited upstream")
	fake := &llm.FakeClient{Responses: []llm.FakeResponse{{Err: boom}}}
	g := &Generator{LLM: fake}

	_, err := g.Generate(context.Background(), "payload", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the provider error", err)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("provider errors must not trigger the strict re-prompt")
	}
}
