package tiebreak

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shelfpair/internal/insight"
	"shelfpair/internal/logging"
)

type stubCompleter struct {
	content string
	err     error
	prompts []string
}

func (s *stubCompleter) CompleteJSON(_ context.Context, _ string, userPrompt string) (string, error) {
	s.prompts = append(s.prompts, userPrompt)
	return s.content, s.err
}

func testJudge(c completer) *Judge {
	return NewJudge(nil, 40, logging.NewNop(), WithCompleter(c))
}

func TestResolveSelectsCandidate(t *testing.T) {
	stub := &stubCompleter{content: `{"selectedIndex": 1}`}
	judge := testJudge(stub)

	idx, err := judge.Resolve(context.Background(), insight.ImageInsight{Key: "f"}, []insight.ImageInsight{
		{Key: "b0"}, {Key: "b1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
}

func TestResolveHandlesFencedJSON(t *testing.T) {
	stub := &stubCompleter{content: "```json\n{\"selectedIndex\": 0}\n```"}
	judge := testJudge(stub)

	idx, err := judge.Resolve(context.Background(), insight.ImageInsight{}, []insight.ImageInsight{{Key: "b0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
}

func TestResolveNoMatch(t *testing.T) {
	stub := &stubCompleter{content: `{"selectedIndex": -1}`}
	judge := testJudge(stub)

	idx, err := judge.Resolve(context.Background(), insight.ImageInsight{}, []insight.ImageInsight{{Key: "b0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != NoMatch {
		t.Fatalf("expected NoMatch, got %d", idx)
	}
}

func TestResolveOutOfRangeIndexTreatedAsNoMatch(t *testing.T) {
	stub := &stubCompleter{content: `{"selectedIndex": 7}`}
	judge := testJudge(stub)

	idx, err := judge.Resolve(context.Background(), insight.ImageInsight{}, []insight.ImageInsight{{Key: "b0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != NoMatch {
		t.Fatalf("expected NoMatch for out-of-range index, got %d", idx)
	}
}

func TestResolveCompletionError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("model unavailable")}
	judge := testJudge(stub)

	if _, err := judge.Resolve(context.Background(), insight.ImageInsight{}, []insight.ImageInsight{{Key: "b0"}}); err == nil {
		t.Fatal("expected error from failing completer")
	}
}

func TestResolveTruncatesCandidateText(t *testing.T) {
	stub := &stubCompleter{content: `{"selectedIndex": 0}`}
	judge := testJudge(stub)

	long := strings.Repeat("ingredient ", 50)
	if _, err := judge.Resolve(context.Background(), insight.ImageInsight{Key: "f"}, []insight.ImageInsight{
		{Key: "b0", ExtractedText: long},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stub.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(stub.prompts))
	}
	if strings.Contains(stub.prompts[0], long) {
		t.Fatal("expected candidate text truncated in prompt")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	judge := testJudge(&stubCompleter{})

	text := strings.Repeat("é", 60)
	got := judge.truncate(text)
	if len([]rune(got)) != 40 {
		t.Fatalf("expected 40 runes, got %d", len([]rune(got)))
	}
	for _, r := range got {
		if r != 'é' {
			t.Fatalf("truncation mangled a rune: %q", got)
		}
	}
}

func TestResolveOmitsUnknownBrandFromPrompt(t *testing.T) {
	stub := &stubCompleter{content: `{"selectedIndex": 0}`}
	judge := testJudge(stub)

	if _, err := judge.Resolve(context.Background(), insight.ImageInsight{Key: "f", Brand: "unknown"}, []insight.ImageInsight{
		{Key: "b0", Brand: "Acme Naturals"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stub.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(stub.prompts))
	}
	if strings.Contains(stub.prompts[0], "brand: unknown") {
		t.Fatal("expected unknown brand kept out of the prompt")
	}
	if !strings.Contains(stub.prompts[0], "brand: Acme Naturals") {
		t.Fatal("expected real candidate brand in the prompt")
	}
}

func TestResolveEmptyCandidates(t *testing.T) {
	stub := &stubCompleter{}
	judge := testJudge(stub)

	idx, err := judge.Resolve(context.Background(), insight.ImageInsight{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != NoMatch {
		t.Fatalf("expected NoMatch for empty candidates, got %d", idx)
	}
	if len(stub.prompts) != 0 {
		t.Fatal("expected no completion call for empty candidates")
	}
}
