package insight_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"shelfpair/internal/insight"
	"shelfpair/internal/logging"
	"shelfpair/internal/services/llm"
	"shelfpair/internal/testsupport"
)

type stubVision struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	respond  func(images []llm.ImagePart) (string, error)
}

func (s *stubVision) CompleteVisionJSON(_ context.Context, _, _ string, images []llm.ImagePart) (string, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	return s.respond(images)
}

func insightJSON(role, brand string, confidence float64) string {
	return fmt.Sprintf(`{"role":%q,"brand":%q,"product":"Collagen Peptides","confidence":%g}`, role, brand, confidence)
}

func TestClassifySortsByKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := &stubVision{respond: func(images []llm.ImagePart) (string, error) {
		return insightJSON("front", "Thorne", 0.9), nil
	}}
	classifier := insight.NewClassifier(cfg, logging.NewNop(), insight.WithCompleter(stub))

	sources := []insight.SourceImage{
		{Key: "zebra.jpg", DataURL: "data:image/jpeg;base64,QUFB"},
		{Key: "apple.jpg", DataURL: "data:image/jpeg;base64,QUFB"},
	}
	insights, err := classifier.Classify(context.Background(), sources)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	if insights[0].Key != "apple.jpg" || insights[1].Key != "zebra.jpg" {
		t.Fatalf("insights not sorted by key: %q, %q", insights[0].Key, insights[1].Key)
	}
	if insights[0].Role != insight.RoleFront {
		t.Fatalf("unexpected role %q", insights[0].Role)
	}
}

func TestClassifyErrorNamesImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := &stubVision{respond: func(images []llm.ImagePart) (string, error) {
		return "", errors.New("model unavailable")
	}}
	classifier := insight.NewClassifier(cfg, logging.NewNop(), insight.WithCompleter(stub))

	_, err := classifier.Classify(context.Background(), []insight.SourceImage{
		{Key: "front-1.jpg", DataURL: "data:image/jpeg;base64,QUFB"},
	})
	if err == nil {
		t.Fatal("expected classification error")
	}
	if !strings.Contains(err.Error(), "front-1.jpg") {
		t.Fatalf("error does not name the image: %v", err)
	}
}

func TestClassifyRejectsMissingData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := &stubVision{respond: func(images []llm.ImagePart) (string, error) {
		return insightJSON("front", "Thorne", 0.9), nil
	}}
	classifier := insight.NewClassifier(cfg, logging.NewNop(), insight.WithCompleter(stub))

	_, err := classifier.Classify(context.Background(), []insight.SourceImage{{Key: "empty.jpg"}})
	if err == nil {
		t.Fatal("expected error for image without data")
	}
}

func TestClassifyBoundsConcurrency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Classifier.MaxConcurrent = 2

	release := make(chan struct{})
	stub := &stubVision{respond: func(images []llm.ImagePart) (string, error) {
		<-release
		return insightJSON("back", "Thorne", 0.8), nil
	}}
	classifier := insight.NewClassifier(cfg, logging.NewNop(), insight.WithCompleter(stub))

	sources := make([]insight.SourceImage, 6)
	for i := range sources {
		sources[i] = insight.SourceImage{
			Key:     fmt.Sprintf("img-%d.jpg", i),
			DataURL: "data:image/jpeg;base64,QUFB",
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := classifier.Classify(context.Background(), sources); err != nil {
			t.Errorf("Classify: %v", err)
		}
	}()
	close(release)
	<-done

	stub.mu.Lock()
	peak := stub.peak
	stub.mu.Unlock()
	if peak > 2 {
		t.Fatalf("expected at most 2 in-flight calls, saw %d", peak)
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := &stubVision{respond: func(images []llm.ImagePart) (string, error) {
		return insightJSON("front", "Thorne", 1.7), nil
	}}
	classifier := insight.NewClassifier(cfg, logging.NewNop(), insight.WithCompleter(stub))

	insights, err := classifier.Classify(context.Background(), []insight.SourceImage{
		{Key: "front-1.jpg", DataURL: "data:image/jpeg;base64,QUFB"},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if insights[0].Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %g", insights[0].Confidence)
	}
}

func TestParseRoleDefaultsToOther(t *testing.T) {
	if got := insight.ParseRole("  Front "); got != insight.RoleFront {
		t.Fatalf("expected front, got %q", got)
	}
	if got := insight.ParseRole("packaging shot"); got != insight.RoleOther {
		t.Fatalf("expected other, got %q", got)
	}
}
