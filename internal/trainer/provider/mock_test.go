package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
)

func TestMockGeneratorFlagsMissingMetric(t *testing.T) {
	prompt := "## User Input\n\n---\nBuilt a thing, it was good\n---\n\n## Output Requirements"
	raw, err := NewMockGenerator().GenerateStructured(context.Background(), prompt, "")
	if err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	var fb trainer.Feedback
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]bool{trainer.TagTooVague: true, trainer.TagMissingMetric: true}
	if len(fb.ErrorTags) != len(want) {
		t.Fatalf("error tags: want=%v got=%v", want, fb.ErrorTags)
	}
	for _, tag := range fb.ErrorTags {
		if !want[tag] {
			t.Fatalf("unexpected tag %q in %v", tag, fb.ErrorTags)
		}
	}
}

func TestMockGeneratorAcceptsPercent(t *testing.T) {
	prompt := "## User Input\n---\nReduced p95 latency by 40% after moving the cache next to the API workers\n---\n"
	raw, err := NewMockGenerator().GenerateStructured(context.Background(), prompt, "")
	if err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	var fb trainer.Feedback
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, tag := range fb.ErrorTags {
		if tag == trainer.TagMissingMetric {
			t.Fatalf("missing_metric should not be flagged: %v", fb.ErrorTags)
		}
	}
}

func TestMockGeneratorHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockGenerator().GenerateStructured(ctx, "x", "")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExtractUserInput(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "no fence", want: "no fence"},
		{in: "a\n---\nb\n---\nc", want: "b"},
		{in: "a\n---\nopen", want: "open"},
	}
	for _, tc := range cases {
		if got := ExtractUserInput(tc.in); got != tc.want {
			t.Fatalf("ExtractUserInput(%q): want=%q got=%q", tc.in, tc.want, got)
		}
	}
}

func TestMockEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e := NewMockEmbedder()
	a, err := e.EmbedText(context.Background(), "Fix the flaky login test")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	b, _ := e.EmbedText(context.Background(), "fix the FLAKY login test")
	if len(a) != 1536 {
		t.Fatalf("dim: want=1536 got=%d", len(a))
	}
	var dot float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d", i)
		}
		dot += float64(a[i]) * float64(a[i])
	}
	if dot < 0.999 || dot > 1.001 {
		t.Fatalf("norm: want=1 got=%v", dot)
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(Timeout(errors.New("slow"))) {
		t.Fatalf("wrapped timeout not detected")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatalf("deadline not detected")
	}
	if IsTimeout(Failure(errors.New("500"))) {
		t.Fatalf("provider failure reported as timeout")
	}
}
