package provider

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
)

// MockGenerator produces well-formed feedback from simple input heuristics.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) GenerateStructured(ctx context.Context, prompt, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Timeout(err)
	}
	input := ExtractUserInput(prompt)

	tags := []string{}
	if len(input) < 50 {
		tags = append(tags, trainer.TagTooVague)
	}
	if len(input) > 500 {
		tags = append(tags, trainer.TagTooLong)
	}
	if !strings.Contains(input, "%") && !strings.Contains(strings.ToLower(input), "number") {
		tags = append(tags, trainer.TagMissingMetric)
	}

	original := input
	if r := []rune(original); len(r) > 100 {
		original = string(r[:100]) + "..."
	}
	fb := trainer.Feedback{
		Scores:    trainer.Scores{Clarity: 3, Conciseness: 4, Correctness: 3, Tone: 4, Actionability: 3},
		ErrorTags: tags,
		Rewrites: []trainer.Rewrite{{
			Original: original,
			Better:   "[Improved version of your text would appear here]",
			Why:      "This rewrite adds specific metrics and clearer impact statement.",
		}},
		NextTask: trainer.NextTask{
			Type: trainer.NextTaskFollowUpQuestion,
			Text: "What specific metrics or outcomes can you add to strengthen your statement?",
		},
		TemplatesToSave: []trainer.TemplateSuggestion{{
			Title:   "Impact Statement Template",
			Content: "I [action] which resulted in [metric] improvement in [area].",
		}},
	}
	raw, err := json.Marshal(fb)
	if err != nil {
		return "", Failure(err)
	}
	return string(raw), nil
}

const userInputFence = "\n---\n"

// ExtractUserInput returns the fenced user text of an assembled prompt, or the
// whole prompt when no fence is present.
func ExtractUserInput(prompt string) string {
	start := strings.Index(prompt, userInputFence)
	if start < 0 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[start+len(userInputFence):]
	end := strings.Index(rest, userInputFence)
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// MockEmbedder hashes lowercase word tokens into a unit-length bag-of-words
// vector, so texts sharing words land close under cosine similarity.
type MockEmbedder struct {
	Dim int
}

func NewMockEmbedder() *MockEmbedder { return &MockEmbedder{Dim: kb.EmbeddingDim} }

func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, Failure(err)
	}
	dim := e.Dim
	if dim <= 0 {
		dim = kb.EmbeddingDim
	}
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32()%uint32(dim))] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
