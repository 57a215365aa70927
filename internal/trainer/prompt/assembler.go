// Package prompt assembles generation prompts. Every function here is pure.
package prompt

import (
	"fmt"
	"strings"

	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/trainer/retrieval"
)

const (
	MaxCardRunes = 600
	MaxCards     = 8
)

type Prompt struct {
	Text         string
	OutputSchema string
}

var scenarioPrompts = map[string]string{
	trainer.ScenarioProjectPitch: projectPitchPrompt,
	trainer.ScenarioPRIssue:      prIssuePrompt,
}

// Build renders rubric, scenario, level, focus, reference cards, user input
// and output rules in that order. Card text is capped per card and by count so
// the prompt size does not grow with the bundle.
func Build(sess *trainer.TrainingSession, raw string, in trainer.Intent, b retrieval.Bundle) Prompt {
	parts := []string{systemPrompt}
	if sp := scenarioPrompts[sessionScenario(sess, in)]; sp != "" {
		parts = append(parts, sp)
	}
	if sess != nil && sess.Level != "" {
		parts = append(parts, fmt.Sprintf(levelTemplate, sess.Level))
	}
	if len(in.Subskills) > 0 {
		parts = append(parts, "## Focus\n\nThe text appears to address: "+strings.Join(in.Subskills, ", ")+".")
	}
	if refs := referenceSection(b.Merged); refs != "" {
		parts = append(parts, refs)
	}
	parts = append(parts, userInputSection(raw), outputRequirements)
	return Prompt{Text: strings.Join(parts, "\n\n"), OutputSchema: OutputSchema}
}

// Simplified keeps only the rubric, the user input and the output rules. It
// is used for the retry after a generation timeout.
func Simplified(raw string) Prompt {
	return Prompt{
		Text:         strings.Join([]string{systemPrompt, userInputSection(raw), outputRequirements}, "\n\n"),
		OutputSchema: OutputSchema,
	}
}

// Strict appends the JSON-only correction used after an unparseable answer.
func Strict(p Prompt) Prompt {
	return Prompt{Text: p.Text + "\n\n" + strictInstruction, OutputSchema: p.OutputSchema}
}

func sessionScenario(sess *trainer.TrainingSession, in trainer.Intent) string {
	if sess != nil && sess.Scenario != "" {
		return sess.Scenario
	}
	return in.Scenario
}

func referenceSection(cards []retrieval.Card) string {
	if len(cards) == 0 {
		return ""
	}
	if len(cards) > MaxCards {
		cards = cards[:MaxCards]
	}
	var sb strings.Builder
	sb.WriteString("## Reference Materials\n")
	for _, c := range cards {
		sb.WriteString("\n### ")
		sb.WriteString(strings.TrimSpace(c.Title))
		sb.WriteString("\n")
		sb.WriteString(truncateRunes(strings.TrimSpace(c.Content), MaxCardRunes))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func userInputSection(raw string) string {
	return "## User Input\n\nPlease analyze the following text and provide structured feedback:\n\n---\n" +
		strings.TrimSpace(raw) + "\n---"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
