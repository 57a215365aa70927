// Package validate turns raw model output into trainer.Feedback. The schema is
// lenient and the shape is strict: only an unparseable document or a missing
// top-level key is rejected, everything else is corrected in place.
package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
)

const (
	MaxRewrites         = 3
	maxRewriteOriginal  = 500
	maxRewriteBetter    = 500
	maxRewriteWhy       = 300
	maxNextTaskText     = 500
	maxTemplateTitle    = 255
	maxTemplateContent  = 1000
	defaultScore        = 3
	defaultNextTaskText = "What specific improvements can you make to your text?"
)

var requiredKeys = []string{"scores", "error_tags", "rewrites", "next_task"}

// Result is Valid with a corrected Feedback, or Invalid with a Reason.
// Dropped lists what was clamped, dropped or defaulted.
type Result struct {
	Valid    bool
	Feedback trainer.Feedback
	Reason   string
	Dropped  []string
}

func invalid(reason string) Result { return Result{Reason: reason} }

// Validate runs parse, required keys, types, clamp/truncate and enum drop in
// that order. It is idempotent on already-valid output.
func Validate(raw string) Result {
	doc, err := parseObject(raw)
	if err != nil {
		return invalid("parse: " + err.Error())
	}
	for _, k := range requiredKeys {
		if _, ok := doc[k]; !ok {
			return invalid("missing required key: " + k)
		}
	}

	v := &validator{}
	fb := trainer.Feedback{
		Scores:          v.scores(doc["scores"]),
		ErrorTags:       v.errorTags(doc["error_tags"]),
		Rewrites:        v.rewrites(doc["rewrites"]),
		NextTask:        v.nextTask(doc["next_task"]),
		TemplatesToSave: v.templates(doc["templates_to_save"]),
	}
	return Result{Valid: true, Feedback: fb, Dropped: v.dropped}
}

// parseObject accepts a bare JSON object, optionally wrapped in a markdown
// fence or surrounded by prose.
func parseObject(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty output")
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found")
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type validator struct {
	dropped []string
}

func (v *validator) note(format string, args ...any) {
	v.dropped = append(v.dropped, fmt.Sprintf(format, args...))
}

func (v *validator) scores(raw any) trainer.Scores {
	m, ok := raw.(map[string]any)
	if !ok {
		v.note("scores: not an object, defaulted")
		m = map[string]any{}
	}
	vals := make(map[string]int, len(trainer.ScoreDimensions))
	for _, dim := range trainer.ScoreDimensions {
		n, ok := m[dim].(float64)
		if !ok {
			if _, present := m[dim]; present {
				v.note("scores.%s: not a number, defaulted", dim)
			}
			vals[dim] = defaultScore
			continue
		}
		clamped := n
		if clamped < 1 {
			clamped = 1
		} else if clamped > 5 {
			clamped = 5
		}
		score := int(clamped)
		if float64(score) != n {
			v.note("scores.%s: clamped %v to %d", dim, n, score)
		}
		vals[dim] = score
	}
	return trainer.Scores{
		Clarity:       vals["clarity"],
		Conciseness:   vals["conciseness"],
		Correctness:   vals["correctness"],
		Tone:          vals["tone"],
		Actionability: vals["actionability"],
	}
}

func (v *validator) errorTags(raw any) []string {
	out := []string{}
	list, ok := raw.([]any)
	if !ok {
		v.note("error_tags: not a list, emptied")
		return out
	}
	seen := map[string]bool{}
	for _, item := range list {
		tag, _ := item.(string)
		if !trainer.IsErrorTag(tag) {
			v.note("error_tags: dropped %v", item)
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func (v *validator) rewrites(raw any) []trainer.Rewrite {
	out := []trainer.Rewrite{}
	list, ok := raw.([]any)
	if !ok {
		v.note("rewrites: not a list, emptied")
		return out
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			v.note("rewrites: dropped non-object entry")
			continue
		}
		rw := trainer.Rewrite{
			Original: truncate(stringify(m["original"]), maxRewriteOriginal),
			Better:   truncate(stringify(m["better"]), maxRewriteBetter),
			Why:      truncate(stringify(m["why"]), maxRewriteWhy),
		}
		if rw.Better == "" {
			v.note("rewrites: dropped entry without better")
			continue
		}
		if len(out) == MaxRewrites {
			v.note("rewrites: truncated to %d", MaxRewrites)
			break
		}
		out = append(out, rw)
	}
	return out
}

func (v *validator) nextTask(raw any) trainer.NextTask {
	m, ok := raw.(map[string]any)
	if !ok {
		v.note("next_task: not an object, defaulted")
		return trainer.NextTask{Type: trainer.NextTaskFollowUpQuestion, Text: defaultNextTaskText}
	}
	nt := trainer.NextTask{
		Type: stringify(m["type"]),
		Text: truncate(stringify(m["text"]), maxNextTaskText),
	}
	if !trainer.IsNextTaskType(nt.Type) {
		v.note("next_task.type: %q replaced", nt.Type)
		nt.Type = trainer.NextTaskFollowUpQuestion
	}
	if nt.Text == "" {
		v.note("next_task.text: defaulted")
		nt.Text = defaultNextTaskText
	}
	return nt
}

func (v *validator) templates(raw any) []trainer.TemplateSuggestion {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []trainer.TemplateSuggestion
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ts := trainer.TemplateSuggestion{
			Title:   truncate(stringify(m["title"]), maxTemplateTitle),
			Content: truncate(stringify(m["content"]), maxTemplateContent),
		}
		if ts.Content == "" {
			v.note("templates_to_save: dropped entry without content")
			continue
		}
		out = append(out, ts)
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
