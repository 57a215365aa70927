// Package intent turns raw learner input into a retrieval intent using
// deterministic keyword rules keyed by scenario.
package intent

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
)

const maxQueryRunes = 200

// Subskill identifiers shared with curated card tags.
const (
	SubskillProblemStatement = "problem_statement"
	SubskillRole             = "role"
	SubskillImpactStatement  = "impact_statement"
	SubskillMetrics          = "metrics"
	SubskillTradeOff         = "trade_off"
	SubskillBugReport        = "bug_report"
	SubskillCodeReview       = "code_review"
	SubskillRequest          = "request"
	SubskillNextStep         = "next_step"
	SubskillTone             = "tone"
)

type rule struct {
	subskill string
	keywords []string
	pattern  *regexp.Regexp
}

var numberPattern = regexp.MustCompile(`\d+(\.\d+)?\s*(%|ms|s\b|x\b|k\b|users|requests|rps|qps)`)

var rulesByScenario = map[string][]rule{
	trainer.ScenarioProjectPitch: {
		{subskill: SubskillProblemStatement, keywords: []string{"problem", "pain point", "challenge", "struggled", "bottleneck"}},
		{subskill: SubskillRole, keywords: []string{"i led", "i owned", "my role", "i was responsible", "i designed", "i built", "i implemented"}},
		{subskill: SubskillImpactStatement, keywords: []string{"impact", "result", "improved", "reduced", "increased", "saved", "enabled"}},
		{subskill: SubskillMetrics, keywords: []string{"metric", "latency", "throughput", "percent"}, pattern: numberPattern},
		{subskill: SubskillTradeOff, keywords: []string{"trade-off", "tradeoff", "instead of", "chose", "versus", " vs "}},
	},
	trainer.ScenarioPRIssue: {
		{subskill: SubskillBugReport, keywords: []string{"bug", "crash", "fails", "failing", "broken", "expected", "actual", "repro", "stack trace"}},
		{subskill: SubskillCodeReview, keywords: []string{"review", " nit ", "nit:", "lgtm", "approve", "refactor", "this pr", "this change"}},
		{subskill: SubskillRequest, keywords: []string{"can you", "could you", "would you", "please", "need you to"}},
		{subskill: SubskillNextStep, keywords: []string{"next step", "follow up", "follow-up", "todo", "action item", "will fix"}},
		{subskill: SubskillTone, keywords: []string{"wrong", " bad ", "must", "obviously", "why did you", "sorry"}},
	},
}

// Normalizer is stateless and safe for concurrent use.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize never fails. Unknown scenarios and ambiguous input yield an empty
// subskill set; RetrievalQuery is non-empty whenever raw has visible text.
func (n *Normalizer) Normalize(sess *trainer.TrainingSession, raw string) trainer.Intent {
	var scenario, track string
	if sess != nil {
		scenario, track = sess.Scenario, sess.Track
	}
	collapsed := strings.Join(strings.Fields(raw), " ")
	lower := " " + strings.ToLower(collapsed) + " "

	subskills := []string{}
	for _, r := range rulesByScenario[scenario] {
		if matches(r, lower) {
			subskills = append(subskills, r.subskill)
		}
	}
	sort.Strings(subskills)

	return trainer.Intent{
		Scenario:       scenario,
		Track:          track,
		Subskills:      subskills,
		RetrievalQuery: buildQuery(subskills, collapsed),
	}
}

func matches(r rule, lower string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return r.pattern != nil && r.pattern.MatchString(lower)
}

func buildQuery(subskills []string, collapsed string) string {
	parts := make([]string, 0, len(subskills)+1)
	for _, s := range subskills {
		parts = append(parts, strings.ReplaceAll(s, "_", " "))
	}
	if r := []rune(collapsed); len(r) > maxQueryRunes {
		collapsed = string(r[:maxQueryRunes])
	}
	if collapsed != "" {
		parts = append(parts, collapsed)
	}
	return strings.Join(parts, " ")
}
