package trainer

const (
	ScenarioProjectPitch = "project_pitch"
	ScenarioPRIssue      = "pr_issue"

	TrackJobSearch = "job_search"
	TrackWorkplace = "workplace"

	LevelIntern = "intern"
	LevelJunior = "junior"
	LevelMid    = "mid"

	TurnStatusSuccess  = "success"
	TurnStatusError    = "error"
	TurnStatusFallback = "fallback"

	NextTaskFollowUpQuestion = "follow_up_question"
	NextTaskRewriteExercise  = "rewrite_exercise"
	NextTaskNewScenario      = "new_scenario"
)

// Controlled error tag vocabulary.
const (
	TagTooVague              = "too_vague"
	TagTooLong               = "too_long"
	TagMissingMetric         = "missing_metric"
	TagMissingRole           = "missing_role"
	TagMissingImpact         = "missing_impact"
	TagMissingNextStep       = "missing_next_step"
	TagWeakTradeoff          = "weak_tradeoff"
	TagToneTooDirect         = "tone_too_direct"
	TagToneTooSoft           = "tone_too_soft"
	TagUnclearRequest        = "unclear_request"
	TagUnclearExpectedActual = "unclear_expected_actual"
)

// ErrorTags lists the vocabulary in prompt order.
var ErrorTags = []string{
	TagTooVague,
	TagTooLong,
	TagMissingMetric,
	TagMissingRole,
	TagMissingImpact,
	TagMissingNextStep,
	TagWeakTradeoff,
	TagToneTooDirect,
	TagToneTooSoft,
	TagUnclearRequest,
	TagUnclearExpectedActual,
}

// ScoreDimensions lists the five feedback scores in wire order.
var ScoreDimensions = []string{"clarity", "conciseness", "correctness", "tone", "actionability"}

var (
	errorTagSet = toSet(ErrorTags)
	scenarioSet = toSet([]string{ScenarioProjectPitch, ScenarioPRIssue})
	trackSet    = toSet([]string{TrackJobSearch, TrackWorkplace})
	levelSet    = toSet([]string{LevelIntern, LevelJunior, LevelMid})
	nextTaskSet = toSet([]string{NextTaskFollowUpQuestion, NextTaskRewriteExercise, NextTaskNewScenario})
)

func IsErrorTag(s string) bool     { return errorTagSet[s] }
func IsScenario(s string) bool     { return scenarioSet[s] }
func IsTrack(s string) bool        { return trackSet[s] }
func IsLevel(s string) bool        { return levelSet[s] }
func IsNextTaskType(s string) bool { return nextTaskSet[s] }

func toSet(vals []string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		out[v] = true
	}
	return out
}
