package validate

import "github.com/yungbote/english-trainer-backend/internal/domain/trainer"

// Fallback is the canned feedback stored when generation cannot produce a
// usable answer. It is never user-authored beyond the echoed input prefix.
func Fallback(input string) trainer.Feedback {
	return trainer.Feedback{
		Scores:    trainer.Scores{Clarity: 3, Conciseness: 3, Correctness: 3, Tone: 3, Actionability: 3},
		ErrorTags: []string{},
		Rewrites: []trainer.Rewrite{{
			Original: truncate(input, 100),
			Better:   "We encountered an issue analyzing your text. Please try again.",
			Why:      "System is temporarily unable to provide detailed feedback.",
		}},
		NextTask: trainer.NextTask{
			Type: trainer.NextTaskFollowUpQuestion,
			Text: "Please try submitting your text again.",
		},
	}
}
