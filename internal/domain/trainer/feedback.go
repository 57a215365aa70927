package trainer

// Feedback is the validated turn payload returned to the presentation layer.
type Feedback struct {
	Scores          Scores               `json:"scores"`
	ErrorTags       []string             `json:"error_tags"`
	Rewrites        []Rewrite            `json:"rewrites"`
	NextTask        NextTask             `json:"next_task"`
	TemplatesToSave []TemplateSuggestion `json:"templates_to_save,omitempty"`
}

type Scores struct {
	Clarity       int `json:"clarity"`
	Conciseness   int `json:"conciseness"`
	Correctness   int `json:"correctness"`
	Tone          int `json:"tone"`
	Actionability int `json:"actionability"`
}

type Rewrite struct {
	Original string `json:"original"`
	Better   string `json:"better"`
	Why      string `json:"why"`
}

type NextTask struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type TemplateSuggestion struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Intent is the structured retrieval intent derived from raw input.
type Intent struct {
	Scenario       string   `json:"scenario"`
	Track          string   `json:"track"`
	Subskills      []string `json:"subskills"`
	RetrievalQuery string   `json:"retrieval_query"`
}
