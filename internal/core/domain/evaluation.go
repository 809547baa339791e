package domain

// EvalCase is one question with its reference answer.
type EvalCase struct {
	Question  string `json:"question" yaml:"question"`
	Reference string `json:"answer" yaml:"answer"`
}

// EvalRecord is the outcome for one EvalCase.
type EvalRecord struct {
	Question  string  `json:"question"`
	Reference string  `json:"ground_truth"`
	Answer    string  `json:"answer"`
	Score     float64 `json:"score"`
	Failed    bool    `json:"failed,omitempty"`
}

// EvalReport aggregates a batch evaluation run.
type EvalReport struct {
	// Records holds one entry per case, in input order.
	Records []EvalRecord

	// Overall is the mean score, zero when there are no records.
	Overall float64
}
