package domain

type InferenceSignal struct {
	RuleName       string  `json:"rule_name"`
	FieldName      string  `json:"field_name"`
	InferredValue  any     `json:"inferred_value"`
	Confidence     float64 `json:"confidence"`
	Evidence       string  `json:"evidence,omitempty"`
	RequiresReview bool    `json:"requires_review"`
}

// RuleFailure records an inference rule that errored or panicked; the rest of
// the batch still ran.
type RuleFailure struct {
	RuleName string `json:"rule_name"`
	Message  string `json:"message"`
}
