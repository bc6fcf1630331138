package module

// Output is the dual-shaped result of one module run.
//
// Every field is always populated: Structured is fully defaulted by the module's
// normalizer, Formatted is derived from it, Confidence is one of the three labels
// and Warnings is an empty slice rather than nil.
type Output[S any] struct {
	Structured S          `json:"structured"`
	Formatted  string     `json:"formatted"`
	Confidence Confidence `json:"confidence"`
	Warnings   []string   `json:"warnings"`
}

// Complete reports whether the envelope fields are populated.
func (o Output[S]) Complete() bool {
	if o.Warnings == nil {
		return false
	}
	_, ok := ParseConfidence(string(o.Confidence))
	return ok
}
