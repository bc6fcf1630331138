package modules

import (
	"fmt"
	"strings"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// DefaultAlpha is the significance level used when the input leaves it unset.
const DefaultAlpha = 0.05

// Coefficient is one row of a fitted model's coefficient table.
type Coefficient struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"stdError"`
	CILower  float64 `json:"ciLower"`
	CIUpper  float64 `json:"ciUpper"`
	PValue   float64 `json:"pValue"`
}

// InterpretationInput is the input of the interpretation module.
type InterpretationInput struct {
	TestName      string        `json:"testName"`
	OutcomeLabel  string        `json:"outcomeLabel"`
	ExposureLabel string        `json:"exposureLabel"`
	Coefficients  []Coefficient `json:"coefficients"`
	SampleSize    int           `json:"sampleSize"`
	Alpha         float64       `json:"alpha,omitempty"`
}

func (in InterpretationInput) alpha() float64 {
	if in.Alpha <= 0 || in.Alpha >= 1 {
		return DefaultAlpha
	}
	return in.Alpha
}

// InterpretationResult is the structured output of the interpretation module.
type InterpretationResult struct {
	PlainLanguage         string   `json:"plainLanguage"`
	AcademicSentence      string   `json:"academicSentence"`
	SignificanceStatement string   `json:"significanceStatement"`
	Caveats               []string `json:"caveats"`
	// PrimaryTerm is the coefficient the interpretation is about. It is
	// selected locally, never taken from the service.
	PrimaryTerm string `json:"primaryTerm"`
}

const interpretationSystem = `You are a biostatistician explaining a model result to two audiences.
Write one plain-language explanation a non-specialist can follow, one sentence suitable for
the results section of a journal article (estimate, 95% CI and p-value), and a statement on
statistical significance at the given alpha. Do not overstate causality.

Response schema:
{
  "plainLanguage": string,
  "academicSentence": string,
  "significanceStatement": string,
  "caveats": [string],
  "confidence": "high|medium|low",
  "warnings": [string]
}`

// PrimaryCoefficient selects the coefficient that corresponds to the exposure:
// a case-insensitive exact match on the term, then a term containing the
// label, then the first coefficient. It reports false for an empty table.
func PrimaryCoefficient(in InterpretationInput) (Coefficient, bool) {
	if len(in.Coefficients) == 0 {
		return Coefficient{}, false
	}
	label := strings.ToLower(strings.TrimSpace(in.ExposureLabel))
	if label != "" {
		for _, c := range in.Coefficients {
			if strings.ToLower(strings.TrimSpace(c.Term)) == label {
				return c, true
			}
		}
		for _, c := range in.Coefficients {
			if strings.Contains(strings.ToLower(c.Term), label) {
				return c, true
			}
		}
	}
	return in.Coefficients[0], true
}

type interpretationFingerprint struct {
	TestName      string        `json:"testName"`
	OutcomeLabel  string        `json:"outcomeLabel"`
	ExposureLabel string        `json:"exposureLabel"`
	Alpha         float64       `json:"alpha"`
	Coefficients  []Coefficient `json:"coefficients"`
}

// Interpretation turns a fitted coefficient into plain-language and academic text.
func Interpretation() module.Definition[InterpretationInput, InterpretationResult] {
	return module.Definition[InterpretationInput, InterpretationResult]{
		ID:              module.Interpretation,
		Name:            "Interpretation",
		MaxOutputTokens: 1500,
		System:          interpretationSystem,
		Prompt:          interpretationPrompt,
		Hash: func(in InterpretationInput) any {
			return interpretationFingerprint{
				TestName:      in.TestName,
				OutcomeLabel:  in.OutcomeLabel,
				ExposureLabel: in.ExposureLabel,
				Alpha:         in.alpha(),
				Coefficients:  in.Coefficients,
			}
		},
		Normalize: normalizeInterpretation,
		Format:    formatInterpretation,
	}
}

func interpretationPrompt(in InterpretationInput) string {
	p := newPrompt("Interpret this result.")
	p.field("Test", in.TestName)
	p.field("Outcome", in.OutcomeLabel)
	p.field("Exposure", in.ExposureLabel)
	if in.SampleSize > 0 {
		p.field("Sample size", in.SampleSize)
	}
	p.field("Alpha", in.alpha())
	if c, ok := PrimaryCoefficient(in); ok {
		p.field("Term", c.Term)
		p.field("Estimate", c.Estimate)
		p.field("Standard error", c.StdError)
		p.field("95% CI", fmt.Sprintf("%g to %g", c.CILower, c.CIUpper))
		p.field("p-value", c.PValue)
		if others := len(in.Coefficients) - 1; others > 0 {
			p.field("Other coefficients in the model", others)
		}
	} else {
		p.field("Coefficients", "none reported")
	}
	return p.String()
}

func normalizeInterpretation(raw module.Raw, fallback string, in InterpretationInput) InterpretationResult {
	res := InterpretationResult{
		PlainLanguage:         raw.String("plainLanguage", fallback),
		AcademicSentence:      raw.String("academicSentence", ""),
		SignificanceStatement: raw.String("significanceStatement", ""),
		Caveats:               raw.Strings("caveats"),
	}
	if c, ok := PrimaryCoefficient(in); ok {
		res.PrimaryTerm = c.Term
	}
	return res
}

func formatInterpretation(s InterpretationResult) string {
	var d module.Doc
	d.Title("Interpretation")
	d.Field("Term", s.PrimaryTerm)
	d.Section("Plain Language", s.PlainLanguage)
	d.Section("Academic Sentence", s.AcademicSentence)
	d.Section("Significance", s.SignificanceStatement)
	d.List("Caveats", s.Caveats)
	return d.String()
}
