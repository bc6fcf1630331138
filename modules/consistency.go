package modules

import (
	"fmt"
	"strings"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// Inconsistency severities.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// severityOrder is the order inconsistencies are listed in.
var severityOrder = []string{SeverityCritical, SeverityMajor, SeverityMinor}

// ReportedValue is a labelled statistic, as reported or as computed.
type ReportedValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ConsistencyInput is the input of the consistency checker.
type ConsistencyInput struct {
	SubmissionTitle    string          `json:"submissionTitle,omitempty"`
	ManuscriptExcerpt  string          `json:"manuscriptExcerpt"`
	Reported           []ReportedValue `json:"reported"`
	Computed           []ReportedValue `json:"computed"`
	ReportedSampleSize int             `json:"reportedSampleSize"`
	AnalyzedSampleSize int             `json:"analyzedSampleSize"`
}

// Inconsistency is one mismatch between the manuscript and the computed results.
type Inconsistency struct {
	Location    string `json:"location"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Reported    string `json:"reported"`
	Computed    string `json:"computed"`
}

// ConsistencyResult is the structured output of the consistency checker.
type ConsistencyResult struct {
	// Passed is true only when the service said so explicitly.
	Passed               bool            `json:"passed"`
	Inconsistencies      []Inconsistency `json:"inconsistencies"`
	ReproducibilityScore float64         `json:"reproducibilityScore"`
	ScoreProvided        bool            `json:"scoreProvided"`
	Summary              string          `json:"summary"`
}

const consistencySystem = `You are a statistical reviewer checking a manuscript submission against
the results recomputed from its data. Compare every reported value with its computed
counterpart, and the reported sample size with the analyzed one. Classify each mismatch:
critical when it changes a conclusion, major when a reported estimate or p-value differs
beyond rounding, minor for rounding or labelling issues. Score reproducibility from 0 to 100.
Set "passed" to true only when there are no critical or major inconsistencies.

Response schema:
{
  "passed": boolean,
  "inconsistencies": [{"location": string, "description": string, "severity": "critical|major|minor", "reported": string, "computed": string}],
  "reproducibilityScore": number,
  "summary": string,
  "confidence": "high|medium|low",
  "warnings": [string]
}`

// ConsistencyCheck compares reported and computed results. Its output is never
// cached: a submission check must not be served stale.
func ConsistencyCheck() module.Definition[ConsistencyInput, ConsistencyResult] {
	return module.Definition[ConsistencyInput, ConsistencyResult]{
		ID:              module.ConsistencyCheck,
		Name:            "Consistency Check",
		MaxOutputTokens: 2000,
		System:          consistencySystem,
		Prompt:          consistencyPrompt,
		Normalize:       normalizeConsistency,
		Score: func(s ConsistencyResult) *float64 {
			if !s.ScoreProvided {
				return nil
			}
			return &s.ReproducibilityScore
		},
		Format: formatConsistency,
	}
}

func consistencyPrompt(in ConsistencyInput) string {
	p := newPrompt("Check this submission for inconsistencies.")
	p.field("Title", in.SubmissionTitle)
	p.field("Reported sample size", in.ReportedSampleSize)
	p.field("Analyzed sample size", in.AnalyzedSampleSize)
	p.data("Reported values", valuesOrEmpty(in.Reported))
	p.data("Computed values", valuesOrEmpty(in.Computed))
	p.field("Manuscript excerpt", in.ManuscriptExcerpt)
	return p.String()
}

func valuesOrEmpty(v []ReportedValue) []ReportedValue {
	if v == nil {
		return []ReportedValue{}
	}
	return v
}

func normalizeConsistency(raw module.Raw, fallback string, _ ConsistencyInput) ConsistencyResult {
	passed, _ := raw.Bool("passed")
	rs, provided := clampedScore(raw, "reproducibilityScore")
	res := ConsistencyResult{
		Passed:               passed,
		Inconsistencies:      []Inconsistency{},
		ReproducibilityScore: rs,
		ScoreProvided:        provided,
		Summary:              raw.String("summary", fallback),
	}
	for _, r := range records(raw, "inconsistencies", "description") {
		severity, ok := r.Enum("severity", severityOrder...)
		if !ok {
			severity = SeverityMinor
		}
		res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
			Location:    r.String("location", ""),
			Description: r.String("description", ""),
			Severity:    severity,
			Reported:    scalarText(r, "reported"),
			Computed:    scalarText(r, "computed"),
		})
	}
	return res
}

func formatConsistency(s ConsistencyResult) string {
	var d module.Doc
	d.Title("Consistency Check")
	status := "FAILED"
	if s.Passed {
		status = "PASSED"
	}
	d.Field("Status", status)
	if s.ScoreProvided {
		d.Field("Reproducibility score", fmt.Sprintf("%g/100", s.ReproducibilityScore))
	}
	d.Paragraph(s.Summary)

	for _, severity := range severityOrder {
		var items []string
		for _, inc := range s.Inconsistencies {
			if inc.Severity != severity {
				continue
			}
			items = append(items, inconsistencyLine(inc))
		}
		d.List(strings.ToUpper(severity[:1])+severity[1:]+" Inconsistencies", items)
	}
	return d.String()
}

func inconsistencyLine(inc Inconsistency) string {
	line := module.Labeled(inc.Location, inc.Description)
	switch {
	case inc.Reported != "" && inc.Computed != "":
		line += fmt.Sprintf(" (reported %s, computed %s)", inc.Reported, inc.Computed)
	case inc.Reported != "":
		line += fmt.Sprintf(" (reported %s)", inc.Reported)
	case inc.Computed != "":
		line += fmt.Sprintf(" (computed %s)", inc.Computed)
	}
	return line
}
