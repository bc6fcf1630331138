package modules

import (
	"fmt"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// MethodsInput is the input of the methods section module.
type MethodsInput struct {
	StudyDesign         string   `json:"studyDesign"`
	Population          string   `json:"population,omitempty"`
	DataSource          string   `json:"dataSource,omitempty"`
	Outcome             string   `json:"outcome"`
	Exposure            string   `json:"exposure"`
	Covariates          []string `json:"covariates,omitempty"`
	Tests               []string `json:"tests"`
	Software            string   `json:"software,omitempty"`
	Alpha               float64  `json:"alpha,omitempty"`
	MissingDataStrategy string   `json:"missingDataStrategy,omitempty"`
}

// Citation is one reference cited by the methods draft.
type Citation struct {
	Key       string `json:"key"`
	Reference string `json:"reference"`
}

// MethodsResult is the structured output of the methods section module.
type MethodsResult struct {
	StudyDesign         string     `json:"studyDesign"`
	Participants        string     `json:"participants"`
	Variables           string     `json:"variables"`
	StatisticalAnalysis string     `json:"statisticalAnalysis"`
	Citations           []Citation `json:"citations"`
}

const methodsSystem = `You are drafting the methods section of a manuscript for a peer-reviewed journal.
Write four subsections in past tense following STROBE/CONSORT conventions: study design,
participants, variables, and statistical analysis. Cite the statistical software and any
methodological references you rely on.

Response schema:
{
  "studyDesign": string,
  "participants": string,
  "variables": string,
  "statisticalAnalysis": string,
  "citations": [{"key": string, "reference": string}],
  "confidence": "high|medium|low",
  "warnings": [string]
}`

// MethodsSection drafts the four-part methods section. Its output is never cached.
func MethodsSection() module.Definition[MethodsInput, MethodsResult] {
	return module.Definition[MethodsInput, MethodsResult]{
		ID:              module.MethodsSection,
		Name:            "Methods Section",
		MaxOutputTokens: 2500,
		System:          methodsSystem,
		Prompt:          methodsPrompt,
		Normalize:       normalizeMethods,
		Format:          formatMethods,
	}
}

func methodsPrompt(in MethodsInput) string {
	alpha := in.Alpha
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	p := newPrompt("Draft the methods section for this study.")
	p.field("Study design", in.StudyDesign)
	p.field("Population", in.Population)
	p.field("Data source", in.DataSource)
	p.field("Outcome", in.Outcome)
	p.field("Exposure", in.Exposure)
	p.field("Covariates", in.Covariates)
	p.field("Statistical tests", in.Tests)
	p.field("Software", in.Software)
	p.field("Significance level", alpha)
	p.field("Missing data handling", in.MissingDataStrategy)
	return p.String()
}

func normalizeMethods(raw module.Raw, fallback string, _ MethodsInput) MethodsResult {
	res := MethodsResult{
		StudyDesign:         raw.String("studyDesign", ""),
		Participants:        raw.String("participants", ""),
		Variables:           raw.String("variables", ""),
		StatisticalAnalysis: raw.String("statisticalAnalysis", fallback),
		Citations:           []Citation{},
	}
	for _, r := range records(raw, "citations", "reference") {
		ref := r.String("reference", "")
		if ref == "" {
			continue
		}
		res.Citations = append(res.Citations, Citation{Key: r.String("key", ""), Reference: ref})
	}
	return res
}

func formatMethods(s MethodsResult) string {
	var d module.Doc
	d.Title("Methods")
	d.Section("Study Design", s.StudyDesign)
	d.Section("Participants", s.Participants)
	d.Section("Variables", s.Variables)
	d.Section("Statistical Analysis", s.StatisticalAnalysis)

	refs := make([]string, len(s.Citations))
	for i, c := range s.Citations {
		if c.Key != "" {
			refs[i] = fmt.Sprintf("[%s] %s", c.Key, c.Reference)
		} else {
			refs[i] = c.Reference
		}
	}
	d.Numbered("References", refs)
	return d.String()
}
