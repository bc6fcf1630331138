package modules

import (
	"fmt"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// Variable names a study variable and its measurement type.
type Variable struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// AnalysisInput is the input of the analysis recommendation module.
type AnalysisInput struct {
	Outcome          Variable   `json:"outcome"`
	Exposure         Variable   `json:"exposure"`
	Covariates       []Variable `json:"covariates,omitempty"`
	StudyDesign      string     `json:"studyDesign,omitempty"`
	SampleSize       int        `json:"sampleSize"`
	ResearchQuestion string     `json:"researchQuestion,omitempty"`
	Clustered        bool       `json:"clustered"`
}

// TestRecommendation is a recommended statistical test.
type TestRecommendation struct {
	Name        string   `json:"name"`
	Rationale   string   `json:"rationale"`
	Assumptions []string `json:"assumptions"`
}

// WorkflowStep is one step of the recommended analysis workflow.
type WorkflowStep struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AnalysisResult is the structured output of the analysis recommendation module.
type AnalysisResult struct {
	PrimaryTest      TestRecommendation   `json:"primaryTest"`
	AlternativeTests []TestRecommendation `json:"alternativeTests"`
	Workflow         []WorkflowStep       `json:"workflow"`
	Rationale        string               `json:"rationale"`
}

const analysisSystem = `You are a biostatistician recommending an analysis plan.
Choose the primary test from the outcome and exposure types, the study design, the
sample size and whether observations are clustered (clustered data needs mixed or GEE models).
List the assumptions the primary test relies on and one or more alternatives.

Response schema:
{
  "primaryTest": {"name": string, "rationale": string, "assumptions": [string]},
  "alternativeTests": [{"name": string, "rationale": string, "assumptions": [string]}],
  "workflow": [{"step": number, "title": string, "description": string}],
  "rationale": string,
  "confidence": "high|medium|low",
  "warnings": [string]
}`

// AnalysisRecommendation recommends primary and alternative tests and an
// ordered analysis workflow.
func AnalysisRecommendation() module.Definition[AnalysisInput, AnalysisResult] {
	return module.Definition[AnalysisInput, AnalysisResult]{
		ID:              module.AnalysisRecommendation,
		Name:            "Analysis Recommendation",
		MaxOutputTokens: 1800,
		System:          analysisSystem,
		Prompt:          analysisPrompt,
		Normalize:       normalizeAnalysis,
		Format:          formatAnalysis,
	}
}

func analysisPrompt(in AnalysisInput) string {
	p := newPrompt("Recommend an analysis plan for this study.")
	p.field("Research question", in.ResearchQuestion)
	p.field("Study design", in.StudyDesign)
	p.field("Outcome", variableLine(in.Outcome))
	p.field("Exposure", variableLine(in.Exposure))
	covariates := make([]string, len(in.Covariates))
	for i, c := range in.Covariates {
		covariates[i] = variableLine(c)
	}
	p.field("Covariates", covariates)
	p.field("Sample size", in.SampleSize)
	p.field("Clustered observations", in.Clustered)
	return p.String()
}

func variableLine(v Variable) string {
	if v.Type == "" {
		return v.Name
	}
	return fmt.Sprintf("%s (%s)", v.Name, v.Type)
}

func normalizeAnalysis(raw module.Raw, fallback string, _ AnalysisInput) AnalysisResult {
	primary, _ := raw.Record("primaryTest")
	res := AnalysisResult{
		PrimaryTest:      testRecommendation(primary),
		AlternativeTests: []TestRecommendation{},
		Workflow:         []WorkflowStep{},
		Rationale:        raw.String("rationale", fallback),
	}
	for _, r := range records(raw, "alternativeTests", "name") {
		res.AlternativeTests = append(res.AlternativeTests, testRecommendation(r))
	}
	for i, r := range records(raw, "workflow", "title") {
		step, ok := r.Int("step")
		if !ok || step <= 0 {
			step = i + 1
		}
		res.Workflow = append(res.Workflow, WorkflowStep{
			Step:        step,
			Title:       r.String("title", ""),
			Description: r.String("description", ""),
		})
	}
	return res
}

func testRecommendation(r module.Raw) TestRecommendation {
	return TestRecommendation{
		Name:        r.String("name", ""),
		Rationale:   r.String("rationale", ""),
		Assumptions: r.Strings("assumptions"),
	}
}

func formatAnalysis(s AnalysisResult) string {
	var d module.Doc
	d.Title("Analysis Recommendation")
	if s.PrimaryTest.Name != "" {
		d.Section("Primary Test", module.Labeled(s.PrimaryTest.Name, s.PrimaryTest.Rationale))
		d.List("Assumptions", s.PrimaryTest.Assumptions)
	}

	alternatives := make([]string, len(s.AlternativeTests))
	for i, t := range s.AlternativeTests {
		alternatives[i] = module.Labeled(t.Name, t.Rationale)
	}
	d.List("Alternative Tests", alternatives)

	steps := make([]string, len(s.Workflow))
	for i, w := range s.Workflow {
		steps[i] = fmt.Sprintf("Step %d. %s", w.Step, module.Labeled(w.Title, w.Description))
	}
	d.List("Workflow", steps)
	d.Section("Rationale", s.Rationale)
	return d.String()
}
