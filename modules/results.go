package modules

import (
	"fmt"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// Table is a results table supplied by the caller.
type Table struct {
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// AnalysisSummary is the headline result of one completed analysis.
type AnalysisSummary struct {
	TestName   string  `json:"testName"`
	Statistic  float64 `json:"statistic"`
	PValue     float64 `json:"pValue"`
	EffectSize string  `json:"effectSize,omitempty"`
}

// ResultsInput is the input of the results narrative module.
type ResultsInput struct {
	ResearchQuestion string            `json:"researchQuestion,omitempty"`
	Tables           []Table           `json:"tables"`
	Analyses         []AnalysisSummary `json:"analyses"`
	KeyFindings      []string          `json:"keyFindings,omitempty"`
}

// TableParagraph is the narrative paragraph describing one table.
type TableParagraph struct {
	Table     string `json:"table"`
	Paragraph string `json:"paragraph"`
}

// ResultsResult is the structured output of the results narrative module.
type ResultsResult struct {
	Narrative       string           `json:"narrative"`
	TableParagraphs []TableParagraph `json:"tableParagraphs"`
	FlaggedGaps     []string         `json:"flaggedGaps"`
}

const resultsSystem = `You are writing the results section of a manuscript.
Report what the tables and analyses show without interpretation or speculation. Quote
estimates and p-values exactly as given. Write one paragraph per table. Flag any result
the research question calls for that the supplied tables and analyses do not cover.

Response schema:
{
  "narrative": string,
  "tableParagraphs": [{"table": string, "paragraph": string}],
  "flaggedGaps": [string],
  "confidence": "high|medium|low",
  "warnings": [string]
}`

// maxPromptRows bounds how many rows of each table are sent to the service.
const maxPromptRows = 20

// ResultsNarrative drafts the results section. Its output is never cached.
func ResultsNarrative() module.Definition[ResultsInput, ResultsResult] {
	return module.Definition[ResultsInput, ResultsResult]{
		ID:              module.ResultsNarrative,
		Name:            "Results Narrative",
		MaxOutputTokens: 3000,
		System:          resultsSystem,
		Prompt:          resultsPrompt,
		Normalize:       normalizeResults,
		Format:          formatResults,
	}
}

func resultsPrompt(in ResultsInput) string {
	p := newPrompt("Write the results narrative.")
	p.field("Research question", in.ResearchQuestion)
	p.field("Key findings", in.KeyFindings)

	tables := make([]Table, len(in.Tables))
	for i, t := range in.Tables {
		if len(t.Rows) > maxPromptRows {
			t.Rows = t.Rows[:maxPromptRows]
		}
		tables[i] = t
	}
	if len(tables) > 0 {
		p.data("Tables", tables)
	}
	if len(in.Analyses) > 0 {
		p.data("Analyses", in.Analyses)
	}
	return p.String()
}

func normalizeResults(raw module.Raw, fallback string, _ ResultsInput) ResultsResult {
	res := ResultsResult{
		Narrative:       raw.String("narrative", fallback),
		TableParagraphs: []TableParagraph{},
		FlaggedGaps:     raw.Strings("flaggedGaps"),
	}
	for _, r := range raw.Records("tableParagraphs") {
		para := r.String("paragraph", "")
		if para == "" {
			continue
		}
		res.TableParagraphs = append(res.TableParagraphs, TableParagraph{
			Table:     r.String("table", ""),
			Paragraph: para,
		})
	}
	return res
}

func formatResults(s ResultsResult) string {
	var d module.Doc
	d.Title("Results")
	d.Paragraph(s.Narrative)
	for i, tp := range s.TableParagraphs {
		d.Section(orDefault(tp.Table, fmt.Sprintf("Table %d", i+1)), tp.Paragraph)
	}
	d.List("Gaps", s.FlaggedGaps)
	return d.String()
}
