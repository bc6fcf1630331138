package modules

import (
	"fmt"
	"strings"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// ColumnProfile describes one dataset column as profiled by the caller.
type ColumnProfile struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declaredType,omitempty"`
	NullCount    int    `json:"nullCount"`
	UniqueCount  int    `json:"uniqueCount"`
	SampleValues []any  `json:"sampleValues,omitempty"`
}

// DatasetInput is the input of the dataset intelligence module.
type DatasetInput struct {
	Columns          []ColumnProfile `json:"columns"`
	RowCount         int             `json:"rowCount"`
	StudyDesign      string          `json:"studyDesign,omitempty"`
	ResearchQuestion string          `json:"researchQuestion,omitempty"`
}

// Detected column types.
const (
	TypeContinuous  = "continuous"
	TypeCategorical = "categorical"
	TypeBinary      = "binary"
	TypeOrdinal     = "ordinal"
	TypeDate        = "date"
	TypeText        = "text"
	TypeIdentifier  = "identifier"
	TypeUnknown     = "unknown"
)

// Missing-data severities.
const (
	MissingLow      = "low"
	MissingModerate = "moderate"
	MissingHigh     = "high"
)

// ColumnType is the service's classification of one column.
type ColumnType struct {
	Name         string `json:"name"`
	DetectedType string `json:"detectedType"`
	Rationale    string `json:"rationale"`
}

// VariableSuggestion proposes a column for a role in the analysis.
type VariableSuggestion struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// MissingDataFlag reports a column with missing values.
type MissingDataFlag struct {
	Column         string  `json:"column"`
	MissingPercent float64 `json:"missingPercent"`
	Severity       string  `json:"severity"`
}

// DatasetResult is the structured output of the dataset intelligence module.
type DatasetResult struct {
	Columns             []ColumnType         `json:"columns"`
	OutcomeSuggestions  []VariableSuggestion `json:"outcomeSuggestions"`
	ExposureSuggestions []VariableSuggestion `json:"exposureSuggestions"`
	MissingDataFlags    []MissingDataFlag    `json:"missingDataFlags"`
	Summary             string               `json:"summary"`
}

const datasetSystem = `You are a biostatistician reviewing a newly uploaded research dataset.
Classify every column and suggest how it could be used in the analysis.

Classification rules:
- numeric with more than 10 unique values: continuous
- exactly 2 unique values: binary
- ordered categories (e.g. Likert scales, stages): ordinal
- other columns with few unique values: categorical
- values that are unique per row: identifier
- parsable dates: date; free text: text

Missing-data severity: up to 10% missing is low, up to 30% is moderate, above 30% is high.

Response schema:
{
  "columns": [{"name": string, "detectedType": "continuous|categorical|binary|ordinal|date|text|identifier", "rationale": string}],
  "outcomeSuggestions": [{"column": string, "reason": string}],
  "exposureSuggestions": [{"column": string, "reason": string}],
  "missingDataFlags": [{"column": string, "missingPercent": number, "severity": "low|moderate|high"}],
  "summary": string,
  "confidence": "high|medium|low",
  "warnings": [string]
}`

type columnFingerprint struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declaredType"`
	NullCount    int    `json:"nullCount"`
	UniqueCount  int    `json:"uniqueCount"`
}

type datasetFingerprint struct {
	Columns          []columnFingerprint `json:"columns"`
	RowCount         int                 `json:"rowCount"`
	StudyDesign      string              `json:"studyDesign"`
	ResearchQuestion string              `json:"researchQuestion"`
}

// DatasetHash projects the input onto the fields that decide staleness.
// Sample values are excluded so re-sampling the same data keeps the cache warm.
func DatasetHash(in DatasetInput) any {
	cols := make([]columnFingerprint, len(in.Columns))
	for i, c := range in.Columns {
		cols[i] = columnFingerprint{
			Name:         c.Name,
			DeclaredType: c.DeclaredType,
			NullCount:    c.NullCount,
			UniqueCount:  c.UniqueCount,
		}
	}
	return datasetFingerprint{
		Columns:          cols,
		RowCount:         in.RowCount,
		StudyDesign:      in.StudyDesign,
		ResearchQuestion: in.ResearchQuestion,
	}
}

// maxSampleValues bounds how many samples per column are sent to the service.
const maxSampleValues = 5

// DatasetIntelligence classifies columns and suggests outcomes, exposures and
// missing-data concerns.
func DatasetIntelligence() module.Definition[DatasetInput, DatasetResult] {
	return module.Definition[DatasetInput, DatasetResult]{
		ID:              module.DatasetIntelligence,
		Name:            "Dataset Intelligence",
		MaxOutputTokens: 2000,
		System:          datasetSystem,
		Prompt:          datasetPrompt,
		Hash:            DatasetHash,
		Normalize:       normalizeDataset,
		Format:          formatDataset,
	}
}

func datasetPrompt(in DatasetInput) string {
	p := newPrompt("Profile this dataset.")
	p.field("Rows", in.RowCount)
	p.field("Study design", in.StudyDesign)
	p.field("Research question", in.ResearchQuestion)

	cols := make([]ColumnProfile, len(in.Columns))
	for i, c := range in.Columns {
		if len(c.SampleValues) > maxSampleValues {
			c.SampleValues = c.SampleValues[:maxSampleValues]
		}
		cols[i] = c
	}
	p.data("Columns", cols)
	return p.String()
}

func normalizeDataset(raw module.Raw, fallback string, _ DatasetInput) DatasetResult {
	res := DatasetResult{
		Columns:             []ColumnType{},
		OutcomeSuggestions:  suggestions(raw, "outcomeSuggestions"),
		ExposureSuggestions: suggestions(raw, "exposureSuggestions"),
		MissingDataFlags:    []MissingDataFlag{},
		Summary:             raw.String("summary", fallback),
	}
	for _, r := range raw.Records("columns") {
		name := strings.TrimSpace(r.String("name", ""))
		if name == "" {
			continue
		}
		detected, ok := r.Enum("detectedType",
			TypeContinuous, TypeCategorical, TypeBinary, TypeOrdinal, TypeDate, TypeText, TypeIdentifier)
		if !ok {
			detected = TypeUnknown
		}
		res.Columns = append(res.Columns, ColumnType{
			Name:         name,
			DetectedType: detected,
			Rationale:    r.String("rationale", ""),
		})
	}
	for _, r := range raw.Records("missingDataFlags") {
		pct, _ := r.Number("missingPercent")
		severity, ok := r.Enum("severity", MissingLow, MissingModerate, MissingHigh)
		if !ok {
			severity = MissingLow
		}
		res.MissingDataFlags = append(res.MissingDataFlags, MissingDataFlag{
			Column:         r.String("column", ""),
			MissingPercent: module.Clamp(pct, 0, 100),
			Severity:       severity,
		})
	}
	return res
}

func suggestions(raw module.Raw, field string) []VariableSuggestion {
	out := []VariableSuggestion{}
	for _, r := range records(raw, field, "column") {
		col := r.String("column", "")
		if col == "" {
			continue
		}
		out = append(out, VariableSuggestion{Column: col, Reason: r.String("reason", "")})
	}
	return out
}

func formatDataset(s DatasetResult) string {
	var d module.Doc
	d.Title("Dataset Intelligence")
	d.Paragraph(s.Summary)

	types := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		types[i] = module.Labeled(c.Name+" ("+c.DetectedType+")", c.Rationale)
	}
	d.List("Variable Types", types)
	d.List("Suggested Outcomes", suggestionLines(s.OutcomeSuggestions))
	d.List("Suggested Exposures", suggestionLines(s.ExposureSuggestions))

	flags := make([]string, len(s.MissingDataFlags))
	for i, f := range s.MissingDataFlags {
		flags[i] = fmt.Sprintf("%s: %s missing (%s)", f.Column, percent(f.MissingPercent), f.Severity)
	}
	d.List("Missing Data", flags)
	return d.String()
}

func suggestionLines(in []VariableSuggestion) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = module.Labeled(s.Column, s.Reason)
	}
	return out
}
