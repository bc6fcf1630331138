package modules

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/cache"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/gateway"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// textGateway answers every call with text, parsed the way a real client would.
func textGateway(text string, captured *gateway.Request) gateway.Gateway {
	return gateway.Func(func(ctx context.Context, req gateway.Request) (gateway.Response, error) {
		if captured != nil {
			*captured = req
		}
		parsed, ok := gateway.ParseStructured(text)
		return gateway.Response{Text: text, Parsed: parsed, HasParsed: ok}, nil
	})
}

func run[I, S any](t *testing.T, def module.Definition[I, S], in I, text string) module.Output[S] {
	t.Helper()
	out, err := def.Run(context.Background(), textGateway(text, nil), in)
	if err != nil {
		t.Fatalf("%s: Run: %v", def.ID, err)
	}
	return out
}

// checkDefaults asserts an output is complete and carries no null anywhere.
func checkDefaults[S any](t *testing.T, id module.ID, out module.Output[S]) {
	t.Helper()
	if !out.Complete() {
		t.Errorf("%s: output incomplete: %+v", id, out)
	}
	if out.Confidence != module.ConfidenceHigh {
		t.Errorf("%s: confidence = %q, want high", id, out.Confidence)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("%s: warnings = %v", id, out.Warnings)
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("%s: marshal: %v", id, err)
	}
	if strings.Contains(string(encoded), "null") {
		t.Errorf("%s: output contains null: %s", id, encoded)
	}
}

func TestModules_EmptyRecordDefaults(t *testing.T) {
	checkDefaults(t, module.DatasetIntelligence, run(t, DatasetIntelligence(), DatasetInput{}, "{}"))
	checkDefaults(t, module.AnalysisRecommendation, run(t, AnalysisRecommendation(), AnalysisInput{}, "{}"))
	checkDefaults(t, module.Interpretation, run(t, Interpretation(), InterpretationInput{}, "{}"))
	checkDefaults(t, module.MethodsSection, run(t, MethodsSection(), MethodsInput{}, "{}"))
	checkDefaults(t, module.ResultsNarrative, run(t, ResultsNarrative(), ResultsInput{}, "{}"))
	checkDefaults(t, module.ConsistencyCheck, run(t, ConsistencyCheck(), ConsistencyInput{}, "{}"))
	checkDefaults(t, module.ReproducibilitySummary, run(t, ReproducibilitySummary(), ReproducibilityInput{}, "{}"))
	checkDefaults(t, module.IndicatorDetection, run(t, IndicatorDetection(), IndicatorInput{}, "{}"))
}

func TestModules_MistypedFieldsDefault(t *testing.T) {
	const text = `{"summary": 7, "columns": "age", "missingDataFlags": [1, null], "warnings": "none", "confidence": "certain"}`
	out := run(t, DatasetIntelligence(), DatasetInput{}, text)
	checkDefaults(t, module.DatasetIntelligence, out)
	if out.Structured.Summary != "" {
		t.Errorf("summary = %q, want empty", out.Structured.Summary)
	}
}

func TestModules_UnparseableTextFallsBack(t *testing.T) {
	const text = "The model could not produce JSON."
	checks := map[module.ID]string{
		module.DatasetIntelligence:    run(t, DatasetIntelligence(), DatasetInput{}, text).Structured.Summary,
		module.AnalysisRecommendation: run(t, AnalysisRecommendation(), AnalysisInput{}, text).Structured.Rationale,
		module.Interpretation:         run(t, Interpretation(), InterpretationInput{}, text).Structured.PlainLanguage,
		module.MethodsSection:         run(t, MethodsSection(), MethodsInput{}, text).Structured.StatisticalAnalysis,
		module.ResultsNarrative:       run(t, ResultsNarrative(), ResultsInput{}, text).Structured.Narrative,
		module.ConsistencyCheck:       run(t, ConsistencyCheck(), ConsistencyInput{}, text).Structured.Summary,
		module.ReproducibilitySummary: run(t, ReproducibilitySummary(), ReproducibilityInput{}, text).Structured.AuditNarrative,
		module.IndicatorDetection:     run(t, IndicatorDetection(), IndicatorInput{}, text).Structured.Summary,
	}
	for id, got := range checks {
		if got != text {
			t.Errorf("%s: primary narrative = %q, want the raw text", id, got)
		}
	}
}

func TestModules_EmptyCompletionDefaults(t *testing.T) {
	checkDefaults(t, module.DatasetIntelligence, run(t, DatasetIntelligence(), DatasetInput{}, ""))
	checkDefaults(t, module.AnalysisRecommendation, run(t, AnalysisRecommendation(), AnalysisInput{}, ""))
	checkDefaults(t, module.Interpretation, run(t, Interpretation(), InterpretationInput{}, ""))
	checkDefaults(t, module.MethodsSection, run(t, MethodsSection(), MethodsInput{}, ""))
	checkDefaults(t, module.ResultsNarrative, run(t, ResultsNarrative(), ResultsInput{}, ""))
	checkDefaults(t, module.ConsistencyCheck, run(t, ConsistencyCheck(), ConsistencyInput{}, ""))
	checkDefaults(t, module.ReproducibilitySummary, run(t, ReproducibilitySummary(), ReproducibilityInput{}, ""))
	checkDefaults(t, module.IndicatorDetection, run(t, IndicatorDetection(), IndicatorInput{}, ""))
}

func TestModules_RequestBudgets(t *testing.T) {
	budgets := map[module.ID]int{}
	capture := func(id module.ID, call func(gw gateway.Gateway) error) {
		var req gateway.Request
		if err := call(textGateway("{}", &req)); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if !req.ExpectStructured || req.System == "" || !strings.HasSuffix(req.User, schemaReminder) {
			t.Errorf("%s: malformed request %+v", id, req)
		}
		budgets[id] = req.MaxOutputTokens
	}
	ctx := context.Background()
	capture(module.DatasetIntelligence, func(gw gateway.Gateway) error {
		_, err := DatasetIntelligence().Run(ctx, gw, DatasetInput{})
		return err
	})
	capture(module.AnalysisRecommendation, func(gw gateway.Gateway) error {
		_, err := AnalysisRecommendation().Run(ctx, gw, AnalysisInput{})
		return err
	})
	capture(module.Interpretation, func(gw gateway.Gateway) error {
		_, err := Interpretation().Run(ctx, gw, InterpretationInput{})
		return err
	})
	capture(module.MethodsSection, func(gw gateway.Gateway) error {
		_, err := MethodsSection().Run(ctx, gw, MethodsInput{})
		return err
	})
	capture(module.ResultsNarrative, func(gw gateway.Gateway) error {
		_, err := ResultsNarrative().Run(ctx, gw, ResultsInput{})
		return err
	})
	capture(module.ConsistencyCheck, func(gw gateway.Gateway) error {
		_, err := ConsistencyCheck().Run(ctx, gw, ConsistencyInput{})
		return err
	})
	capture(module.ReproducibilitySummary, func(gw gateway.Gateway) error {
		_, err := ReproducibilitySummary().Run(ctx, gw, ReproducibilityInput{})
		return err
	})
	capture(module.IndicatorDetection, func(gw gateway.Gateway) error {
		_, err := IndicatorDetection().Run(ctx, gw, IndicatorInput{})
		return err
	})

	want := map[module.ID]int{
		module.DatasetIntelligence:    2000,
		module.AnalysisRecommendation: 1800,
		module.Interpretation:         1500,
		module.MethodsSection:         2500,
		module.ResultsNarrative:       3000,
		module.ConsistencyCheck:       2000,
		module.ReproducibilitySummary: 1800,
		module.IndicatorDetection:     2200,
	}
	for id, tokens := range want {
		if budgets[id] != tokens {
			t.Errorf("%s: budget = %d, want %d", id, budgets[id], tokens)
		}
	}
}

func TestDatasetHash_RowCountAndSamples(t *testing.T) {
	base := DatasetInput{
		Columns:  []ColumnProfile{{Name: "age", NullCount: 0, SampleValues: []any{34, 51}}},
		RowCount: 100,
	}
	moreRows := base
	moreRows.RowCount = 101
	resampled := DatasetInput{
		Columns:  []ColumnProfile{{Name: "age", NullCount: 0, SampleValues: []any{"n/a", 18, 90}}},
		RowCount: 100,
	}

	def := DatasetIntelligence()
	h := cache.SourceHash(def.SourceInput(base))
	if h == cache.SourceHash(def.SourceInput(moreRows)) {
		t.Error("row count does not participate in the hash")
	}
	if h != cache.SourceHash(def.SourceInput(resampled)) {
		t.Error("sample values changed the hash")
	}
}

func TestDatasetIntelligence_Normalize(t *testing.T) {
	const text = "```json\n" + `{
		"columns": [
			{"name": "age", "detectedType": "Continuous", "rationale": "numeric, 60 unique"},
			{"name": "site", "detectedType": "cluster"},
			{"detectedType": "binary"}
		],
		"outcomeSuggestions": ["bp_change", {"column": "readmit", "reason": "binary outcome"}],
		"missingDataFlags": [{"column": "bmi", "missingPercent": 140, "severity": "extreme"}],
		"warnings": ["small sample"]
	}` + "\n```"

	out := run(t, DatasetIntelligence(), DatasetInput{}, text)
	s := out.Structured
	if len(s.Columns) != 2 || s.Columns[0].DetectedType != TypeContinuous || s.Columns[1].DetectedType != TypeUnknown {
		t.Errorf("columns = %+v", s.Columns)
	}
	if len(s.OutcomeSuggestions) != 2 || s.OutcomeSuggestions[0].Column != "bp_change" {
		t.Errorf("outcome suggestions = %+v", s.OutcomeSuggestions)
	}
	if f := s.MissingDataFlags[0]; f.MissingPercent != 100 || f.Severity != MissingLow {
		t.Errorf("missing flag = %+v", f)
	}
	if out.Confidence != module.ConfidenceMedium {
		t.Errorf("confidence = %q, want medium for one warning", out.Confidence)
	}
	if !strings.Contains(out.Formatted, "- age (continuous): numeric, 60 unique") ||
		!strings.Contains(out.Formatted, "## Warnings\n- small sample") {
		t.Errorf("formatted:\n%s", out.Formatted)
	}
}

func TestDatasetPrompt_TruncatesSamples(t *testing.T) {
	in := DatasetInput{Columns: []ColumnProfile{{Name: "x", SampleValues: []any{1, 2, 3, 4, 5, 6, 7}}}}
	prompt := datasetPrompt(in)
	if strings.Contains(prompt, "6") {
		t.Errorf("prompt carries more than %d samples:\n%s", maxSampleValues, prompt)
	}
	if len(in.Columns[0].SampleValues) != 7 {
		t.Error("prompt rendering mutated the input")
	}
}

func TestAnalysisRecommendation_WorkflowNumbering(t *testing.T) {
	const text = `{
		"primaryTest": {"name": "Logistic regression", "assumptions": ["independence"]},
		"workflow": [{"title": "Describe"}, {"step": 7, "title": "Model"}, "Check fit"]
	}`
	s := run(t, AnalysisRecommendation(), AnalysisInput{}, text).Structured
	var steps []int
	for _, w := range s.Workflow {
		steps = append(steps, w.Step)
	}
	if len(steps) != 3 || steps[0] != 1 || steps[1] != 7 || steps[2] != 3 {
		t.Errorf("steps = %v, want [1 7 3]", steps)
	}
	if s.Workflow[2].Title != "Check fit" {
		t.Errorf("bare string step title = %q", s.Workflow[2].Title)
	}
	if s.PrimaryTest.Name != "Logistic regression" || len(s.PrimaryTest.Assumptions) != 1 {
		t.Errorf("primary = %+v", s.PrimaryTest)
	}
}

func TestPrimaryCoefficient(t *testing.T) {
	coefs := []Coefficient{
		{Term: "(Intercept)"},
		{Term: "smoker_yes"},
		{Term: "Smoker"},
		{Term: "age"},
	}
	tests := []struct {
		name  string
		label string
		coefs []Coefficient
		want  string
		ok    bool
	}{
		{"exact match beats containment", "smoker", coefs, "Smoker", true},
		{"containment", "SMOKER_Y", coefs, "smoker_yes", true},
		{"case-insensitive exact", " AGE ", coefs, "age", true},
		{"no match falls back to first", "bmi", coefs, "(Intercept)", true},
		{"empty label falls back to first", "", coefs, "(Intercept)", true},
		{"empty table", "smoker", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PrimaryCoefficient(InterpretationInput{ExposureLabel: tt.label, Coefficients: tt.coefs})
			if ok != tt.ok || got.Term != tt.want {
				t.Errorf("PrimaryCoefficient = %q, %v; want %q, %v", got.Term, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestInterpretation_PrimaryTermIsLocal(t *testing.T) {
	in := InterpretationInput{
		ExposureLabel: "smoker",
		Coefficients:  []Coefficient{{Term: "age", Estimate: 0.1}, {Term: "smoker", Estimate: 1.8, PValue: 0.01}},
	}
	var req gateway.Request
	out, err := Interpretation().Run(context.Background(), textGateway(`{"primaryTerm": "age"}`, &req), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Structured.PrimaryTerm != "smoker" {
		t.Errorf("primary term = %q, want smoker", out.Structured.PrimaryTerm)
	}
	if !strings.Contains(req.User, "Estimate: 1.8") || !strings.Contains(req.User, "Other coefficients in the model: 1") {
		t.Errorf("prompt:\n%s", req.User)
	}
	if strings.Contains(req.User, "0.1") {
		t.Error("prompt includes a non-primary coefficient")
	}
}

func TestInterpretation_HashUsesEffectiveAlpha(t *testing.T) {
	def := Interpretation()
	unset := cache.SourceHash(def.SourceInput(InterpretationInput{TestName: "t"}))
	explicit := cache.SourceHash(def.SourceInput(InterpretationInput{TestName: "t", Alpha: DefaultAlpha}))
	if unset != explicit {
		t.Error("unset alpha and the default alpha hash differently")
	}
	sized := cache.SourceHash(def.SourceInput(InterpretationInput{TestName: "t", SampleSize: 500}))
	if unset != sized {
		t.Error("sample size participates in the hash")
	}
}

func TestConsistencyCheck_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		passed     bool
		score      float64
		provided   bool
		confidence module.Confidence
	}{
		{"explicit pass", `{"passed": true, "reproducibilityScore": 92}`, true, 92, true, module.ConfidenceHigh},
		{"string is not a boolean", `{"passed": "true"}`, false, 0, false, module.ConfidenceHigh},
		{"score clamped high", `{"reproducibilityScore": 140}`, false, 100, true, module.ConfidenceHigh},
		{"score clamped low", `{"reproducibilityScore": -5}`, false, 0, true, module.ConfidenceLow},
		{"score beats warnings", `{"reproducibilityScore": 60, "warnings": []}`, false, 60, true, module.ConfidenceMedium},
		{"explicit confidence wins", `{"reproducibilityScore": 10, "confidence": "HIGH"}`, false, 10, true, module.ConfidenceHigh},
		{"warnings without score", `{"warnings": ["a", "b", "c"]}`, false, 0, false, module.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, ConsistencyCheck(), ConsistencyInput{}, tt.text)
			s := out.Structured
			if s.Passed != tt.passed || s.ReproducibilityScore != tt.score || s.ScoreProvided != tt.provided {
				t.Errorf("structured = %+v", s)
			}
			if out.Confidence != tt.confidence {
				t.Errorf("confidence = %q, want %q", out.Confidence, tt.confidence)
			}
		})
	}
}

func TestConsistencyCheck_SeverityGrouping(t *testing.T) {
	const text = `{"inconsistencies": [
		{"location": "Table 2", "description": "OR differs", "severity": "Major", "reported": 1.8, "computed": "2.1"},
		{"location": "Abstract", "description": "N differs", "severity": "critical"},
		{"description": "rounding"}
	]}`
	out := run(t, ConsistencyCheck(), ConsistencyInput{}, text)
	incs := out.Structured.Inconsistencies
	if incs[0].Severity != SeverityMajor || incs[0].Reported != "1.8" || incs[2].Severity != SeverityMinor {
		t.Errorf("inconsistencies = %+v", incs)
	}
	f := out.Formatted
	critical := strings.Index(f, "## Critical Inconsistencies")
	major := strings.Index(f, "## Major Inconsistencies")
	minor := strings.Index(f, "## Minor Inconsistencies")
	if critical < 0 || major < critical || minor < major {
		t.Errorf("severity sections out of order:\n%s", f)
	}
	if !strings.Contains(f, "- Table 2: OR differs (reported 1.8, computed 2.1)") {
		t.Errorf("formatted:\n%s", f)
	}
	if !strings.Contains(f, "**Status:** FAILED") {
		t.Errorf("missing status line:\n%s", f)
	}
}

func TestReproducibilitySummary_VerificationFallback(t *testing.T) {
	score := 87.0
	tests := []struct {
		name string
		in   ReproducibilityInput
		want string
	}{
		{"no check", ReproducibilityInput{}, "No consistency check has been run"},
		{"passed", ReproducibilityInput{ConsistencyScore: &score, ConsistencyPassed: true}, "passed with a reproducibility score of 87/100"},
		{"failed", ReproducibilityInput{ConsistencyScore: &score}, "did not pass (reproducibility score 87/100)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, ReproducibilitySummary(), tt.in, "{}")
			if !strings.Contains(out.Structured.VerificationStatement, tt.want) {
				t.Errorf("statement = %q, want it to contain %q", out.Structured.VerificationStatement, tt.want)
			}
		})
	}

	out := run(t, ReproducibilitySummary(), ReproducibilityInput{}, `{"verificationStatement": "Verified by an independent analyst."}`)
	if out.Structured.VerificationStatement != "Verified by an independent analyst." {
		t.Errorf("service statement replaced: %q", out.Structured.VerificationStatement)
	}
}

func TestReproducibilitySummary_CompletenessDrivesConfidence(t *testing.T) {
	out := run(t, ReproducibilitySummary(), ReproducibilityInput{}, `{"completenessScore": 45}`)
	if out.Confidence != module.ConfidenceLow || !out.Structured.ScoreProvided {
		t.Errorf("confidence = %q, structured = %+v", out.Confidence, out.Structured)
	}
}

func TestReproducibilityHash_IgnoresTimestamps(t *testing.T) {
	step := func(ts time.Time) ReproducibilityInput {
		return ReproducibilityInput{
			ProjectTitle: "p",
			Steps:        []PipelineStep{{Name: "clean", Tool: "R", Parameters: map[string]any{"drop": true}, Timestamp: ts}},
		}
	}
	a := cache.SourceHash(ReproducibilityHash(step(time.Unix(0, 0))))
	b := cache.SourceHash(ReproducibilityHash(step(time.Unix(1e9, 0))))
	if a != b {
		t.Error("timestamps participate in the hash")
	}
	changed := step(time.Unix(0, 0))
	changed.Steps[0].Parameters["drop"] = false
	if a == cache.SourceHash(ReproducibilityHash(changed)) {
		t.Error("parameters do not participate in the hash")
	}
}

func TestIndicatorDetection_DefaultDashboard(t *testing.T) {
	const text = `{"candidates": [
		{"name": "Coverage", "column": "vaccinated"},
		{"name": "Dropout"},
		{"name": "Stockouts", "column": "stock", "direction": "Decrease"},
		{"name": "Visits", "column": "visits"}
	]}`
	out := run(t, IndicatorDetection(), IndicatorInput{ProjectName: "Immunize"}, text)
	dash := out.Structured.Dashboard
	if dash.Title != "Immunize indicators" {
		t.Errorf("title = %q", dash.Title)
	}
	want := []Widget{
		{Indicator: "Coverage", Chart: ChartLine, Column: "vaccinated"},
		{Indicator: "Dropout", Chart: ChartStat},
		{Indicator: "Stockouts", Chart: ChartLine, Column: "stock"},
	}
	if len(dash.Widgets) != len(want) {
		t.Fatalf("widgets = %+v", dash.Widgets)
	}
	for i := range want {
		if dash.Widgets[i] != want[i] {
			t.Errorf("widget %d = %+v, want %+v", i, dash.Widgets[i], want[i])
		}
	}
	if out.Structured.Candidates[2].Direction != DirectionDecrease {
		t.Errorf("direction = %q", out.Structured.Candidates[2].Direction)
	}
}

func TestIndicatorDetection_ServiceDashboardKept(t *testing.T) {
	const text = `{
		"candidates": [{"name": "Coverage"}],
		"dashboard": {"title": "Board", "widgets": [{"indicator": "Coverage", "chart": "pie"}]}
	}`
	dash := run(t, IndicatorDetection(), IndicatorInput{ProjectName: "p"}, text).Structured.Dashboard
	if dash.Title != "Board" || len(dash.Widgets) != 1 || dash.Widgets[0].Chart != ChartStat {
		t.Errorf("dashboard = %+v", dash)
	}
}

func TestFormat_SkipsEmptySections(t *testing.T) {
	out := run(t, MethodsSection(), MethodsInput{}, `{"statisticalAnalysis": "We fit a Cox model.", "citations": ["R Core Team (2024)"]}`)
	want := "# Methods\n\n## Statistical Analysis\nWe fit a Cox model.\n\n## References\n1. R Core Team (2024)"
	if out.Formatted != want {
		t.Errorf("formatted =\n%q\nwant\n%q", out.Formatted, want)
	}
}

func TestResultsPrompt_TruncatesRows(t *testing.T) {
	rows := make([][]any, maxPromptRows+5)
	for i := range rows {
		rows[i] = []any{i}
	}
	in := ResultsInput{Tables: []Table{{Title: "T1", Columns: []string{"n"}, Rows: rows}}}
	prompt := resultsPrompt(in)
	if strings.Contains(prompt, "24") {
		t.Error("prompt carries rows past the limit")
	}
	if len(in.Tables[0].Rows) != maxPromptRows+5 {
		t.Error("prompt rendering mutated the input")
	}
}
