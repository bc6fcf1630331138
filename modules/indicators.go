package modules

import (
	"fmt"
	"strings"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// Indicator directions.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
	DirectionMaintain = "maintain"
)

// Dashboard chart kinds.
const (
	ChartLine  = "line"
	ChartBar   = "bar"
	ChartStat  = "stat"
	ChartTable = "table"
	ChartMap   = "map"
)

// dashboardWidgets is how many candidates the default dashboard shows.
const dashboardWidgets = 3

// IndicatorInput is the input of the indicator detection module.
type IndicatorInput struct {
	ProjectName string   `json:"projectName"`
	Description string   `json:"description,omitempty"`
	Objectives  []string `json:"objectives,omitempty"`
	DataColumns []string `json:"dataColumns,omitempty"`
	Frameworks  []string `json:"frameworks,omitempty"`
	Sector      string   `json:"sector,omitempty"`
}

// Indicator is a candidate monitoring indicator.
type Indicator struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	// Column is the dataset column the indicator is computed from, if any.
	Column    string `json:"column"`
	Unit      string `json:"unit"`
	Direction string `json:"direction"`
}

// Target is a quantified goal for an indicator.
type Target struct {
	Indicator string `json:"indicator"`
	Value     string `json:"value"`
	Deadline  string `json:"deadline"`
}

// Alignment maps an indicator to a goal in an external framework.
type Alignment struct {
	Framework string `json:"framework"`
	Goal      string `json:"goal"`
	Indicator string `json:"indicator"`
}

// Widget is one dashboard tile.
type Widget struct {
	Indicator string `json:"indicator"`
	Chart     string `json:"chart"`
	Column    string `json:"column"`
}

// Dashboard is a monitoring dashboard configuration.
type Dashboard struct {
	Title   string   `json:"title"`
	Widgets []Widget `json:"widgets"`
}

// IndicatorResult is the structured output of the indicator detection module.
type IndicatorResult struct {
	Candidates         []Indicator `json:"candidates"`
	Targets            []Target    `json:"targets"`
	FrameworkAlignment []Alignment `json:"frameworkAlignment"`
	Dashboard          Dashboard   `json:"dashboard"`
	Summary            string      `json:"summary"`
}

const indicatorSystem = `You are a monitoring and evaluation specialist designing indicators for a project.
Propose indicators that are specific, measurable and computable from the listed data columns
where possible. Bind each indicator to a column when one fits. Suggest realistic targets and
map indicators to the requested frameworks (for example the Sustainable Development Goals).
Propose a dashboard of the most important indicators.

Response schema:
{
  "candidates": [{"name": string, "definition": string, "column": string, "unit": string, "direction": "increase|decrease|maintain"}],
  "targets": [{"indicator": string, "value": string, "deadline": string}],
  "frameworkAlignment": [{"framework": string, "goal": string, "indicator": string}],
  "dashboard": {"title": string, "widgets": [{"indicator": string, "chart": "line|bar|stat|table|map", "column": string}]},
  "summary": string,
  "confidence": "high|medium|low",
  "warnings": [string]
}`

// IndicatorDetection proposes monitoring indicators, targets and a dashboard.
func IndicatorDetection() module.Definition[IndicatorInput, IndicatorResult] {
	return module.Definition[IndicatorInput, IndicatorResult]{
		ID:              module.IndicatorDetection,
		Name:            "Indicator Detection",
		MaxOutputTokens: 2200,
		System:          indicatorSystem,
		Prompt:          indicatorPrompt,
		Normalize:       normalizeIndicators,
		Format:          formatIndicators,
	}
}

// DefaultDashboard builds a dashboard from the first three candidates: a line
// chart for an indicator bound to a column, otherwise a single stat.
func DefaultDashboard(projectName string, candidates []Indicator) Dashboard {
	d := Dashboard{
		Title:   strings.TrimSpace(projectName + " indicators"),
		Widgets: []Widget{},
	}
	for i, c := range candidates {
		if i == dashboardWidgets {
			break
		}
		d.Widgets = append(d.Widgets, Widget{Indicator: c.Name, Chart: defaultChart(c.Column), Column: c.Column})
	}
	return d
}

func defaultChart(column string) string {
	if column != "" {
		return ChartLine
	}
	return ChartStat
}

func indicatorPrompt(in IndicatorInput) string {
	p := newPrompt("Propose indicators for this project.")
	p.field("Project", in.ProjectName)
	p.field("Sector", in.Sector)
	p.field("Description", in.Description)
	p.field("Objectives", in.Objectives)
	p.field("Available data columns", in.DataColumns)
	p.field("Frameworks", in.Frameworks)
	return p.String()
}

func normalizeIndicators(raw module.Raw, fallback string, in IndicatorInput) IndicatorResult {
	res := IndicatorResult{
		Candidates:         []Indicator{},
		Targets:            []Target{},
		FrameworkAlignment: []Alignment{},
		Summary:            raw.String("summary", fallback),
	}
	for _, r := range records(raw, "candidates", "name") {
		name := r.String("name", "")
		if name == "" {
			continue
		}
		direction, _ := r.Enum("direction", DirectionIncrease, DirectionDecrease, DirectionMaintain)
		res.Candidates = append(res.Candidates, Indicator{
			Name:       name,
			Definition: r.String("definition", ""),
			Column:     r.String("column", ""),
			Unit:       r.String("unit", ""),
			Direction:  direction,
		})
	}
	for _, r := range raw.Records("targets") {
		res.Targets = append(res.Targets, Target{
			Indicator: r.String("indicator", ""),
			Value:     scalarText(r, "value"),
			Deadline:  scalarText(r, "deadline"),
		})
	}
	for _, r := range raw.Records("frameworkAlignment") {
		res.FrameworkAlignment = append(res.FrameworkAlignment, Alignment{
			Framework: r.String("framework", ""),
			Goal:      scalarText(r, "goal"),
			Indicator: r.String("indicator", ""),
		})
	}

	if dash, ok := raw.Record("dashboard"); ok {
		res.Dashboard = dashboard(dash, in.ProjectName)
	} else {
		res.Dashboard = DefaultDashboard(in.ProjectName, res.Candidates)
	}
	return res
}

func dashboard(r module.Raw, projectName string) Dashboard {
	d := Dashboard{
		Title:   orDefault(r.String("title", ""), strings.TrimSpace(projectName+" indicators")),
		Widgets: []Widget{},
	}
	for _, w := range records(r, "widgets", "indicator") {
		column := w.String("column", "")
		chart, ok := w.Enum("chart", ChartLine, ChartBar, ChartStat, ChartTable, ChartMap)
		if !ok {
			chart = defaultChart(column)
		}
		d.Widgets = append(d.Widgets, Widget{Indicator: w.String("indicator", ""), Chart: chart, Column: column})
	}
	return d
}

func formatIndicators(s IndicatorResult) string {
	var d module.Doc
	d.Title("Indicators")
	d.Paragraph(s.Summary)

	candidates := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		line := module.Labeled(c.Name, c.Definition)
		var meta []string
		if c.Unit != "" {
			meta = append(meta, "unit: "+c.Unit)
		}
		if c.Direction != "" {
			meta = append(meta, "target direction: "+c.Direction)
		}
		if c.Column != "" {
			meta = append(meta, "column: "+c.Column)
		}
		if len(meta) > 0 {
			line += " (" + strings.Join(meta, "; ") + ")"
		}
		candidates[i] = line
	}
	d.List("Candidate Indicators", candidates)

	targets := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = module.Labeled(t.Indicator, strings.TrimSpace(t.Value+" by "+t.Deadline))
		if t.Deadline == "" {
			targets[i] = module.Labeled(t.Indicator, t.Value)
		}
	}
	d.List("Targets", targets)

	alignment := make([]string, len(s.FrameworkAlignment))
	for i, a := range s.FrameworkAlignment {
		alignment[i] = fmt.Sprintf("%s: %s", module.Labeled(a.Framework, a.Goal), a.Indicator)
	}
	d.List("Framework Alignment", alignment)

	widgets := make([]string, len(s.Dashboard.Widgets))
	for i, w := range s.Dashboard.Widgets {
		widgets[i] = fmt.Sprintf("%s (%s)", w.Indicator, w.Chart)
	}
	d.List("Dashboard: "+s.Dashboard.Title, widgets)
	return d.String()
}
