package modules

import (
	"fmt"
	"time"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// PipelineStep is one recorded step of an analysis pipeline.
type PipelineStep struct {
	Name       string         `json:"name"`
	Tool       string         `json:"tool,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ReproducibilityInput is the input of the reproducibility summary module.
type ReproducibilityInput struct {
	ProjectTitle     string            `json:"projectTitle"`
	Steps            []PipelineStep    `json:"steps"`
	DatasetVersion   string            `json:"datasetVersion,omitempty"`
	SoftwareVersions map[string]string `json:"softwareVersions,omitempty"`
	// ConsistencyScore is the latest consistency-check score, nil when no
	// check has run.
	ConsistencyScore  *float64 `json:"consistencyScore,omitempty"`
	ConsistencyPassed bool     `json:"consistencyPassed"`
}

// ReproducibilityResult is the structured output of the reproducibility summary module.
type ReproducibilityResult struct {
	AuditNarrative        string   `json:"auditNarrative"`
	VerificationStatement string   `json:"verificationStatement"`
	RecommendedActions    []string `json:"recommendedActions"`
	CompletenessScore     float64  `json:"completenessScore"`
	ScoreProvided         bool     `json:"scoreProvided"`
}

const reproducibilitySystem = `You are auditing an analysis pipeline for reproducibility.
Describe what was done, in order, in a narrative an independent analyst could follow to
reproduce the results. State whether the results were verified by the consistency check.
Recommend concrete actions that would close gaps (unpinned versions, missing parameters,
undocumented manual steps). Score the completeness of the record from 0 to 100.

Response schema:
{
  "auditNarrative": string,
  "verificationStatement": string,
  "recommendedActions": [string],
  "completenessScore": number,
  "confidence": "high|medium|low",
  "warnings": [string]
}`

type stepFingerprint struct {
	Name       string         `json:"name"`
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

type reproducibilityFingerprint struct {
	ProjectTitle      string            `json:"projectTitle"`
	Steps             []stepFingerprint `json:"steps"`
	DatasetVersion    string            `json:"datasetVersion"`
	SoftwareVersions  map[string]string `json:"softwareVersions"`
	ConsistencyScore  *float64          `json:"consistencyScore"`
	ConsistencyPassed bool              `json:"consistencyPassed"`
}

// ReproducibilityHash projects the input onto everything but step timestamps,
// so re-running an identical pipeline keeps the cache warm.
func ReproducibilityHash(in ReproducibilityInput) any {
	steps := make([]stepFingerprint, len(in.Steps))
	for i, s := range in.Steps {
		steps[i] = stepFingerprint{Name: s.Name, Tool: s.Tool, Parameters: s.Parameters}
	}
	return reproducibilityFingerprint{
		ProjectTitle:      in.ProjectTitle,
		Steps:             steps,
		DatasetVersion:    in.DatasetVersion,
		SoftwareVersions:  in.SoftwareVersions,
		ConsistencyScore:  in.ConsistencyScore,
		ConsistencyPassed: in.ConsistencyPassed,
	}
}

// VerificationFallback is the verification statement used when the service
// omits one. It depends only on the consistency-check result.
func VerificationFallback(in ReproducibilityInput) string {
	if in.ConsistencyScore == nil {
		return "No consistency check has been run, so the results have not been independently verified."
	}
	score := module.Clamp(*in.ConsistencyScore, 0, 100)
	if in.ConsistencyPassed {
		return fmt.Sprintf("The consistency check passed with a reproducibility score of %g/100.", score)
	}
	return fmt.Sprintf("The consistency check did not pass (reproducibility score %g/100); the reported results could not be fully verified.", score)
}

// ReproducibilitySummary writes an audit narrative for an analysis pipeline.
func ReproducibilitySummary() module.Definition[ReproducibilityInput, ReproducibilityResult] {
	return module.Definition[ReproducibilityInput, ReproducibilityResult]{
		ID:              module.ReproducibilitySummary,
		Name:            "Reproducibility Summary",
		MaxOutputTokens: 1800,
		System:          reproducibilitySystem,
		Prompt:          reproducibilityPrompt,
		Hash:            ReproducibilityHash,
		Normalize:       normalizeReproducibility,
		Score: func(s ReproducibilityResult) *float64 {
			if !s.ScoreProvided {
				return nil
			}
			return &s.CompletenessScore
		},
		Format: formatReproducibility,
	}
}

func reproducibilityPrompt(in ReproducibilityInput) string {
	p := newPrompt("Summarize the reproducibility of this project.")
	p.field("Project", in.ProjectTitle)
	p.field("Dataset version", in.DatasetVersion)
	if len(in.SoftwareVersions) > 0 {
		p.data("Software versions", in.SoftwareVersions)
	}
	if len(in.Steps) > 0 {
		p.data("Pipeline steps", in.Steps)
	}
	p.field("Consistency check", VerificationFallback(in))
	return p.String()
}

func normalizeReproducibility(raw module.Raw, fallback string, in ReproducibilityInput) ReproducibilityResult {
	completeness, provided := clampedScore(raw, "completenessScore")
	return ReproducibilityResult{
		AuditNarrative:        raw.String("auditNarrative", fallback),
		VerificationStatement: orDefault(raw.String("verificationStatement", ""), VerificationFallback(in)),
		RecommendedActions:    raw.Strings("recommendedActions"),
		CompletenessScore:     completeness,
		ScoreProvided:         provided,
	}
}

func formatReproducibility(s ReproducibilityResult) string {
	var d module.Doc
	d.Title("Reproducibility Summary")
	if s.ScoreProvided {
		d.Field("Completeness", fmt.Sprintf("%g/100", s.CompletenessScore))
	}
	d.Section("Audit Trail", s.AuditNarrative)
	d.Section("Verification", s.VerificationStatement)
	d.Numbered("Recommended Actions", s.RecommendedActions)
	return d.String()
}
