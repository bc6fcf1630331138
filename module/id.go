package module

import (
	"errors"
	"fmt"
)

// ID identifies one of the known modules.
type ID string

const (
	DatasetIntelligence    ID = "dataset-intelligence"
	AnalysisRecommendation ID = "analysis-recommendation"
	Interpretation         ID = "interpretation"
	MethodsSection         ID = "methods-section"
	ResultsNarrative       ID = "results-narrative"
	ConsistencyCheck       ID = "consistency-check"
	ReproducibilitySummary ID = "reproducibility-summary"
	IndicatorDetection     ID = "indicator-detection"
)

// ErrUnknownID is returned by ParseID for identifiers outside the known set.
var ErrUnknownID = errors.New("module: unknown module id")

var allIDs = []ID{
	DatasetIntelligence,
	AnalysisRecommendation,
	Interpretation,
	MethodsSection,
	ResultsNarrative,
	ConsistencyCheck,
	ReproducibilitySummary,
	IndicatorDetection,
}

// All returns every known module ID in declaration order.
func All() []ID {
	out := make([]ID, len(allIDs))
	copy(out, allIDs)
	return out
}

// Valid reports whether id is one of the known module IDs.
func (id ID) Valid() bool {
	for _, known := range allIDs {
		if id == known {
			return true
		}
	}
	return false
}

func (id ID) String() string {
	return string(id)
}

// ParseID converts s into a known ID.
func ParseID(s string) (ID, error) {
	id := ID(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownID, s)
	}
	return id, nil
}
