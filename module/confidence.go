package module

import "strings"

// Confidence is a coarse trust label attached to a module output.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score thresholds used by DeriveConfidence.
const (
	HighScoreThreshold   = 80
	MediumScoreThreshold = 50
)

// ParseConfidence accepts high, medium or low in any letter case.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceLow:
		return ConfidenceLow, true
	default:
		return "", false
	}
}

// DeriveConfidence computes a fallback confidence label.
//
// When score is non-nil it wins: >=80 is high, >=50 is medium, anything else low.
// Otherwise the warning count decides: none is high, one or two is medium,
// three or more is low. The function is total and never fails.
func DeriveConfidence(warnings []string, score *float64) Confidence {
	if score != nil {
		switch {
		case *score >= HighScoreThreshold:
			return ConfidenceHigh
		case *score >= MediumScoreThreshold:
			return ConfidenceMedium
		default:
			return ConfidenceLow
		}
	}

	switch n := len(warnings); {
	case n == 0:
		return ConfidenceHigh
	case n <= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
