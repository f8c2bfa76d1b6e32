package criteria

import (
	"github.com/ahrav/go-ielts/internal/domain"
)

// IsValidBandScore reports whether x is a number in [0,9] on the 0.5 grid.
// Non-numeric values are never valid.
func IsValidBandScore(x any) bool {
	switch v := x.(type) {
	case float64:
		return domain.IsHalfStepBand(v)
	case float32:
		return domain.IsHalfStepBand(float64(v))
	case int:
		return domain.IsHalfStepBand(float64(v))
	case int8:
		return domain.IsHalfStepBand(float64(v))
	case int16:
		return domain.IsHalfStepBand(float64(v))
	case int32:
		return domain.IsHalfStepBand(float64(v))
	case int64:
		return domain.IsHalfStepBand(float64(v))
	case uint:
		return domain.IsHalfStepBand(float64(v))
	case uint8:
		return domain.IsHalfStepBand(float64(v))
	case uint16:
		return domain.IsHalfStepBand(float64(v))
	case uint32:
		return domain.IsHalfStepBand(float64(v))
	case uint64:
		return domain.IsHalfStepBand(float64(v))
	default:
		return false
	}
}

// AreValidCriterionScores reports whether scores is non-empty, keyed only
// by known criteria, and holds only legal band scores.
func AreValidCriterionScores(scores map[domain.AssessmentCriterion]float64) bool {
	if len(scores) == 0 {
		return false
	}
	for c, s := range scores {
		if !c.IsKnown() || !domain.IsHalfStepBand(s) {
			return false
		}
	}
	return true
}

// scoreLevels maps the lower bound of each tier to its label, highest first.
var scoreLevels = []struct {
	min   float64
	label string
}{
	{8.5, "Excellent"},
	{7.5, "Very Good"},
	{6.5, "Good"},
	{5.5, "Competent"},
	{4.5, "Modest"},
	{3.5, "Limited"},
	{2.5, "Extremely Limited"},
}

// DescribeScoreLevel returns the qualitative label for a band score.
func DescribeScoreLevel(score float64) string {
	for _, l := range scoreLevels {
		if score >= l.min {
			return l.label
		}
	}
	return "Intermittent/Non-user"
}
