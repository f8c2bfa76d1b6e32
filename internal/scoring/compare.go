package scoring

import "github.com/ahrav/go-ielts/internal/domain"

// CompareAssessments reports b minus a for the overall band and for every
// criterion name appearing in either assessment. A criterion missing from
// one side counts as zero there. Keys are "overall_difference" and
// "<criterion name>_difference".
func CompareAssessments(a, b domain.Assessment) map[string]float64 {
	diff := map[string]float64{
		"overall_difference": b.OverallBandScore - a.OverallBandScore,
	}

	before := make(map[string]float64, len(a.CriteriaScores))
	for _, c := range a.CriteriaScores {
		before[c.CriterionName] = c.Score
	}
	after := make(map[string]float64, len(b.CriteriaScores))
	for _, c := range b.CriteriaScores {
		after[c.CriterionName] = c.Score
	}

	for name, s := range before {
		diff[name+"_difference"] = after[name] - s
	}
	for name, s := range after {
		if _, seen := before[name]; !seen {
			diff[name+"_difference"] = s
		}
	}
	return diff
}

// ImprovementRate is the change in overall band between the first and last
// assessment spread over days. It is zero with fewer than two assessments
// or a non-positive period.
func ImprovementRate(assessments []domain.Assessment, days int) float64 {
	if len(assessments) < 2 || days <= 0 {
		return 0
	}
	first := assessments[0].OverallBandScore
	last := assessments[len(assessments)-1].OverallBandScore
	return (last - first) / float64(days)
}
