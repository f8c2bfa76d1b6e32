// Package scoring derives overall IELTS band scores from criterion scores
// and enforces score consistency on LLM-produced assessments.
//
// The calculator is pure: every function is deterministic, allocation-light,
// and safe for concurrent use. Assessment validation and correction never
// mutate their input; corrected assessments are deep copies.
package scoring

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ahrav/go-ielts/internal/criteria"
	"github.com/ahrav/go-ielts/internal/domain"
)

// RoundingMethod selects how a raw weighted mean snaps to the band grid.
type RoundingMethod int

const (
	// NearestHalf rounds to the closest half band, ties upward.
	NearestHalf RoundingMethod = iota
	// Conservative truncates down to the half band at or below.
	Conservative
	// Optimistic always moves up one half step from the truncated value,
	// so a raw score already on the grid is raised by 0.5.
	Optimistic
)

// String returns the policy name.
func (m RoundingMethod) String() string {
	switch m {
	case NearestHalf:
		return "nearest_half"
	case Conservative:
		return "conservative"
	case Optimistic:
		return "optimistic"
	default:
		return fmt.Sprintf("RoundingMethod(%d)", int(m))
	}
}

const (
	minBand = 0.0
	maxBand = 9.0

	defaultWeight   = 0.25
	weightTolerance = 0.01
)

// slotOrder is the fixed rubric order used when a score must be placed
// without a recognizable name.
var slotOrder = []domain.AssessmentCriterion{
	domain.CriterionTaskResponse,
	domain.CriterionCoherenceCohesion,
	domain.CriterionLexicalResource,
	domain.CriterionGrammaticalRange,
}

// RoundToBandScore clamps raw to [0,9] and snaps it to the half-band grid.
func RoundToBandScore(raw float64, method RoundingMethod) float64 {
	if math.IsNaN(raw) || raw < minBand {
		return minBand
	}
	if raw > maxBand {
		return maxBand
	}

	var out float64
	switch method {
	case Conservative:
		out = math.Floor(raw*2) / 2
	case Optimistic:
		out = (math.Floor(raw*2) + 1) / 2
	default:
		out = math.Floor(raw*2+0.5) / 2
	}
	return math.Min(out, maxBand)
}

// CalculateOverallScore computes the weighted mean of scores and rounds it
// with method. A nil weights map weighs every present criterion equally.
// Weights that do not sum to one (within 0.01) are renormalized; a
// criterion without a weight counts at 0.25.
func CalculateOverallScore(
	scores map[domain.AssessmentCriterion]float64,
	weights map[domain.AssessmentCriterion]float64,
	method RoundingMethod,
) (float64, error) {
	if !criteria.AreValidCriterionScores(scores) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidScores, scores)
	}

	if weights == nil {
		weights = make(map[domain.AssessmentCriterion]float64, len(scores))
		for c := range scores {
			weights[c] = defaultWeight
		}
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if math.Abs(total-1) > weightTolerance {
		if total <= 0 {
			return 0, fmt.Errorf("%w: weights sum to %v", domain.ErrInvalidScores, total)
		}
		normalized := make(map[domain.AssessmentCriterion]float64, len(weights))
		for c, w := range weights {
			normalized[c] = w / total
		}
		weights = normalized
	}

	var sum float64
	for c, s := range scores {
		w, ok := weights[c]
		if !ok {
			w = defaultWeight
		}
		sum += s * w
	}
	return RoundToBandScore(sum, method), nil
}

// CalculateDetailedBandScore computes the overall band with NearestHalf
// and fills each supplied rubric slot with its rounded score.
func CalculateDetailedBandScore(scores map[domain.AssessmentCriterion]float64) (domain.BandScore, error) {
	overall, err := CalculateOverallScore(scores, nil, NearestHalf)
	if err != nil {
		return domain.BandScore{}, err
	}

	bs := domain.BandScore{Overall: overall}
	for c, s := range scores {
		rounded := RoundToBandScore(s, NearestHalf)
		switch c {
		case domain.CriterionTaskAchievement, domain.CriterionTaskResponse:
			bs.TaskAchievement = &rounded
		case domain.CriterionCoherenceCohesion:
			bs.CoherenceCohesion = &rounded
		case domain.CriterionLexicalResource:
			bs.LexicalResource = &rounded
		case domain.CriterionGrammaticalRange:
			bs.GrammaticalRange = &rounded
		}
	}
	return bs, nil
}

// CalculateBandScore is CalculateDetailedBandScore over free-text criterion
// names. Names that classify to no criterion are ignored.
func CalculateBandScore(scores map[string]float64) (domain.BandScore, error) {
	converted := make(map[domain.AssessmentCriterion]float64, len(scores))
	for name, s := range scores {
		if c, ok := ClassifyCriterionName(name); ok {
			converted[c] = s
		}
	}
	return CalculateDetailedBandScore(converted)
}

// ClassifyCriterionName maps a free-text criterion name to a rubric slot by
// substring, checking task, coherence, lexical, and grammar in that order.
// Task Achievement and Task Response both land in the Task Response slot.
func ClassifyCriterionName(name string) (domain.AssessmentCriterion, bool) {
	n := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	switch {
	case strings.Contains(n, "task"):
		return domain.CriterionTaskResponse, true
	case strings.Contains(n, "coherence"):
		return domain.CriterionCoherenceCohesion, true
	case strings.Contains(n, "lexical"):
		return domain.CriterionLexicalResource, true
	case strings.Contains(n, "grammar"), strings.Contains(n, "grammatical"):
		return domain.CriterionGrammaticalRange, true
	default:
		return "", false
	}
}

// ScoreDistribution summarizes a list of scores.
type ScoreDistribution struct {
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	Mode   *float64 `json:"mode,omitempty"` // nil when no value repeats
	StdDev float64  `json:"std_dev"`        // sample standard deviation
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Range  float64  `json:"range"`
}

// CalculateScoreDistribution returns descriptive statistics for scores.
// An empty input yields the zero distribution.
func CalculateScoreDistribution(scores []float64) ScoreDistribution {
	n := len(scores)
	if n == 0 {
		return ScoreDistribution{}
	}

	sorted := slices.Clone(scores)
	slices.Sort(sorted)

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(n)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var stdDev float64
	if n > 1 {
		var sq float64
		for _, s := range scores {
			sq += (s - mean) * (s - mean)
		}
		stdDev = math.Sqrt(sq / float64(n-1))
	}

	return ScoreDistribution{
		Count:  n,
		Mean:   mean,
		Median: median,
		Mode:   mode(scores),
		StdDev: stdDev,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Range:  sorted[n-1] - sorted[0],
	}
}

// mode returns the most frequent value, first occurrence winning ties, or
// nil when every value is distinct.
func mode(scores []float64) *float64 {
	counts := make(map[float64]int, len(scores))
	for _, s := range scores {
		counts[s]++
	}
	if len(counts) == len(scores) {
		return nil
	}
	best, bestCount := scores[0], 0
	for _, s := range scores {
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	return &best
}

// ConsistencyReport describes how stable a series of assessments is.
type ConsistencyReport struct {
	OverallDistribution    ScoreDistribution                                `json:"overall_distribution"`
	CriterionDistributions map[domain.AssessmentCriterion]ScoreDistribution `json:"criterion_distributions"`
	// ImprovementTrend is the least-squares slope of the overall score per
	// assessment, nil with fewer than two assessments.
	ImprovementTrend *float64 `json:"improvement_trend,omitempty"`
	AssessmentCount  int      `json:"assessment_count"`
	// ConsistencyScore is 1 - stdDev/2; higher means steadier scores.
	ConsistencyScore float64 `json:"consistency_score"`
}

// AnalyzeScoreConsistency compares assessments given oldest first.
// Criterion scores whose names classify to no rubric slot are skipped.
func AnalyzeScoreConsistency(assessments []domain.Assessment) ConsistencyReport {
	if len(assessments) == 0 {
		return ConsistencyReport{}
	}

	overall := make([]float64, 0, len(assessments))
	perCriterion := make(map[domain.AssessmentCriterion][]float64)
	for i := range assessments {
		a := &assessments[i]
		overall = append(overall, a.OverallBandScore)
		for _, cs := range a.CriteriaScores {
			if c, ok := ClassifyCriterionName(cs.CriterionName); ok {
				perCriterion[c] = append(perCriterion[c], cs.Score)
			}
		}
	}

	report := ConsistencyReport{
		OverallDistribution:    CalculateScoreDistribution(overall),
		CriterionDistributions: make(map[domain.AssessmentCriterion]ScoreDistribution, len(perCriterion)),
		AssessmentCount:        len(assessments),
	}
	for c, scores := range perCriterion {
		report.CriterionDistributions[c] = CalculateScoreDistribution(scores)
	}
	if slope, ok := domain.LinearTrend(overall); ok {
		report.ImprovementTrend = &slope
	}
	report.ConsistencyScore = 1 - report.OverallDistribution.StdDev/2
	return report
}
