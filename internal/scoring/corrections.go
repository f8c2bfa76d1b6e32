package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ahrav/go-ielts/internal/domain"
)

// consistencyTolerance is the largest drift allowed between the stated
// overall band and the one recomputed from criterion scores.
const consistencyTolerance = 0.5

// ValidateAssessmentScores checks that the overall band and every criterion
// score are legal and that the overall band agrees with the criterion
// scores to within half a band. Each message describes one problem found.
func ValidateAssessmentScores(a domain.Assessment) (bool, []string) {
	var errs []string

	if !domain.IsHalfStepBand(a.OverallBandScore) {
		errs = append(errs, "Invalid overall score: "+formatScore(a.OverallBandScore))
	}
	for _, c := range a.CriteriaScores {
		if !domain.IsHalfStepBand(c.Score) {
			errs = append(errs, fmt.Sprintf("Invalid score for %s: %s", c.CriterionName, formatScore(c.Score)))
		}
	}
	if name, dup := a.DuplicateCriterion(); dup {
		errs = append(errs, "Duplicate criterion: "+strings.TrimSpace(name))
	}

	if slots := criterionSlots(a.CriteriaScores); len(slots) > 0 {
		calculated, err := CalculateOverallScore(slots, nil, NearestHalf)
		if err == nil && math.Abs(calculated-a.OverallBandScore) > consistencyTolerance {
			errs = append(errs, fmt.Sprintf(
				"Overall score (%s) inconsistent with criterion scores (calculated: %s)",
				formatScore(a.OverallBandScore), formatScore(calculated),
			))
		}
	}

	return len(errs) == 0, errs
}

// SuggestScoreCorrections returns a copy of a with repeated criteria reduced
// to their last entry, every illegal criterion score rounded to the
// nearest half band, and the overall band recomputed from the criterion
// scores. When no criterion can be placed the overall
// band is left as it was. Applying it twice gives the same result as once.
func SuggestScoreCorrections(a domain.Assessment) domain.Assessment {
	corrected := a.Clone()
	corrected.CriteriaScores = dropRepeatedCriteria(corrected.CriteriaScores)
	for i := range corrected.CriteriaScores {
		cs := &corrected.CriteriaScores[i]
		if !domain.IsHalfStepBand(cs.Score) {
			cs.Score = RoundToBandScore(cs.Score, NearestHalf)
		}
	}

	if slots := criterionSlots(corrected.CriteriaScores); len(slots) > 0 {
		if overall, err := CalculateOverallScore(slots, nil, NearestHalf); err == nil {
			corrected.OverallBandScore = overall
		}
	}
	return corrected
}

// ValidateAndCorrect returns a unchanged with no messages when it is valid.
// Otherwise it returns the corrected copy together with the validation
// messages describing what was wrong with the input.
func ValidateAndCorrect(a domain.Assessment) (domain.Assessment, []string) {
	valid, errs := ValidateAssessmentScores(a)
	if valid {
		return a, nil
	}
	return SuggestScoreCorrections(a), errs
}

// criterionSlots places criterion scores into the four rubric slots. Scores
// are placed by name first; a later score with the same classification
// replaces an earlier one. Scores whose names classify to nothing fill the
// remaining vacant slots in rubric order. Off-grid values are rounded so
// the result is always usable for an overall computation.
func criterionSlots(scores []domain.CriterionScore) map[domain.AssessmentCriterion]float64 {
	slots := make(map[domain.AssessmentCriterion]float64, len(slotOrder))
	var unplaced []float64
	for _, cs := range scores {
		v := RoundToBandScore(cs.Score, NearestHalf)
		if c, ok := ClassifyCriterionName(cs.CriterionName); ok {
			slots[c] = v
			continue
		}
		unplaced = append(unplaced, v)
	}

	for _, c := range slotOrder {
		if len(unplaced) == 0 {
			break
		}
		if _, taken := slots[c]; taken {
			continue
		}
		slots[c] = unplaced[0]
		unplaced = unplaced[1:]
	}
	return slots
}

// dropRepeatedCriteria keeps the last entry for each criterion name.
func dropRepeatedCriteria(scores []domain.CriterionScore) []domain.CriterionScore {
	last := make(map[string]int, len(scores))
	for i, cs := range scores {
		last[domain.CriterionKey(cs.CriterionName)] = i
	}
	if len(last) == len(scores) {
		return scores
	}
	out := make([]domain.CriterionScore, 0, len(last))
	for i, cs := range scores {
		if last[domain.CriterionKey(cs.CriterionName)] == i {
			out = append(out, cs)
		}
	}
	return out
}

// formatScore renders whole bands with one decimal ("7.0") and anything
// else at full precision.
func formatScore(x float64) string {
	if x == math.Trunc(x) && !math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', 1, 64)
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}
