package domain

import (
	"fmt"
	"strings"
	"time"
)

// CriterionScore is one rubric dimension of an assessment as reported by
// the examiner model. CriterionName is free text; classification into an
// AssessmentCriterion happens in the scoring and analysis packages.
type CriterionScore struct {
	CriterionName       string   `json:"criterion_name"        validate:"required"`
	Score               float64  `json:"score"                 validate:"min=0,max=9"`
	Feedback            string   `json:"feedback"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
}

// Validate checks structural constraints. A score off the half-step grid
// is not a structural error; it is detected and corrected by the scoring
// package.
func (c *CriterionScore) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAssessment, err)
	}
	return nil
}

// BandScore is the overall band plus the four rubric slots. A nil slot
// means the criterion was not supplied.
type BandScore struct {
	Overall           float64  `json:"overall"`
	TaskAchievement   *float64 `json:"task_achievement,omitempty"`
	CoherenceCohesion *float64 `json:"coherence_cohesion,omitempty"`
	LexicalResource   *float64 `json:"lexical_resource,omitempty"`
	GrammaticalRange  *float64 `json:"grammatical_range,omitempty"`
}

// Assessment is the validated, enriched result of scoring one response.
type Assessment struct {
	OverallBandScore float64             `json:"overall_band_score" validate:"min=0,max=9"`
	CriteriaScores   []CriterionScore    `json:"criteria_scores"    validate:"dive"`
	OverallFeedback  string              `json:"overall_feedback"`
	DetailedFeedback map[string][]string `json:"detailed_feedback,omitempty"`
	Recommendations  []string            `json:"recommendations"`
	AssessedAt       time.Time           `json:"assessed_at"`
	AssessorModel    string              `json:"assessor_model"`

	// Metadata carries provider details and pipeline annotations such as
	// analysis duration and applied score corrections.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks structural constraints on the assessment. Each
// criterion may appear only once.
func (a *Assessment) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAssessment, err)
	}
	if name, dup := a.DuplicateCriterion(); dup {
		return fmt.Errorf("%w: criterion %q appears more than once", ErrInvalidAssessment, name)
	}
	return nil
}

// DuplicateCriterion returns the first criterion name that repeats an
// earlier one, compared without case or surrounding space.
func (a *Assessment) DuplicateCriterion() (string, bool) {
	names := make([]string, len(a.CriteriaScores))
	for i, c := range a.CriteriaScores {
		names[i] = c.CriterionName
	}
	return DuplicateName(names)
}

// DuplicateName returns the first name in names that repeats an earlier
// one, compared without case or surrounding space.
func DuplicateName(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		key := CriterionKey(n)
		if _, dup := seen[key]; dup {
			return n, true
		}
		seen[key] = struct{}{}
	}
	return "", false
}

// CriterionKey is the form under which two criterion names count as the
// same criterion.
func CriterionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Clone returns a deep copy so correction and enrichment never alias the
// caller's slices or maps.
func (a Assessment) Clone() Assessment {
	out := a
	if a.CriteriaScores != nil {
		out.CriteriaScores = make([]CriterionScore, len(a.CriteriaScores))
		for i, c := range a.CriteriaScores {
			c.Strengths = cloneStrings(c.Strengths)
			c.AreasForImprovement = cloneStrings(c.AreasForImprovement)
			out.CriteriaScores[i] = c
		}
	}
	if a.DetailedFeedback != nil {
		out.DetailedFeedback = make(map[string][]string, len(a.DetailedFeedback))
		for k, v := range a.DetailedFeedback {
			out.DetailedFeedback[k] = cloneStrings(v)
		}
	}
	out.Recommendations = cloneStrings(a.Recommendations)
	out.Metadata = cloneAnyMap(a.Metadata)
	return out
}

// CriterionScoreByName finds a criterion by case-insensitive name.
func (a *Assessment) CriterionScoreByName(name string) (CriterionScore, bool) {
	for _, c := range a.CriteriaScores {
		if strings.EqualFold(c.CriterionName, name) {
			return c, true
		}
	}
	return CriterionScore{}, false
}

// SetMetadata records a pipeline annotation, allocating the map on first use.
func (a *Assessment) SetMetadata(key string, value any) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
}
