package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ahrav/go-ielts/internal/domain"
)

const unknownModel = "unknown"

// llmReply is the strict decode target for an examiner reply. Pointer
// fields distinguish a missing key from a zero value; the validator tags
// reject anything absent, null, or off the band grid.
type llmReply struct {
	OverallScore    *llmOverallScore `json:"overall_score"    validate:"required"`
	CriteriaScores  []llmCriterion   `json:"criteria_scores"  validate:"required,dive"`
	GeneralFeedback *string          `json:"general_feedback" validate:"required"`
	Recommendations []string         `json:"recommendations"`
	Metadata        map[string]any   `json:"metadata"`
}

type llmOverallScore struct {
	Overall           *float64 `json:"overall" validate:"required,band"`
	TaskAchievement   *float64 `json:"task_achievement"`
	CoherenceCohesion *float64 `json:"coherence_cohesion"`
	LexicalResource   *float64 `json:"lexical_resource"`
	GrammaticalRange  *float64 `json:"grammatical_range"`
}

type llmCriterion struct {
	CriterionName       *string  `json:"criterion_name"        validate:"required"`
	Score               *float64 `json:"score"                 validate:"required,band"`
	Feedback            *string  `json:"feedback"              validate:"required"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
}

func decodeReply(raw json.RawMessage) (*llmReply, error) {
	var reply llmReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStructure, err)
	}
	if err := domain.Validator().Struct(&reply); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStructure, err)
	}
	names := make([]string, len(reply.CriteriaScores))
	for i, c := range reply.CriteriaScores {
		if strings.TrimSpace(*c.CriterionName) == "" {
			return nil, fmt.Errorf("%w: criterion %d has a blank name", ErrInvalidStructure, i+1)
		}
		names[i] = *c.CriterionName
	}
	if name, dup := domain.DuplicateName(names); dup {
		return nil, fmt.Errorf("%w: criterion %q appears more than once", ErrInvalidStructure, name)
	}
	return &reply, nil
}

// ValidateLLMResponse reports whether raw has the examiner reply shape:
// an overall_score object with a legal overall band, a criteria_scores
// array whose entries carry a name, a legal score, and feedback, and a
// general_feedback string. Criterion names must be distinct. It never
// panics.
func ValidateLLMResponse(raw json.RawMessage) bool {
	_, err := decodeReply(raw)
	return err == nil
}

// ParseLLMAssessment builds an Assessment from a validated examiner reply.
// Criterion order is preserved and the overall band is taken as stated;
// consistency is enforced later by the scoring package.
func ParseLLMAssessment(raw json.RawMessage) (domain.Assessment, error) {
	reply, err := decodeReply(raw)
	if err != nil {
		return domain.Assessment{}, analysisErr("parse", err)
	}

	a := domain.Assessment{
		OverallBandScore: *reply.OverallScore.Overall,
		CriteriaScores:   make([]domain.CriterionScore, 0, len(reply.CriteriaScores)),
		OverallFeedback:  *reply.GeneralFeedback,
		Recommendations:  append([]string{}, reply.Recommendations...),
		AssessedAt:       time.Now().UTC(),
		AssessorModel:    unknownModel,
	}
	for _, c := range reply.CriteriaScores {
		a.CriteriaScores = append(a.CriteriaScores, domain.CriterionScore{
			CriterionName:       *c.CriterionName,
			Score:               *c.Score,
			Feedback:            *c.Feedback,
			Strengths:           append([]string{}, c.Strengths...),
			AreasForImprovement: append([]string{}, c.AreasForImprovement...),
		})
	}
	if len(reply.Metadata) > 0 {
		a.Metadata = reply.Metadata
		if model, ok := reply.Metadata["model"].(string); ok && model != "" {
			a.AssessorModel = model
		}
	}
	return a, nil
}

var criterionSynonyms = map[string]domain.AssessmentCriterion{
	"task_achievement":               domain.CriterionTaskResponse,
	"task_response":                  domain.CriterionTaskResponse,
	"coherence_cohesion":             domain.CriterionCoherenceCohesion,
	"coherence_and_cohesion":         domain.CriterionCoherenceCohesion,
	"lexical_resource":               domain.CriterionLexicalResource,
	"grammatical_range":              domain.CriterionGrammaticalRange,
	"grammatical_range_and_accuracy": domain.CriterionGrammaticalRange,
}

// ClassifyCriterion maps an examiner-supplied criterion name to a rubric
// criterion using the synonym table, then keyword matching. The boolean is
// false when nothing matches.
func ClassifyCriterion(name string) (domain.AssessmentCriterion, bool) {
	n := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	n = strings.ReplaceAll(n, "&", "and")
	if c, ok := criterionSynonyms[n]; ok {
		return c, true
	}
	switch {
	case strings.Contains(n, "task"):
		return domain.CriterionTaskResponse, true
	case strings.Contains(n, "coherence"), strings.Contains(n, "cohesion"):
		return domain.CriterionCoherenceCohesion, true
	case strings.Contains(n, "lexical"), strings.Contains(n, "vocabulary"):
		return domain.CriterionLexicalResource, true
	case strings.Contains(n, "grammar"), strings.Contains(n, "grammatical"):
		return domain.CriterionGrammaticalRange, true
	default:
		return "", false
	}
}

// NormalizeCriterionName is ClassifyCriterion with unmatched names
// defaulting to Task Response.
func NormalizeCriterionName(name string) domain.AssessmentCriterion {
	if c, ok := ClassifyCriterion(name); ok {
		return c
	}
	return domain.CriterionTaskResponse
}
