// Package criteria provides the IELTS Writing rubric reference data and the
// stateless predicates that decide whether a band score is legal.
//
// The Catalog answers four questions for a task type: which criteria apply,
// what a given band means for a criterion, how many words are expected,
// and how long the candidate has. It is immutable after construction and
// safe to share across goroutines.
package criteria

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-ielts/internal/domain"
)

// Uniform rubric weight. Every criterion contributes a quarter of the
// overall band.
const criterionWeight = 0.25

// Task constraints from the IELTS test format.
const (
	Task2MinWords         = 250
	Task2RecommendedWords = 350
	Task2TimeLimitMinutes = 40

	Task1MinWords         = 150
	Task1RecommendedWords = 200
	Task1TimeLimitMinutes = 20
)

// WordCount is the expected length of a response.
type WordCount struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Catalog supplies band descriptors and task constraints.
type Catalog struct {
	tables map[domain.AssessmentCriterion]descriptorTable
	// bands lists cataloged bands in descending order.
	bands []float64
}

// NewCatalog builds the catalog over the built-in descriptor tables.
func NewCatalog() *Catalog {
	tables := map[domain.AssessmentCriterion]descriptorTable{
		domain.CriterionTaskAchievement:   taskResponseDescriptors,
		domain.CriterionTaskResponse:      taskResponseDescriptors,
		domain.CriterionCoherenceCohesion: coherenceDescriptors,
		domain.CriterionLexicalResource:   lexicalDescriptors,
		domain.CriterionGrammaticalRange:  grammaticalDescriptors,
	}
	bands := make([]float64, 0, len(taskResponseDescriptors))
	for b := range taskResponseDescriptors {
		bands = append(bands, b)
	}
	slices.Sort(bands)
	slices.Reverse(bands)
	return &Catalog{tables: tables, bands: bands}
}

// Descriptor returns the descriptor for criterion at band. The band is
// rounded to the nearest half (ties to even) and matched to the highest
// cataloged band at or below it; anything under the lowest cataloged band
// gets the lowest descriptor. Task Achievement shares the Task Response
// table, so the task type does not change the result.
func (c *Catalog) Descriptor(
	criterion domain.AssessmentCriterion,
	band float64,
	_ domain.TaskType,
) (domain.BandDescriptor, error) {
	table, ok := c.tables[criterion]
	if !ok {
		return domain.BandDescriptor{}, fmt.Errorf("%w: %q", domain.ErrUnknownCriterion, criterion)
	}

	rounded := math.RoundToEven(band*2) / 2
	key := c.bands[len(c.bands)-1]
	for _, b := range c.bands {
		if rounded >= b {
			key = b
			break
		}
	}

	d := table[key]
	d.Criterion = criterion
	d.KeyFeatures = slices.Clone(d.KeyFeatures)
	d.TypicalErrors = slices.Clone(d.TypicalErrors)
	return d, nil
}

// AllCriteria lists the four criteria scored for taskType, task slot first.
func (c *Catalog) AllCriteria(taskType domain.TaskType) ([]domain.AssessmentCriterion, error) {
	var task domain.AssessmentCriterion
	switch {
	case taskType == domain.TaskWriting2:
		task = domain.CriterionTaskResponse
	case taskType.IsTask1():
		task = domain.CriterionTaskAchievement
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedTaskType, taskType)
	}
	return []domain.AssessmentCriterion{
		task,
		domain.CriterionCoherenceCohesion,
		domain.CriterionLexicalResource,
		domain.CriterionGrammaticalRange,
	}, nil
}

// WordCountRequirements returns the minimum and recommended maximum word
// counts for taskType.
func (c *Catalog) WordCountRequirements(taskType domain.TaskType) (WordCount, error) {
	switch {
	case taskType == domain.TaskWriting2:
		return WordCount{Min: Task2MinWords, Max: Task2RecommendedWords}, nil
	case taskType.IsTask1():
		return WordCount{Min: Task1MinWords, Max: Task1RecommendedWords}, nil
	default:
		return WordCount{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedTaskType, taskType)
	}
}

// TimeLimit returns the time allowed for taskType in minutes.
func (c *Catalog) TimeLimit(taskType domain.TaskType) (int, error) {
	switch {
	case taskType == domain.TaskWriting2:
		return Task2TimeLimitMinutes, nil
	case taskType.IsTask1():
		return Task1TimeLimitMinutes, nil
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedTaskType, taskType)
	}
}

// CriterionWeight returns the weight of criterion in the overall band.
func (c *Catalog) CriterionWeight(domain.AssessmentCriterion) float64 {
	return criterionWeight
}

// OverallScore is the unweighted mean of scores rounded to the nearest
// half. An empty map scores zero.
func (c *Catalog) OverallScore(scores map[domain.AssessmentCriterion]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return math.RoundToEven(sum/float64(len(scores))*2) / 2
}
