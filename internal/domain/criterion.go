// Package domain defines the core value types of the IELTS writing practice
// system: rubric criteria, task types, band scores, assessments, and practice
// sessions. Types here carry no behavior beyond validation, cloning, and the
// session state machine; scoring and analysis live in their own packages.
package domain

// AssessmentCriterion identifies one of the four IELTS Writing rubric
// dimensions. Task Achievement (Task 1) and Task Response (Task 2) occupy
// the same rubric slot under different names.
type AssessmentCriterion string

// Rubric criteria.
const (
	CriterionTaskAchievement   AssessmentCriterion = "task_achievement"
	CriterionTaskResponse      AssessmentCriterion = "task_response"
	CriterionCoherenceCohesion AssessmentCriterion = "coherence_cohesion"
	CriterionLexicalResource   AssessmentCriterion = "lexical_resource"
	CriterionGrammaticalRange  AssessmentCriterion = "grammatical_range"
)

// IsKnown reports whether c is one of the recognized rubric criteria.
func (c AssessmentCriterion) IsKnown() bool {
	switch c {
	case CriterionTaskAchievement, CriterionTaskResponse, CriterionCoherenceCohesion,
		CriterionLexicalResource, CriterionGrammaticalRange:
		return true
	default:
		return false
	}
}

// DisplayName returns the examiner-facing name of the criterion.
func (c AssessmentCriterion) DisplayName() string {
	switch c {
	case CriterionTaskAchievement:
		return "Task Achievement"
	case CriterionTaskResponse:
		return "Task Response"
	case CriterionCoherenceCohesion:
		return "Coherence and Cohesion"
	case CriterionLexicalResource:
		return "Lexical Resource"
	case CriterionGrammaticalRange:
		return "Grammatical Range and Accuracy"
	default:
		return string(c)
	}
}

// TaskType identifies which IELTS writing task governs word-count and
// time constraints.
type TaskType string

// Writing task types.
const (
	TaskWriting1Academic TaskType = "writing_task_1_academic"
	TaskWriting1General  TaskType = "writing_task_1_general"
	TaskWriting2         TaskType = "writing_task_2"
)

// IsTask1 reports whether t is an academic or general Task 1.
func (t TaskType) IsTask1() bool {
	return t == TaskWriting1Academic || t == TaskWriting1General
}

// IsWriting reports whether t is any supported writing task.
func (t TaskType) IsWriting() bool {
	return t == TaskWriting2 || t.IsTask1()
}

// DisplayName returns a human readable label for the task type.
func (t TaskType) DisplayName() string {
	switch t {
	case TaskWriting1Academic:
		return "Writing Task 1 (Academic)"
	case TaskWriting1General:
		return "Writing Task 1 (General Training)"
	case TaskWriting2:
		return "Writing Task 2"
	default:
		return string(t)
	}
}

// ParseTaskType maps a CLI-friendly alias or canonical value to a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	switch s {
	case "2", "task2", "task-2", string(TaskWriting2):
		return TaskWriting2, nil
	case "1a", "task1-academic", "academic", string(TaskWriting1Academic):
		return TaskWriting1Academic, nil
	case "1g", "task1-general", "general", string(TaskWriting1General):
		return TaskWriting1General, nil
	default:
		return "", ErrUnsupportedTaskType
	}
}

// BandDescriptor is the canned qualitative description of a band for one
// criterion. Descriptors are reference data and never mutated.
type BandDescriptor struct {
	Band          float64             `json:"band"`
	Criterion     AssessmentCriterion `json:"criterion"`
	Description   string              `json:"description"`
	KeyFeatures   []string            `json:"key_features"`
	TypicalErrors []string            `json:"typical_errors"`
}
