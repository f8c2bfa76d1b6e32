package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ahrav/go-ielts/internal/domain"
)

// Prompts is the system and user message pair sent to the examiner model.
type Prompts struct {
	System string
	User   string
}

const writingTask2SystemPrompt = `You are an expert IELTS examiner with extensive experience in evaluating IELTS Writing Task 2 responses. Your role is to provide accurate, detailed, and constructive feedback following official IELTS assessment criteria.

ASSESSMENT CRITERIA:
1. Task Achievement (25%): How well the response addresses the task, presents a clear position, and supports ideas with relevant examples.
2. Coherence and Cohesion (25%): Logical organization, clear progression, appropriate use of cohesive devices, and effective paragraphing.
3. Lexical Resource (25%): Range and accuracy of vocabulary, appropriateness of word choice, and spelling accuracy.
4. Grammatical Range and Accuracy (25%): Range of grammatical structures, accuracy of grammar and punctuation, and error frequency/impact.

BAND SCORE DESCRIPTORS:
- Band 9: Expert user with full operational command
- Band 8: Very good user with fully operational command
- Band 7: Good user with operational command
- Band 6: Competent user with generally effective command
- Band 5: Modest user with partial command
- Band 4: Limited user with limited command
- Band 3: Extremely limited user
- Band 2: Intermittent user
- Band 1: Non-user

RESPONSE FORMAT:
Provide your assessment in the following JSON format:
{
    "overall_score": {
        "overall": 7.0,
        "task_achievement": 7.0,
        "coherence_cohesion": 7.5,
        "lexical_resource": 6.5,
        "grammatical_range": 7.0
    },
    "criteria_scores": [
        {
            "criterion_name": "Task Achievement",
            "score": 7.0,
            "feedback": "Detailed feedback for this criterion...",
            "strengths": ["List of strengths"],
            "areas_for_improvement": ["List of areas to improve"]
        }
        // ... repeat for all criteria
    ],
    "general_feedback": "Overall feedback on the response...",
    "recommendations": ["List of specific recommendations for improvement"]
}

Be thorough, fair, and constructive in your assessment. Focus on both strengths and areas for improvement.`

const writingTask2UserPrompt = `Please assess the following IELTS Writing Task 2 response according to official IELTS criteria:

TASK PROMPT:
%s

CANDIDATE RESPONSE:
%s

WORD COUNT: %d words

Please provide a comprehensive assessment with specific feedback for each criterion, an overall band score, and actionable recommendations for improvement.`

// BuildAssessmentPrompts formats the examiner prompts for a response.
// Only Writing Task 2 has an examiner prompt.
func BuildAssessmentPrompts(taskPrompt, response string, taskType domain.TaskType) (Prompts, error) {
	if strings.TrimSpace(taskPrompt) == "" || strings.TrimSpace(response) == "" {
		return Prompts{}, fmt.Errorf("%w: task prompt and response are required", domain.ErrEmptyResponse)
	}
	if taskType != domain.TaskWriting2 {
		return Prompts{}, fmt.Errorf("%w: no examiner prompt for %q", domain.ErrUnsupportedTaskType, taskType)
	}
	return Prompts{
		System: writingTask2SystemPrompt,
		User:   fmt.Sprintf(writingTask2UserPrompt, taskPrompt, response, domain.CountWords(response)),
	}, nil
}

// AssessmentSchema is the JSON schema requested as the model's structured
// output format.
var AssessmentSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["overall_score", "criteria_scores", "general_feedback", "recommendations"],
  "properties": {
    "overall_score": {
      "type": "object",
      "additionalProperties": false,
      "required": ["overall", "task_achievement", "coherence_cohesion", "lexical_resource", "grammatical_range"],
      "properties": {
        "overall": {"type": "number"},
        "task_achievement": {"type": "number"},
        "coherence_cohesion": {"type": "number"},
        "lexical_resource": {"type": "number"},
        "grammatical_range": {"type": "number"}
      }
    },
    "criteria_scores": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["criterion_name", "score", "feedback", "strengths", "areas_for_improvement"],
        "properties": {
          "criterion_name": {"type": "string"},
          "score": {"type": "number"},
          "feedback": {"type": "string"},
          "strengths": {"type": "array", "items": {"type": "string"}},
          "areas_for_improvement": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "general_feedback": {"type": "string"},
    "recommendations": {"type": "array", "items": {"type": "string"}}
  }
}`)
