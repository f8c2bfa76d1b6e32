package domain

import (
	"fmt"
	"time"
)

// TaskPrompt is the task shown to the candidate together with its
// constraints.
type TaskPrompt struct {
	TaskType         TaskType `json:"task_type"          validate:"required"`
	PromptText       string   `json:"prompt_text"        validate:"required"`
	TimeLimitMinutes int      `json:"time_limit_minutes" validate:"min=0"`
	WordCountMin     int      `json:"word_count_min"     validate:"min=0"`
	WordCountMax     int      `json:"word_count_max"     validate:"gtefield=WordCountMin"`
}

// Validate checks the prompt and its task type.
func (t *TaskPrompt) Validate() error {
	if !t.TaskType.IsWriting() {
		return fmt.Errorf("%w: %q", ErrUnsupportedTaskType, t.TaskType)
	}
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return nil
}

// UserResponse is the candidate's written answer.
type UserResponse struct {
	Text             string    `json:"text"`
	WordCount        int       `json:"word_count"`
	TimeTakenSeconds *int      `json:"time_taken_seconds,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// NewUserResponse builds a response with WordCount derived from text.
func NewUserResponse(text string, submittedAt time.Time) UserResponse {
	return UserResponse{
		Text:        text,
		WordCount:   CountWords(text),
		SubmittedAt: submittedAt,
	}
}

// PracticeSession is one attempt at a writing task. The session owns its
// response and assessment exclusively.
type PracticeSession struct {
	SessionID        string        `json:"session_id"  validate:"required,uuid"`
	TaskPrompt       TaskPrompt    `json:"task_prompt"`
	UserResponse     UserResponse  `json:"user_response"`
	Assessment       *Assessment   `json:"assessment,omitempty" validate:"-"`
	Status           SessionStatus `json:"status"      validate:"required"`
	QuickMode        bool          `json:"quick_mode"`
	TimeLimitMinutes *int          `json:"time_limit_minutes,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

// Validate checks the session and its nested prompt.
func (p *PracticeSession) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSession, p.Status)
	}
	if err := p.TaskPrompt.Validate(); err != nil {
		return err
	}
	if p.Assessment != nil {
		return p.Assessment.Validate()
	}
	return nil
}

// EffectiveTimeLimit returns the session override or the prompt's limit.
func (p *PracticeSession) EffectiveTimeLimit() int {
	if p.TimeLimitMinutes != nil {
		return *p.TimeLimitMinutes
	}
	return p.TaskPrompt.TimeLimitMinutes
}

// TimeRemaining reports how long an in-progress session has left. The
// boolean is false when the session is not running.
func (p *PracticeSession) TimeRemaining(now time.Time) (time.Duration, bool) {
	if p.Status != StatusInProgress || p.StartedAt == nil {
		return 0, false
	}
	limit := time.Duration(p.EffectiveTimeLimit()) * time.Minute
	remaining := limit - now.Sub(*p.StartedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
