package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-ielts/internal/analysis"
	"github.com/ahrav/go-ielts/internal/domain"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/pkg/activity"
)

// Event types emitted by the session activities.
const (
	EventSessionCreated   = "session.created"
	EventSessionStarted   = "session.started"
	EventSessionAssessed  = "session.assessed"
	EventSessionFailed    = "session.failed"
	EventSessionCancelled = "session.cancelled"

	eventSource = "session-activity"
)

// Application error types set on errors returned to Temporal.
const (
	ErrTypeValidation = "Validation"
	ErrTypeNotFound   = "NotFound"
	ErrTypeRateLimit  = "RateLimit"
	ErrTypeAnalysis   = "Analysis"
	ErrTypeProvider   = "Provider"
	ErrTypeStorage    = "Storage"
)

// CreateSessionInput is the input of the CreateSession activity.
type CreateSessionInput struct {
	SessionID        string          `json:"session_id"`
	TaskType         domain.TaskType `json:"task_type"`
	CustomPrompt     string          `json:"custom_prompt,omitempty"`
	QuickMode        bool            `json:"quick_mode"`
	TimeLimitMinutes int             `json:"time_limit_minutes,omitempty"`
	Difficulty       string          `json:"difficulty,omitempty"`
}

// SessionInfo is the part of a session a workflow needs.
type SessionInfo struct {
	SessionID        string               `json:"session_id"`
	Status           domain.SessionStatus `json:"status"`
	TaskType         domain.TaskType      `json:"task_type"`
	PromptText       string               `json:"prompt_text"`
	TimeLimitMinutes int                  `json:"time_limit_minutes"`
	WordCountMin     int                  `json:"word_count_min"`
	WordCountMax     int                  `json:"word_count_max"`
}

// SubmitResponseInput is the input of the SubmitResponse activity.
type SubmitResponseInput struct {
	SessionID        string `json:"session_id"`
	Text             string `json:"text"`
	TimeTakenSeconds *int   `json:"time_taken_seconds,omitempty"`
}

// SubmitResponseOutput carries the assessment of a submitted response.
type SubmitResponseOutput struct {
	SessionID  string               `json:"session_id"`
	Status     domain.SessionStatus `json:"status"`
	WordCount  int                  `json:"word_count"`
	Assessment *domain.Assessment   `json:"assessment,omitempty"`
}

type assessedPayload struct {
	OverallBand float64         `json:"overall_band"`
	TaskType    domain.TaskType `json:"task_type"`
	WordCount   int             `json:"word_count"`
	Model       string          `json:"assessor_model"`
}

type failedPayload struct {
	Reason      string `json:"reason"`
	RateLimited bool   `json:"rate_limited"`
}

// Activities exposes the Manager to Temporal. Every operation is safe to
// retry: creating with a known id returns the existing session, starting
// an in-progress session is a no-op, and resubmitting to a completed
// session returns its assessment.
type Activities struct {
	activity.BaseActivities
	manager *Manager
}

// NewActivities creates the session activity set.
func NewActivities(base activity.BaseActivities, manager *Manager) *Activities {
	return &Activities{BaseActivities: base, manager: manager}
}

// CreateSession creates and persists a session.
func (a *Activities) CreateSession(ctx context.Context, in CreateSessionInput) (*SessionInfo, error) {
	if in.SessionID == "" {
		return nil, nonRetryable(ErrTypeValidation, domain.ErrInvalidSession, "session id is required")
	}

	sess, err := a.manager.CreateSession(ctx, CreateOptions(in))
	if err != nil {
		return nil, toActivityError(err)
	}

	a.emit(ctx, EventSessionCreated, sess.SessionID, map[string]any{
		"task_type":          sess.TaskPrompt.TaskType,
		"quick_mode":         sess.QuickMode,
		"time_limit_minutes": sess.EffectiveTimeLimit(),
	})
	return sessionInfo(sess), nil
}

// StartSession moves a not-started session to in_progress. Any other
// session is returned as is.
func (a *Activities) StartSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := a.manager.GetSession(ctx, sessionID)
	if err != nil {
		return nil, toActivityError(err)
	}
	if sess.Status == domain.StatusNotStarted {
		if sess, err = a.manager.StartSession(ctx, sessionID); err != nil {
			return nil, toActivityError(err)
		}
		a.emit(ctx, EventSessionStarted, sessionID, map[string]any{"started_at": sess.StartedAt})
	}
	return sessionInfo(sess), nil
}

// SubmitResponse records and assesses the response. A rate-limited
// analysis keeps the session open and returns a retryable error; any other
// analysis failure moves the session to error and is not retried.
func (a *Activities) SubmitResponse(ctx context.Context, in SubmitResponseInput) (*SubmitResponseOutput, error) {
	a.RecordHeartbeat(ctx, "assessing", in.SessionID)

	sess, err := a.manager.submit(ctx, in.SessionID, in.Text, in.TimeTakenSeconds, true)
	if err != nil {
		if sess != nil && sess.Status == domain.StatusError {
			a.emit(ctx, EventSessionFailed, in.SessionID, failedPayload{
				Reason:      sess.ErrorMessage,
				RateLimited: analysis.IsRateLimited(err),
			})
		}
		if analysis.IsRateLimited(err) {
			activity.SafeLogWarn(ctx, "Assessment rate limited", "session_id", in.SessionID, "error", err)
		}
		return nil, toActivityError(err)
	}

	out := &SubmitResponseOutput{
		SessionID:  sess.SessionID,
		Status:     sess.Status,
		WordCount:  sess.UserResponse.WordCount,
		Assessment: sess.Assessment,
	}
	if sess.Assessment != nil {
		a.emit(ctx, EventSessionAssessed, sess.SessionID, assessedPayload{
			OverallBand: sess.Assessment.OverallBandScore,
			TaskType:    sess.TaskPrompt.TaskType,
			WordCount:   sess.UserResponse.WordCount,
			Model:       sess.Assessment.AssessorModel,
		})
	}
	return out, nil
}

// CancelSession cancels the session unless it already reached a terminal
// state, in which case the current state is returned.
func (a *Activities) CancelSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := a.manager.GetSession(ctx, sessionID)
	if err != nil {
		return nil, toActivityError(err)
	}
	if sess.Status.IsTerminal() {
		return sessionInfo(sess), nil
	}
	if sess, err = a.manager.CancelSession(ctx, sessionID); err != nil {
		return nil, toActivityError(err)
	}
	a.emit(ctx, EventSessionCancelled, sessionID, map[string]any{"cancelled_at": sess.CompletedAt})
	return sessionInfo(sess), nil
}

// FailSessionInput is the input of the FailSession activity.
type FailSessionInput struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// FailSession moves an in-progress session to error. A session that is
// already terminal is returned as is.
func (a *Activities) FailSession(ctx context.Context, in FailSessionInput) (*SessionInfo, error) {
	sess, err := a.manager.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, toActivityError(err)
	}
	if sess.Status.IsTerminal() {
		return sessionInfo(sess), nil
	}
	if sess, err = a.manager.FailSession(ctx, in.SessionID, errors.New(in.Reason)); err != nil {
		return nil, toActivityError(err)
	}
	a.emit(ctx, EventSessionFailed, in.SessionID, failedPayload{Reason: in.Reason})
	return sessionInfo(sess), nil
}

func (a *Activities) emit(ctx context.Context, eventType, sessionID string, payload any) {
	env, err := a.NewEnvelope(ctx, eventType, eventSource, sessionID, payload)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to build event", "event_type", eventType, "error", err)
		return
	}
	a.EmitEventSafe(ctx, env, eventType)
}

func sessionInfo(s *domain.PracticeSession) *SessionInfo {
	return &SessionInfo{
		SessionID:        s.SessionID,
		Status:           s.Status,
		TaskType:         s.TaskPrompt.TaskType,
		PromptText:       s.TaskPrompt.PromptText,
		TimeLimitMinutes: s.EffectiveTimeLimit(),
		WordCountMin:     s.TaskPrompt.WordCountMin,
		WordCountMax:     s.TaskPrompt.WordCountMax,
	}
}

// toActivityError maps a Manager error onto a Temporal application error.
// Rate limits and transient provider or storage failures are retryable.
func toActivityError(err error) error {
	var rl *llmerrors.RateLimitError
	switch {
	case errors.As(err, &rl):
		opts := temporal.ApplicationErrorOptions{Cause: err}
		if rl.RetryAfter > 0 {
			opts.NextRetryDelay = time.Duration(rl.RetryAfter) * time.Second
		}
		return temporal.NewApplicationErrorWithOptions(err.Error(), ErrTypeRateLimit, opts)
	case analysis.IsRateLimited(err):
		return temporal.NewApplicationError(err.Error(), ErrTypeRateLimit, err)
	case errors.Is(err, domain.ErrSessionNotFound):
		return nonRetryable(ErrTypeNotFound, err, "session not found")
	case errors.Is(err, domain.ErrEmptyResponse),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidSession),
		errors.Is(err, domain.ErrUnsupportedTaskType),
		errors.Is(err, ErrPromptRequired):
		return nonRetryable(ErrTypeValidation, err, err.Error())
	}

	var ae *analysis.AnalysisError
	if errors.As(err, &ae) {
		return nonRetryable(ErrTypeAnalysis, err, fmt.Sprintf("assessment failed during %s", ae.Op))
	}
	if wf := llmerrors.ClassifyLLMError(err); wf != nil && wf.Type != llmerrors.ErrorTypeUnknown {
		if wf.Retryable {
			return temporal.NewApplicationError(err.Error(), ErrTypeProvider, err)
		}
		return nonRetryable(ErrTypeProvider, err, err.Error())
	}
	return temporal.NewApplicationError(err.Error(), ErrTypeStorage, err)
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
