package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/session"
)

// Signal and query names understood by PracticeWorkflow.
const (
	SignalSubmitResponse = "submit-response"
	SignalCancel         = "cancel-session"
	QuerySession         = "session"
)

// SubmitGrace is how long past the time limit a submission is still
// accepted before the session is cancelled.
const SubmitGrace = 5 * time.Minute

// AssessmentAttempts bounds the retries of a rate-limited assessment.
const AssessmentAttempts = 5

// Phases reported by the session query.
const (
	PhaseCreating  = "creating"
	PhaseWaiting   = "waiting_for_response"
	PhaseAssessing = "assessing"
	PhaseDone      = "done"
)

// PracticeInput configures a durable practice run.
type PracticeInput struct {
	TaskType         domain.TaskType `json:"task_type"`
	CustomPrompt     string          `json:"custom_prompt,omitempty"`
	QuickMode        bool            `json:"quick_mode"`
	TimeLimitMinutes int             `json:"time_limit_minutes,omitempty" validate:"min=0,max=180"`
	Difficulty       string          `json:"difficulty,omitempty"         validate:"omitempty,oneof=easy medium hard"`
}

// Validate rejects input the session layer would refuse anyway.
func (in PracticeInput) Validate() error {
	if err := domain.Validator().Struct(in); err != nil {
		return err
	}
	taskType := in.TaskType
	if taskType == "" {
		taskType = domain.TaskWriting2
	}
	if !taskType.IsWriting() {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedTaskType, taskType)
	}
	if taskType != domain.TaskWriting2 && strings.TrimSpace(in.CustomPrompt) == "" {
		return fmt.Errorf("%w for %s", session.ErrPromptRequired, taskType.DisplayName())
	}
	return nil
}

// SubmitSignal carries the essay.
type SubmitSignal struct {
	Text             string `json:"text"`
	TimeTakenSeconds *int   `json:"time_taken_seconds,omitempty"`
}

// CancelSignal ends the session without an assessment.
type CancelSignal struct {
	Reason string `json:"reason,omitempty"`
}

// PracticeResult is the outcome of a finished run.
type PracticeResult struct {
	SessionID    string               `json:"session_id"`
	Status       domain.SessionStatus `json:"status"`
	WordCount    int                  `json:"word_count,omitempty"`
	Assessment   *domain.Assessment   `json:"assessment,omitempty"`
	CancelReason string               `json:"cancel_reason,omitempty"`
}

// PracticeState is returned by the session query.
type PracticeState struct {
	// Version is the workflow code version the run was started under.
	Version  int                  `json:"version"`
	Phase    string               `json:"phase"`
	Session  *session.SessionInfo `json:"session,omitempty"`
	Deadline time.Time            `json:"deadline,omitempty"`
	Result   *PracticeResult      `json:"result,omitempty"`
}

var nonRetryableTypes = []string{
	session.ErrTypeValidation,
	session.ErrTypeNotFound,
	session.ErrTypeAnalysis,
}

func setupActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: nonRetryableTypes,
		},
	}
}

func assessActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        2 * time.Minute,
			MaximumAttempts:        AssessmentAttempts,
			NonRetryableErrorTypes: nonRetryableTypes,
		},
	}
}

// PracticeWorkflow runs one practice session end to end. It waits for a
// SignalSubmitResponse until the time limit plus SubmitGrace has passed,
// then cancels the session. A SignalCancel ends it early. If the
// assessment fails for good the session is moved to error and the
// workflow returns the failure.
func PracticeWorkflow(ctx workflow.Context, in PracticeInput) (*PracticeResult, error) {
	const currentVersion = 1
	version := workflow.GetVersion(ctx, "practice.v", workflow.DefaultVersion, currentVersion)

	if err := in.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid practice input",
			session.ErrTypeValidation,
			err,
		)
	}

	logger := workflow.GetLogger(ctx)
	state := &PracticeState{Version: int(version), Phase: PhaseCreating}
	if err := workflow.SetQueryHandler(ctx, QuerySession, func() (PracticeState, error) {
		return *state, nil
	}); err != nil {
		return nil, err
	}

	var sessionID string
	if err := workflow.SideEffect(ctx, func(workflow.Context) any {
		return uuid.NewString()
	}).Get(&sessionID); err != nil {
		return nil, err
	}

	var acts *session.Activities
	setupCtx := workflow.WithActivityOptions(ctx, setupActivityOptions())

	var info session.SessionInfo
	err := workflow.ExecuteActivity(setupCtx, acts.CreateSession, session.CreateSessionInput{
		SessionID:        sessionID,
		TaskType:         in.TaskType,
		CustomPrompt:     in.CustomPrompt,
		QuickMode:        in.QuickMode,
		TimeLimitMinutes: in.TimeLimitMinutes,
		Difficulty:       in.Difficulty,
	}).Get(setupCtx, &info)
	if err != nil {
		return nil, err
	}
	state.Session = &info

	if err := workflow.ExecuteActivity(setupCtx, acts.StartSession, sessionID).Get(setupCtx, &info); err != nil {
		return nil, err
	}
	state.Session = &info

	limit := time.Duration(info.TimeLimitMinutes) * time.Minute
	state.Deadline = workflow.Now(ctx).Add(limit)
	state.Phase = PhaseWaiting
	logger.Info("Practice session waiting for response",
		"session_id", sessionID, "time_limit_minutes", info.TimeLimitMinutes)

	submission, cancelReason := awaitSubmission(ctx, sessionID, limit+SubmitGrace)

	if submission == nil {
		var final session.SessionInfo
		if err := workflow.ExecuteActivity(setupCtx, acts.CancelSession, sessionID).Get(setupCtx, &final); err != nil {
			return nil, err
		}
		state.Session = &final
		result := &PracticeResult{SessionID: sessionID, Status: final.Status, CancelReason: cancelReason}
		state.Result = result
		state.Phase = PhaseDone
		logger.Info("Practice session cancelled", "session_id", sessionID, "reason", cancelReason)
		return result, nil
	}

	state.Phase = PhaseAssessing
	assessCtx := workflow.WithActivityOptions(ctx, assessActivityOptions())
	var out session.SubmitResponseOutput
	err = workflow.ExecuteActivity(assessCtx, acts.SubmitResponse, session.SubmitResponseInput{
		SessionID:        sessionID,
		Text:             submission.Text,
		TimeTakenSeconds: submission.TimeTakenSeconds,
	}).Get(assessCtx, &out)
	if err != nil {
		var failed session.SessionInfo
		ferr := workflow.ExecuteActivity(setupCtx, acts.FailSession, session.FailSessionInput{
			SessionID: sessionID,
			Reason:    err.Error(),
		}).Get(setupCtx, &failed)
		if ferr != nil {
			logger.Error("Failed to record session failure", "session_id", sessionID, "error", ferr)
		} else {
			state.Session = &failed
		}
		state.Phase = PhaseDone
		return nil, err
	}

	result := &PracticeResult{
		SessionID:  sessionID,
		Status:     out.Status,
		WordCount:  out.WordCount,
		Assessment: out.Assessment,
	}
	state.Session.Status = out.Status
	state.Result = result
	state.Phase = PhaseDone
	logger.Info("Practice session assessed", "session_id", sessionID, "status", out.Status)
	return result, nil
}

// awaitSubmission blocks until a non-empty essay arrives, a cancel signal
// is received, or timeout elapses. It returns the submission, or nil and
// the reason the wait ended.
func awaitSubmission(ctx workflow.Context, sessionID string, timeout time.Duration) (*SubmitSignal, string) {
	logger := workflow.GetLogger(ctx)
	submitCh := workflow.GetSignalChannel(ctx, SignalSubmitResponse)
	cancelCh := workflow.GetSignalChannel(ctx, SignalCancel)

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()
	timer := workflow.NewTimer(timerCtx, timeout)

	var (
		submission *SubmitSignal
		reason     string
	)
	for submission == nil && reason == "" {
		sel := workflow.NewSelector(ctx)
		sel.AddReceive(submitCh, func(c workflow.ReceiveChannel, _ bool) {
			var sig SubmitSignal
			c.Receive(ctx, &sig)
			if strings.TrimSpace(sig.Text) == "" {
				logger.Warn("Ignoring empty submission", "session_id", sessionID)
				return
			}
			submission = &sig
		})
		sel.AddReceive(cancelCh, func(c workflow.ReceiveChannel, _ bool) {
			var sig CancelSignal
			c.Receive(ctx, &sig)
			reason = sig.Reason
			if reason == "" {
				reason = "cancelled by user"
			}
		})
		sel.AddFuture(timer, func(workflow.Future) {
			reason = "time limit expired"
		})
		sel.Select(ctx)
	}
	return submission, reason
}
