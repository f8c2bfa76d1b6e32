package workflow

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-ielts/internal/analysis"
	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/session"
	"github.com/ahrav/go-ielts/internal/storage"
	"github.com/ahrav/go-ielts/pkg/activity"
)

const essayPrompt = "Some people think governments should fund the arts. Discuss both views."

type stubAnalyzer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubAnalyzer) AnalyzeResponse(
	_ context.Context,
	_ string,
	resp domain.UserResponse,
	_ domain.TaskType,
) (domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.Assessment{}, s.err
	}
	return domain.Assessment{
		OverallBandScore: 7,
		CriteriaScores: []domain.CriterionScore{
			{CriterionName: "Task Response", Score: 7, Feedback: "Well developed"},
			{CriterionName: "Coherence and Cohesion", Score: 7, Feedback: "Logical"},
			{CriterionName: "Lexical Resource", Score: 7, Feedback: "Flexible"},
			{CriterionName: "Grammatical Range and Accuracy", Score: 7, Feedback: "Accurate"},
		},
		OverallFeedback: "Good answer.",
		Recommendations: []string{"Keep practising"},
		AssessedAt:      resp.SubmittedAt,
		AssessorModel:   "gpt-4",
	}, nil
}

type stubPrompts struct{}

func (stubPrompts) GeneratePrompt(context.Context, string) (string, error) {
	return essayPrompt, nil
}

type fixture struct {
	env      *testsuite.TestWorkflowEnvironment
	store    *storage.Store
	analyzer *stubAnalyzer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "ielts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	analyzer := &stubAnalyzer{}
	m := session.NewManager(store, analyzer,
		session.WithPromptGenerator(stubPrompts{}),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PracticeWorkflow)
	env.RegisterActivity(session.NewActivities(activity.NewBaseActivities(nil), m))
	return &fixture{env: env, store: store, analyzer: analyzer}
}

func (f *fixture) queryState(t *testing.T) PracticeState {
	t.Helper()
	val, err := f.env.QueryWorkflow(QuerySession)
	require.NoError(t, err)
	var st PracticeState
	require.NoError(t, val.Get(&st))
	return st
}

func essay(words int) string {
	return strings.TrimSpace(strings.Repeat("idea ", words))
}

func TestPracticeWorkflow_Assessed(t *testing.T) {
	f := newFixture(t)
	var waiting PracticeState

	f.env.RegisterDelayedCallback(func() {
		waiting = f.queryState(t)
		f.env.SignalWorkflow(SignalSubmitResponse, SubmitSignal{Text: "   "})
	}, 10*time.Minute)
	f.env.RegisterDelayedCallback(func() {
		f.env.SignalWorkflow(SignalSubmitResponse, SubmitSignal{Text: essay(280)})
	}, 30*time.Minute)

	f.env.ExecuteWorkflow(PracticeWorkflow, PracticeInput{})

	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())

	var result PracticeResult
	require.NoError(t, f.env.GetWorkflowResult(&result))
	assert.Equal(t, domain.StatusCompleted, result.Status)
	assert.Equal(t, 280, result.WordCount)
	require.NotNil(t, result.Assessment)
	assert.InDelta(t, 7.0, result.Assessment.OverallBandScore, 0)
	assert.Equal(t, 1, f.analyzer.calls, "the blank submission is ignored")

	assert.Equal(t, PhaseWaiting, waiting.Phase)
	assert.Equal(t, 1, waiting.Version)
	require.NotNil(t, waiting.Session)
	assert.Equal(t, essayPrompt, waiting.Session.PromptText)
	assert.Equal(t, 40, waiting.Session.TimeLimitMinutes)
	assert.False(t, waiting.Deadline.IsZero())

	final := f.queryState(t)
	assert.Equal(t, PhaseDone, final.Phase)

	stored, err := f.store.GetSession(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, essay(280), stored.UserResponse.Text)
}

func TestPracticeWorkflow_Cancelled(t *testing.T) {
	tests := []struct {
		name       string
		signal     bool
		wantReason string
	}{
		{"user cancel", true, "changed my mind"},
		{"time limit expires", false, "time limit expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.signal {
				f.env.RegisterDelayedCallback(func() {
					f.env.SignalWorkflow(SignalCancel, CancelSignal{Reason: tt.wantReason})
				}, 5*time.Minute)
			}

			f.env.ExecuteWorkflow(PracticeWorkflow, PracticeInput{
				TaskType:         domain.TaskWriting1Academic,
				CustomPrompt:     "The chart shows energy use by source.",
				TimeLimitMinutes: 15,
			})

			require.True(t, f.env.IsWorkflowCompleted())
			require.NoError(t, f.env.GetWorkflowError())
			var result PracticeResult
			require.NoError(t, f.env.GetWorkflowResult(&result))
			assert.Equal(t, domain.StatusCancelled, result.Status)
			assert.Equal(t, tt.wantReason, result.CancelReason)
			assert.Nil(t, result.Assessment)
			assert.Zero(t, f.analyzer.calls)

			stored, err := f.store.GetSession(context.Background(), result.SessionID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCancelled, stored.Status)
			require.NotNil(t, stored.TimeLimitMinutes)
			assert.Equal(t, 15, *stored.TimeLimitMinutes)
		})
	}
}

func TestPracticeWorkflow_AnalysisFailure(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = &analysis.AnalysisError{Op: "parse", Err: analysis.ErrInvalidStructure}

	f.env.RegisterDelayedCallback(func() {
		f.env.SignalWorkflow(SignalSubmitResponse, SubmitSignal{Text: essay(260)})
	}, time.Minute)

	f.env.ExecuteWorkflow(PracticeWorkflow, PracticeInput{CustomPrompt: essayPrompt})

	require.True(t, f.env.IsWorkflowCompleted())
	err := f.env.GetWorkflowError()
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, session.ErrTypeAnalysis, appErr.Type())
	assert.Equal(t, 1, f.analyzer.calls, "analysis failures are not retried")

	st := f.queryState(t)
	require.NotNil(t, st.Session)
	assert.Equal(t, domain.StatusError, st.Session.Status)

	stored, err := f.store.GetSession(context.Background(), st.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, stored.Status)
	assert.Equal(t, 260, stored.UserResponse.WordCount)
}

func TestPracticeWorkflow_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   PracticeInput
	}{
		{"unsupported task", PracticeInput{TaskType: "speaking_part_1", CustomPrompt: "x"}},
		{"task 1 without prompt", PracticeInput{TaskType: domain.TaskWriting1General}},
		{"negative time limit", PracticeInput{TimeLimitMinutes: -5}},
		{"unknown difficulty", PracticeInput{Difficulty: "brutal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.env.ExecuteWorkflow(PracticeWorkflow, tt.in)

			require.True(t, f.env.IsWorkflowCompleted())
			var appErr *temporal.ApplicationError
			require.ErrorAs(t, f.env.GetWorkflowError(), &appErr)
			assert.Equal(t, session.ErrTypeValidation, appErr.Type())
			assert.True(t, appErr.NonRetryable())
		})
	}
}
