// Package session drives a practice session through its lifecycle:
// create, start, submit, and assess or cancel. Every state change is
// persisted before the call returns.
//
// The Manager is the synchronous entry point used by the CLI. Activities
// expose the same operations to Temporal for durable practice runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-ielts/internal/analysis"
	"github.com/ahrav/go-ielts/internal/criteria"
	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/internal/scoring"
)

// Store persists sessions. *storage.Store satisfies it.
type Store interface {
	SaveSession(ctx context.Context, s *domain.PracticeSession) error
	GetSession(ctx context.Context, id string) (*domain.PracticeSession, error)
	RecentSessions(ctx context.Context, limit int, statuses ...domain.SessionStatus) ([]domain.PracticeSession, error)
	AllSessions(ctx context.Context) ([]domain.PracticeSession, error)
	SessionsBetween(ctx context.Context, start, end time.Time) ([]domain.PracticeSession, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	CleanupOldSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Analyzer scores a response. *analysis.ResponseAnalyzer satisfies it.
type Analyzer interface {
	AnalyzeResponse(
		ctx context.Context,
		taskPrompt string,
		resp domain.UserResponse,
		taskType domain.TaskType,
	) (domain.Assessment, error)
}

// PromptGenerator writes a fresh Task 2 prompt. *llm.Client satisfies it.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, difficulty string) (string, error)
}

var (
	// ErrPromptRequired is returned when a session needs a generated prompt
	// but none can be produced for the task type.
	ErrPromptRequired = errors.New("custom prompt required")

	// ErrNotAssessed is returned when an operation needs a completed
	// assessment that the session does not have.
	ErrNotAssessed = errors.New("session has no assessment")

	// ErrInvalidRetention is returned for a non-positive cleanup age.
	ErrInvalidRetention = errors.New("retention must be at least one day")
)

// CreateOptions configure a new session.
type CreateOptions struct {
	// SessionID is optional. When set and the session already exists, the
	// existing session is returned unchanged.
	SessionID        string
	TaskType         domain.TaskType
	CustomPrompt     string
	QuickMode        bool
	TimeLimitMinutes int
	Difficulty       string
}

// Comparison is the score movement between two assessed sessions.
type Comparison struct {
	Before            *domain.PracticeSession
	After             *domain.PracticeSession
	Differences       map[string]float64
	DaysBetween       int
	ImprovementPerDay float64
}

// Option configures a Manager.
type Option func(*Manager)

// WithPromptGenerator enables generated prompts for sessions created
// without a custom prompt.
func WithPromptGenerator(g PromptGenerator) Option {
	return func(m *Manager) { m.prompts = g }
}

// WithCatalog overrides the criteria catalog.
func WithCatalog(c *criteria.Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager sequences session operations over a Store and an Analyzer.
type Manager struct {
	store    Store
	analyzer Analyzer
	prompts  PromptGenerator
	catalog  *criteria.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager wires a Manager.
func NewManager(store Store, analyzer Analyzer, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		analyzer: analyzer,
		catalog:  criteria.NewCatalog(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// CreateSession builds a not-started session and persists it. Without a
// custom prompt one is generated, which only Writing Task 2 supports.
func (m *Manager) CreateSession(ctx context.Context, opts CreateOptions) (*domain.PracticeSession, error) {
	if opts.SessionID != "" {
		existing, err := m.store.GetSession(ctx, opts.SessionID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	taskType := opts.TaskType
	if taskType == "" {
		taskType = domain.TaskWriting2
	}
	words, err := m.catalog.WordCountRequirements(taskType)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	limit, err := m.catalog.TimeLimit(taskType)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if opts.TimeLimitMinutes > 0 {
		limit = opts.TimeLimitMinutes
	}

	text := strings.TrimSpace(opts.CustomPrompt)
	if text == "" {
		text, err = m.generatePrompt(ctx, taskType, opts.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	sess := &domain.PracticeSession{
		SessionID: id,
		TaskPrompt: domain.TaskPrompt{
			TaskType:         taskType,
			PromptText:       text,
			TimeLimitMinutes: limit,
			WordCountMin:     words.Min,
			WordCountMax:     words.Max,
		},
		Status:    domain.StatusNotStarted,
		QuickMode: opts.QuickMode,
		CreatedAt: m.now().UTC(),
	}
	if opts.TimeLimitMinutes > 0 {
		override := opts.TimeLimitMinutes
		sess.TimeLimitMinutes = &override
	}

	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.logger.InfoContext(ctx, "session created",
		"session_id", sess.SessionID,
		"task_type", taskType,
		"generated_prompt", opts.CustomPrompt == "",
		"time_limit_minutes", limit)
	return sess, nil
}

func (m *Manager) generatePrompt(ctx context.Context, taskType domain.TaskType, difficulty string) (string, error) {
	if taskType != domain.TaskWriting2 {
		return "", fmt.Errorf("%w: prompts can only be generated for %s",
			ErrPromptRequired, domain.TaskWriting2.DisplayName())
	}
	if m.prompts == nil {
		return "", fmt.Errorf("%w: no prompt generator configured", ErrPromptRequired)
	}
	text, err := m.prompts.GeneratePrompt(ctx, difficulty)
	if err != nil {
		return "", fmt.Errorf("generate prompt: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("generate prompt: %w", ErrPromptRequired)
	}
	return text, nil
}

// StartSession moves a session to in_progress and starts its clock.
func (m *Manager) StartSession(ctx context.Context, id string) (*domain.PracticeSession, error) {
	return m.transition(ctx, id, domain.StatusInProgress)
}

// CancelSession moves a session to cancelled.
func (m *Manager) CancelSession(ctx context.Context, id string) (*domain.PracticeSession, error) {
	return m.transition(ctx, id, domain.StatusCancelled)
}

// FailSession moves an in-progress session to error, recording cause.
func (m *Manager) FailSession(ctx context.Context, id string, cause error) (*domain.PracticeSession, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.Fail(cause, m.now().UTC()); err != nil {
		return nil, err
	}
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.logger.WarnContext(ctx, "session failed", "session_id", id, "error", cause)
	return sess, nil
}

// SaveDraft stores text as the unsubmitted response of an in-progress
// session. The session stays open and can be resumed later.
func (m *Manager) SaveDraft(ctx context.Context, id, text string) (*domain.PracticeSession, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusInProgress {
		return nil, fmt.Errorf("%w: cannot save a draft for a %s session", domain.ErrInvalidTransition, sess.Status)
	}
	sess.UserResponse = domain.NewUserResponse(text, m.now().UTC())
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	m.logger.DebugContext(ctx, "draft saved", "session_id", id, "word_count", sess.UserResponse.WordCount)
	return sess, nil
}

// ResumeSession reopens a session for writing. A not-started session is
// started; an in-progress one comes back with its saved draft and its
// original clock. Finished sessions cannot be resumed.
func (m *Manager) ResumeSession(ctx context.Context, id string) (*domain.PracticeSession, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case domain.StatusNotStarted:
		return m.StartSession(ctx, id)
	case domain.StatusInProgress:
		m.logger.InfoContext(ctx, "session resumed",
			"session_id", id, "draft_words", sess.UserResponse.WordCount)
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: cannot resume a %s session", domain.ErrInvalidTransition, sess.Status)
	}
}

func (m *Manager) transition(ctx context.Context, id string, to domain.SessionStatus) (*domain.PracticeSession, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.Transition(to, m.now().UTC()); err != nil {
		return nil, err
	}
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.logger.InfoContext(ctx, "session status changed", "session_id", id, "status", to)
	return sess, nil
}

// SubmitResponse records the response and has it assessed. A response
// shorter than the task minimum is accepted with a warning. When the
// analyzer fails the session moves to error, is saved with the response,
// and the analyzer's error is returned alongside the session.
func (m *Manager) SubmitResponse(
	ctx context.Context,
	id, text string,
	timeTakenSeconds *int,
) (*domain.PracticeSession, error) {
	return m.submit(ctx, id, text, timeTakenSeconds, false)
}

// submit implements SubmitResponse. With keepOpenOnRateLimit a rate-limited
// analysis leaves the session in_progress so the caller can retry, and a
// session that is already completed is returned as is.
func (m *Manager) submit(
	ctx context.Context,
	id, text string,
	timeTakenSeconds *int,
	keepOpenOnRateLimit bool,
) (*domain.PracticeSession, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyResponse
	}
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if keepOpenOnRateLimit && sess.Status == domain.StatusCompleted && sess.Assessment != nil {
		return sess, nil
	}
	if sess.Status != domain.StatusInProgress {
		return nil, fmt.Errorf("%w: cannot submit a %s session", domain.ErrInvalidTransition, sess.Status)
	}

	now := m.now().UTC()
	resp := domain.NewUserResponse(text, now)
	resp.TimeTakenSeconds = timeTakenSeconds
	if resp.TimeTakenSeconds == nil && sess.StartedAt != nil {
		elapsed := int(now.Sub(*sess.StartedAt).Seconds())
		resp.TimeTakenSeconds = &elapsed
	}
	sess.UserResponse = resp

	if resp.WordCount < sess.TaskPrompt.WordCountMin {
		m.logger.WarnContext(ctx, "response below minimum word count",
			"session_id", id,
			"word_count", resp.WordCount,
			"minimum", sess.TaskPrompt.WordCountMin)
	}

	assessment, err := m.analyzer.AnalyzeResponse(ctx, sess.TaskPrompt.PromptText, resp, sess.TaskPrompt.TaskType)
	if err != nil {
		return m.recordFailure(ctx, sess, err, keepOpenOnRateLimit)
	}

	// Complete a copy so a rejected save still leaves sess in progress
	// with its response, ready to be recorded as failed.
	done := *sess
	done.Assessment = &assessment
	if err := done.Transition(domain.StatusCompleted, m.now().UTC()); err != nil {
		return m.recordFailure(ctx, sess, err, false)
	}
	if err := m.store.SaveSession(ctx, &done); err != nil {
		return m.recordFailure(ctx, sess, fmt.Errorf("save session: %w", err), false)
	}
	m.logger.InfoContext(ctx, "session assessed",
		"session_id", id,
		"overall_band", assessment.OverallBandScore,
		"word_count", resp.WordCount)
	return &done, nil
}

func (m *Manager) recordFailure(
	ctx context.Context,
	sess *domain.PracticeSession,
	cause error,
	keepOpenOnRateLimit bool,
) (*domain.PracticeSession, error) {
	// The response must survive even if the caller's context is gone.
	saveCtx := context.WithoutCancel(ctx)

	if keepOpenOnRateLimit && analysis.IsRateLimited(cause) {
		m.logger.WarnContext(ctx, "assessment rate limited, session left open",
			"session_id", sess.SessionID, "error", cause)
		if err := m.store.SaveSession(saveCtx, sess); err != nil {
			return sess, errors.Join(cause, fmt.Errorf("save session: %w", err))
		}
		return sess, cause
	}

	if err := sess.Fail(cause, m.now().UTC()); err != nil {
		return sess, errors.Join(cause, err)
	}
	m.logger.ErrorContext(ctx, "assessment failed",
		"session_id", sess.SessionID,
		"rate_limited", analysis.IsRateLimited(cause),
		"error", cause)
	if err := m.store.SaveSession(saveCtx, sess); err != nil {
		return sess, errors.Join(cause, fmt.Errorf("save session: %w", err))
	}
	return sess, cause
}

// GetSession loads one session.
func (m *Manager) GetSession(ctx context.Context, id string) (*domain.PracticeSession, error) {
	return m.store.GetSession(ctx, id)
}

// RecentSessions lists up to limit sessions, newest first, optionally
// restricted to the given statuses.
func (m *Manager) RecentSessions(
	ctx context.Context,
	limit int,
	statuses ...domain.SessionStatus,
) ([]domain.PracticeSession, error) {
	return m.store.RecentSessions(ctx, limit, statuses...)
}

// Statistics summarizes the whole practice history.
func (m *Manager) Statistics(ctx context.Context) (domain.SessionStats, error) {
	all, err := m.store.AllSessions(ctx)
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("statistics: %w", err)
	}
	return domain.ComputeSessionStats(all), nil
}

// DeleteSession removes a session and its criterion scores. It reports
// whether a session was removed.
func (m *Manager) DeleteSession(ctx context.Context, id string) (bool, error) {
	deleted, err := m.store.DeleteSession(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		m.logger.InfoContext(ctx, "session deleted", "session_id", id)
	}
	return deleted, nil
}

// CleanupOldSessions removes cancelled and failed sessions created more
// than days ago.
func (m *Manager) CleanupOldSessions(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := m.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := m.store.CleanupOldSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	m.logger.InfoContext(ctx, "old sessions cleaned up", "removed", n, "older_than_days", days)
	return n, nil
}

// TimeRemaining reports the time left on an in-progress session.
func (m *Manager) TimeRemaining(sess *domain.PracticeSession) (time.Duration, bool) {
	return sess.TimeRemaining(m.now())
}

// CompareSessions reports how the scores moved from session beforeID to
// session afterID. Both must be assessed.
func (m *Manager) CompareSessions(ctx context.Context, beforeID, afterID string) (*Comparison, error) {
	before, err := m.assessed(ctx, beforeID)
	if err != nil {
		return nil, err
	}
	after, err := m.assessed(ctx, afterID)
	if err != nil {
		return nil, err
	}

	days := int(after.CreatedAt.Sub(before.CreatedAt).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return &Comparison{
		Before:      before,
		After:       after,
		Differences: scoring.CompareAssessments(*before.Assessment, *after.Assessment),
		DaysBetween: days,
		ImprovementPerDay: scoring.ImprovementRate(
			[]domain.Assessment{*before.Assessment, *after.Assessment}, days),
	}, nil
}

func (m *Manager) assessed(ctx context.Context, id string) (*domain.PracticeSession, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Assessment == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAssessed, id)
	}
	return sess, nil
}

// ImprovementRate is the change in overall band per day across the
// assessed sessions of the last days.
func (m *Manager) ImprovementRate(ctx context.Context, days int) (float64, error) {
	if days <= 0 {
		return 0, nil
	}
	end := m.now().UTC()
	sessions, err := m.store.SessionsBetween(ctx, end.Add(-time.Duration(days)*24*time.Hour), end)
	if err != nil {
		return 0, fmt.Errorf("improvement rate: %w", err)
	}
	slices.Reverse(sessions)

	var assessments []domain.Assessment
	for _, s := range sessions {
		if s.Status == domain.StatusCompleted && s.Assessment != nil {
			assessments = append(assessments, *s.Assessment)
		}
	}
	return scoring.ImprovementRate(assessments, days), nil
}
