package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/go-ielts/internal/domain"
	"github.com/ahrav/go-ielts/pkg/events"
)

// memStore keeps sessions in a map. saveErr, when set, fails every save.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]domain.PracticeSession
	saves    int
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]domain.PracticeSession)}
}

func (s *memStore) SaveSession(ctx context.Context, sess *domain.PracticeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	if err := sess.Validate(); err != nil {
		return err
	}
	cp := *sess
	if sess.Assessment != nil {
		a := sess.Assessment.Clone()
		cp.Assessment = &a
	}
	s.sessions[sess.SessionID] = cp
	return nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*domain.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return &sess, nil
}

func (s *memStore) sorted(desc bool) []domain.PracticeSession {
	out := make([]domain.PracticeSession, 0, len(s.sessions))
	for _, v := range s.sessions {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b domain.PracticeSession) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if desc {
		slices.Reverse(out)
	}
	return out
}

func (s *memStore) RecentSessions(_ context.Context, limit int, statuses ...domain.SessionStatus) ([]domain.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PracticeSession
	for _, v := range s.sorted(true) {
		if len(statuses) > 0 && !slices.Contains(statuses, v.Status) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *memStore) AllSessions(context.Context) ([]domain.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(false), nil
}

func (s *memStore) SessionsBetween(_ context.Context, start, end time.Time) ([]domain.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PracticeSession
	for _, v := range s.sorted(true) {
		if !v.CreatedAt.Before(start) && !v.CreatedAt.After(end) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) DeleteSession(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok, nil
}

func (s *memStore) CleanupOldSessions(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, v := range s.sessions {
		if v.CreatedAt.Before(cutoff) && (v.Status == domain.StatusCancelled || v.Status == domain.StatusError) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeAnalyzer struct {
	mu         sync.Mutex
	assessment domain.Assessment
	errs       []error // returned in order before succeeding
	calls      int
	gotPrompt  string
	gotResp    domain.UserResponse
}

func (f *fakeAnalyzer) AnalyzeResponse(
	_ context.Context,
	taskPrompt string,
	resp domain.UserResponse,
	_ domain.TaskType,
) (domain.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotPrompt = taskPrompt
	f.gotResp = resp
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return domain.Assessment{}, err
	}
	return f.assessment.Clone(), nil
}

type fakePrompts struct {
	text          string
	err           error
	gotDifficulty string
}

func (f *fakePrompts) GeneratePrompt(_ context.Context, difficulty string) (string, error) {
	f.gotDifficulty = difficulty
	return f.text, f.err
}

// capturingEventSink records events, dropping repeated idempotency keys.
type capturingEventSink struct {
	mu       sync.Mutex
	events   []events.Envelope
	seenKeys map[string]bool
}

func newCapturingEventSink() *capturingEventSink {
	return &capturingEventSink{seenKeys: make(map[string]bool)}
}

func (c *capturingEventSink) Append(_ context.Context, e events.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seenKeys[e.IdempotencyKey] {
		return nil
	}
	c.seenKeys[e.IdempotencyKey] = true
	c.events = append(c.events, e)
	return nil
}

func (c *capturingEventSink) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	testStart = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	errBoom   = errors.New("boom")
)

// testClock advances by step on every call.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func sampleAssessment() domain.Assessment {
	return domain.Assessment{
		OverallBandScore: 6.5,
		CriteriaScores: []domain.CriterionScore{
			{CriterionName: "Task Response", Score: 6.5, Feedback: "Position is clear"},
			{CriterionName: "Coherence and Cohesion", Score: 6.5, Feedback: "Logical"},
			{CriterionName: "Lexical Resource", Score: 6.5, Feedback: "Adequate range"},
			{CriterionName: "Grammatical Range and Accuracy", Score: 6.5, Feedback: "Some errors"},
		},
		OverallFeedback: "A competent essay.",
		Recommendations: []string{"Develop examples further"},
		AssessedAt:      testStart,
		AssessorModel:   "gpt-4",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(store Store, analyzer Analyzer, opts ...Option) *Manager {
	clock := &testClock{now: testStart, step: time.Second}
	base := []Option{WithLogger(quietLogger()), WithClock(clock.Now)}
	return NewManager(store, analyzer, append(base, opts...)...)
}
