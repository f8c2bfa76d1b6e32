package domain

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a practice session.
type SessionStatus string

// Session states. Completed, cancelled, and error are absorbing.
const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
	StatusError      SessionStatus = "error"
)

// transitions lists the legal successor states for each state.
var transitions = map[SessionStatus][]SessionStatus{
	StatusNotStarted: {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusError},
}

// IsValid reports whether s is a known status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s admits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the session to status to, stamping StartedAt when work
// begins and CompletedAt when the session reaches a terminal state.
func (p *PracticeSession) Transition(to SessionStatus, now time.Time) error {
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	switch {
	case to == StatusInProgress:
		p.StartedAt = &now
	case to.IsTerminal():
		p.CompletedAt = &now
	}
	return nil
}

// Fail moves an in-progress session into the error state and records why.
func (p *PracticeSession) Fail(cause error, now time.Time) error {
	if err := p.Transition(StatusError, now); err != nil {
		return err
	}
	if cause != nil {
		p.ErrorMessage = cause.Error()
	}
	return nil
}
