package domain

import "errors"

// ErrUnknownCriterion indicates a criterion outside the four rubric dimensions.
var ErrUnknownCriterion = errors.New("unknown assessment criterion")

// ErrUnsupportedTaskType indicates a task type other than Writing Task 1 or 2.
var ErrUnsupportedTaskType = errors.New("unsupported task type")

// ErrInvalidScores indicates a criterion score map that fails validation.
var ErrInvalidScores = errors.New("invalid criterion scores")

// ErrInvalidAssessment indicates an assessment that fails structural validation.
var ErrInvalidAssessment = errors.New("invalid assessment")

// ErrInvalidSession indicates a practice session that fails structural validation.
var ErrInvalidSession = errors.New("invalid practice session")

// ErrInvalidTransition indicates a session status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid session status transition")

// ErrEmptyResponse indicates a submission without any response text.
var ErrEmptyResponse = errors.New("response text cannot be empty")

// ErrSessionNotFound indicates that no session exists for the requested id.
var ErrSessionNotFound = errors.New("session not found")
