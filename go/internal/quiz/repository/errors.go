package repository

import "errors"

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")

	// ErrSessionExists is returned when a session id is created twice.
	// Ids are random UUIDs, so hitting this indicates a caller bug.
	ErrSessionExists = errors.New("session already exists")

	// ErrScopeBusy is returned when the scope already holds a live session.
	ErrScopeBusy = errors.New("scope already has an active session")

	// ErrAlreadyAnswered is returned when a participant submits twice.
	ErrAlreadyAnswered = errors.New("participant already answered")

	// ErrSessionClosed is returned when the session has left the Open state.
	ErrSessionClosed = errors.New("session no longer accepts answers")

	// ErrSessionExpired is returned when the deadline has passed, even if
	// the session has not yet transitioned out of Open.
	ErrSessionExpired = errors.New("session deadline has passed")

	// ErrConflict is returned by Transition when the expected from state
	// does not match the current state.
	ErrConflict = errors.New("state transition conflict")
)
