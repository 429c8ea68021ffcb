// Package common defines shared constants and sentinel errors used across
// the talkboard server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrNotFound covers both a missing row and a row owned by someone else.
	// The two cases are never distinguished to callers.
	ErrNotFound = errors.New("not found")

	// Input errors.
	ErrValidation    = errors.New("validation error")
	ErrAlreadyExists = errors.New("already exists")

	// Infrastructure errors.
	ErrStorage     = errors.New("storage error")
	ErrPersistence = errors.New("persistence error")

	// External collaborator errors.
	ErrTransientExternal = errors.New("service unavailable")
	ErrTerminalExternal  = errors.New("bad request")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
