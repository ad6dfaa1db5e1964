// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as handlers to distinguish between different failure scenarios
// without string matching. For example, ErrSessionNotFound signals
// that a termination target does not exist or is not owned by the
// calling member, which the login endpoint reports as a 400 and the
// session endpoint as a 404.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrUserIDExists is returned by member creation when the requested
// user_id is already taken. Handlers translate this into a 409.
var ErrUserIDExists = errors.New("user_id already exists")

// ErrSessionNotFound is returned when a session targeted for
// termination does not exist, is already inactive, or belongs to a
// different member.
var ErrSessionNotFound = errors.New("session not found")
