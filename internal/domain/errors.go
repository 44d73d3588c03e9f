package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuestionNotFound indicates a referenced question id is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option id is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrBadQuestionID is returned for a non-catalog question id outside the
	// user-question namespace; catalog and user ids must never collide.
	ErrBadQuestionID = errors.New("question id outside user namespace")
	// ErrNoActiveSession is returned when an answer or navigation call
	// arrives before a quiz was started.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrNoIdentity marks remote operations attempted while signed out.
	ErrNoIdentity = errors.New("no authenticated user")
	// ErrKeyNotFound is returned by preference stores for absent keys.
	ErrKeyNotFound = errors.New("preference key not found")
)

// SyncError reports the outcome of a best-effort remote operation. LocalOK
// distinguishes "local state persisted, remote mirror failed" from a total
// failure; callers log it and carry on either way.
type SyncError struct {
	Op      string
	LocalOK bool
	Err     error
}

func (e *SyncError) Error() string {
	if e.LocalOK {
		return fmt.Sprintf("%s: local ok, remote failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
