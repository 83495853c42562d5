package uia

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by a SessionStore when the session id does
// not exist or has expired. The gate treats both the same way: issue a fresh
// challenge with a new session id so the client always has a forward path.
var ErrSessionNotFound = errors.New("uia: session not found")

// Session is the accumulated state of one interactive-auth flow.
type Session struct {
	ID        string
	ClientIP  string
	Completed map[string]string // stage type -> proven identity
	CreatedAt time.Time
}

// HasCompleted reports whether every stage in the flow is present in the
// session's completed set.
func (s *Session) HasCompleted(flow Flow) bool {
	for _, stage := range flow.Stages {
		if _, ok := s.Completed[stage]; !ok {
			return false
		}
	}
	return true
}

// SessionStore persists interactive-auth sessions. Implementations must be
// safe for concurrent use; RecordStage must be first-write-wins per
// (session, stage) so that racing requests cannot overwrite a recorded
// result. All methods return copies; callers never share store internals.
type SessionStore interface {
	Create(ctx context.Context, clientIP string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	// RecordStage records the stage result if no result for that stage type
	// exists yet, and returns the session state after the call. If another
	// request already recorded the stage, the existing result is kept.
	RecordStage(ctx context.Context, id, stageType, identity string) (*Session, error)
}
