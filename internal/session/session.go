package session

import (
	"errors"
	"time"
)

// State is the lifecycle position of a session. Pending is the only
// non-terminal state.
type State string

const (
	StatePending   State = "pending"
	StateFulfilled State = "fulfilled"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Kind distinguishes what the one captured reply will be used for.
type Kind string

const (
	KindCapture Kind = "capture" // reply becomes a new idea note
	KindEnrich  Kind = "enrich"  // reply is appended to the last idea note
)

var (
	ErrUnauthorized     = errors.New("session: unauthorized user")
	ErrNoPendingSession = errors.New("session: no pending session")
	ErrExpired          = errors.New("session: capture window expired")
)

// Session represents one open single-shot capture window for one user.
type Session struct {
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	OpenedAt  time.Time `json:"opened_at"`
	ExpiresAt time.Time `json:"expires_at"`
	State     State     `json:"state"`
}

// Expired reports whether the window has closed at the given instant.
// Expiry is defined by this comparison alone; the background sweep is
// cleanup, not the source of truth.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Capture is the single message handed off to the note writer when a
// pending session is fulfilled.
type Capture struct {
	UserID     string
	Kind       Kind
	Text       string
	CapturedAt time.Time
}
