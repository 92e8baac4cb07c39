package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager owns the session lifecycle: open, fulfill, cancel, expire. All
// operations take the caller's clock reading, enforce the authorized
// identity internally, and are serialized per user.
type Manager struct {
	authorizedUser string
	timeout        time.Duration
	store          Store
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	userMu   map[string]*sync.Mutex
}

// NewManager loads any persisted sessions and returns a ready manager.
// Sessions whose window has already passed are not resurrected: every
// operation re-checks expiry against its own clock reading.
func NewManager(authorizedUser string, timeout time.Duration, store Store, logger *slog.Logger) (*Manager, error) {
	sessions, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session store: %w", err)
	}
	return &Manager{
		authorizedUser: authorizedUser,
		timeout:        timeout,
		store:          store,
		logger:         logger,
		sessions:       sessions,
		userMu:         map[string]*sync.Mutex{},
	}, nil
}

// Timeout returns the configured capture window length.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// StartCapture opens (or atomically replaces) the pending capture session
// for the user. The replaced session is simply discarded; it owns no timer.
func (m *Manager) StartCapture(userID string, now time.Time) (*Session, error) {
	return m.open(userID, KindCapture, now)
}

// StartEnrich opens a pending follow-up window whose one reply is appended
// to the most recently committed idea.
func (m *Manager) StartEnrich(userID string, now time.Time) (*Session, error) {
	return m.open(userID, KindEnrich, now)
}

func (m *Manager) open(userID string, kind Kind, now time.Time) (*Session, error) {
	if userID != m.authorizedUser {
		return nil, ErrUnauthorized
	}
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.sessions[userID]; ok {
		m.logger.Info("replacing pending session", "user_id", userID, "kind", old.Kind)
	}

	sess := &Session{
		UserID:    userID,
		Kind:      kind,
		OpenedAt:  now,
		ExpiresAt: now.Add(m.timeout),
		State:     StatePending,
	}
	prev := m.sessions[userID]
	m.sessions[userID] = sess
	if err := m.store.Save(m.sessions); err != nil {
		if prev != nil {
			m.sessions[userID] = prev
		} else {
			delete(m.sessions, userID)
		}
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.logger.Info("capture window opened", "user_id", userID, "kind", kind, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Submit evaluates an inbound message against the user's pending session.
// At most one submission per session instance can fulfill it; a duplicate
// delivery finds the session already gone and is reported as having no
// pending session. A message at or past the deadline is rejected as
// expired even if the sweep has not run yet.
func (m *Manager) Submit(userID, text string, now time.Time) (*Capture, error) {
	if userID != m.authorizedUser {
		return nil, ErrUnauthorized
	}
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok || sess.State != StatePending {
		return nil, ErrNoPendingSession
	}
	if sess.Expired(now) {
		m.retireLocked(sess, StateExpired)
		return nil, ErrExpired
	}

	m.retireLocked(sess, StateFulfilled)
	return &Capture{
		UserID:     userID,
		Kind:       sess.Kind,
		Text:       text,
		CapturedAt: now,
	}, nil
}

// Cancel closes the user's pending session, if any.
func (m *Manager) Cancel(userID string, now time.Time) error {
	if userID != m.authorizedUser {
		return ErrUnauthorized
	}
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok || sess.State != StatePending {
		return ErrNoPendingSession
	}
	if sess.Expired(now) {
		m.retireLocked(sess, StateExpired)
		return ErrNoPendingSession
	}

	m.retireLocked(sess, StateCancelled)
	return nil
}

// Pending returns the user's open session, if one exists and has not
// expired at the given instant. An expired session found here is retired.
func (m *Manager) Pending(userID string, now time.Time) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok || sess.State != StatePending {
		return nil, false
	}
	if sess.Expired(now) {
		m.retireLocked(sess, StateExpired)
		return nil, false
	}
	copied := *sess
	return &copied, true
}

// SweepExpired retires every pending session whose window has closed and
// returns the affected user IDs. Expiry itself is silent; callers decide
// whether to notify.
func (m *Manager) SweepExpired(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for userID, sess := range m.sessions {
		if sess.State == StatePending && sess.Expired(now) {
			expired = append(expired, userID)
		}
	}
	for _, userID := range expired {
		m.retireLocked(m.sessions[userID], StateExpired)
	}
	return expired
}

// retireLocked moves a session to a terminal state, removes it from active
// storage and persists the table. A failed save is logged rather than
// propagated: the in-memory transition already happened and must not be
// silently undone.
func (m *Manager) retireLocked(sess *Session, state State) {
	sess.State = state
	delete(m.sessions, sess.UserID)
	if err := m.store.Save(m.sessions); err != nil {
		m.logger.Error("failed to persist session removal", "user_id", sess.UserID, "error", err)
	}
	m.logger.Info("session closed", "user_id", sess.UserID, "kind", sess.Kind, "state", state)
}

// userLock serializes operations for a single user relative to each other.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.userMu[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.userMu[userID] = lock
	}
	return lock
}
