package quoteform

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 30 * time.Minute

// Session is one user's form: its record and submission lifecycle.
type Session struct {
	id         string
	controller *Controller
	createdAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Controller returns the session's submission controller.
func (s *Session) Controller() *Controller { return s.controller }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastSeen returns the last time the session was looked up.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// SessionManager owns the open sessions of a process.
type SessionManager struct {
	sender      Sender
	ctrlOpts    []Option
	ttl         time.Duration
	observer    Observer
	log         *zap.Logger
	now         func() time.Time
	sweepPeriod time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// ManagerOption customises a SessionManager.
type ManagerOption func(*SessionManager)

// WithSessionTTL sets the idle lifetime of sessions. Zero disables expiry.
func WithSessionTTL(ttl time.Duration) ManagerOption {
	return func(m *SessionManager) {
		if ttl >= 0 {
			m.ttl = ttl
		}
	}
}

// WithControllerOptions applies opts to every controller the manager creates.
func WithControllerOptions(opts ...Option) ManagerOption {
	return func(m *SessionManager) {
		m.ctrlOpts = append(m.ctrlOpts, opts...)
	}
}

// WithSessionObserver reports session and submission events to obs.
func WithSessionObserver(obs Observer) ManagerOption {
	return func(m *SessionManager) {
		if obs != nil {
			m.observer = obs
		}
	}
}

// WithSessionLogger sets the logger; each session logs with its id attached.
func WithSessionLogger(log *zap.Logger) ManagerOption {
	return func(m *SessionManager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager builds a manager whose sessions deliver through sender.
func NewSessionManager(sender Sender, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		sender:   sender,
		ttl:      DefaultSessionTTL,
		observer: nopObserver{},
		log:      zap.NewNop(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.sweepPeriod = m.ttl / 2
	if m.sweepPeriod < time.Second {
		m.sweepPeriod = time.Second
	}
	return m
}

// Create opens a session, optionally seeded with initial field values. Unknown
// field names fail the whole call.
func (m *SessionManager) Create(initial map[string]string) (*Session, error) {
	store := NewStore()
	if len(initial) > 0 {
		if err := store.SetFields(initial); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	log := m.log.With(zap.String("session", id))
	opts := make([]Option, 0, len(m.ctrlOpts)+2)
	opts = append(opts, WithObserver(m.observer))
	opts = append(opts, m.ctrlOpts...)
	opts = append(opts, WithLogger(log))

	now := m.now()
	session := &Session{
		id:         id,
		controller: NewController(store, m.sender, opts...),
		createdAt:  now,
		lastSeen:   now,
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	m.observer.SessionOpened()
	log.Debug("session opened")
	return session, nil
}

// Get returns the session with id and marks it as active.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.touch(m.now())
	return session, nil
}

// Close tears down the session with id.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	m.teardown(session, "closed")
	return nil
}

// Len reports the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes every session idle for longer than the TTL and returns how
// many were closed.
func (m *SessionManager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.LastSeen().Before(cutoff) {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		m.teardown(session, "expired")
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is cancelled, then closes the rest.
func (m *SessionManager) Run(ctx context.Context) error {
	defer m.Shutdown()
	if m.ttl <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Shutdown closes every open session.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		m.teardown(session, "shutdown")
	}
}

func (m *SessionManager) teardown(session *Session, reason string) {
	session.controller.Close()
	m.observer.SessionClosed()
	m.log.Debug("session closed", zap.String("session", session.id), zap.String("reason", reason))
}
