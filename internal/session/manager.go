// Package session tracks the signed-in identity for the life of the
// process.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/gurkanbulca/taskboard/internal/notify"
	"github.com/gurkanbulca/taskboard/internal/profile"
	"github.com/gurkanbulca/taskboard/internal/remote"
)

var ErrAlreadyStarted = errors.New("session manager already started")

// Profiles creates the profile row of a newly seen identity.
type Profiles interface {
	Ensure(ctx context.Context, user remote.User) (bool, error)
}

// Manager owns the current identity and the loading flag. Auth events
// arrive on the emitter's goroutine, so all state sits behind mu.
type Manager struct {
	auth     remote.Auth
	profiles Profiles
	notes    *notify.Center
	log      *zap.Logger

	mu          sync.RWMutex
	ctx         context.Context
	session     *remote.Session
	loading     bool
	unsubscribe func()

	ready     chan struct{}
	readyOnce sync.Once
}

// NewManager builds a manager. A nil notes drops notifications and a nil
// log discards logs.
func NewManager(auth remote.Auth, profiles Profiles, notes *notify.Center, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		auth:     auth,
		profiles: profiles,
		notes:    notes,
		log:      log.Named("session"),
		loading:  true,
		ready:    make(chan struct{}),
	}
}

// Start subscribes to auth events and resolves the initial session.
// Loading ends once that resolves, whatever the outcome; failures are
// reported as notifications. ctx bounds the remote calls made from event
// handlers as well.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.ctx = ctx
	m.unsubscribe = func() {}
	m.mu.Unlock()

	unsubscribe := m.auth.Subscribe(m.handle)
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	s, err := m.auth.Session(ctx)
	if err != nil {
		m.log.Error("failed to get initial session", zap.Error(err))
		m.notes.Error(notify.MsgSessionLoadFailed, err)
	} else {
		m.adopt(ctx, s)
	}

	m.finishLoading()
	return nil
}

// Close stops listening to auth events.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *remote.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	u := m.session.User
	return &u
}

// Session returns a copy of the current session, or nil.
func (m *Manager) Session() *remote.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Ready is closed when loading first ends.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Wait blocks until loading ends or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignOut ends the remote session. A failure is reported and returned
// and the current identity is kept.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.auth.SignOut(ctx); err != nil {
		m.log.Error("sign out failed", zap.Error(err))
		m.notes.Error(notify.MsgSignOutFailed, err)
		return err
	}
	m.adopt(ctx, nil)
	m.notes.Info(notify.MsgSignedOut, notify.MsgSignedOutBody)
	return nil
}

func (m *Manager) handle(ev remote.AuthEvent) {
	m.log.Debug("auth event", zap.String("event", string(ev.Type)))

	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	m.adopt(ctx, ev.Session)
	m.finishLoading()
}

// adopt replaces the identity and makes sure it has a profile.
func (m *Manager) adopt(ctx context.Context, s *remote.Session) {
	var cp *remote.Session
	if s != nil {
		v := *s
		cp = &v
	}

	m.mu.Lock()
	m.session = cp
	m.mu.Unlock()

	if cp == nil {
		return
	}
	m.ensureProfile(ctx, cp.User)
}

func (m *Manager) ensureProfile(ctx context.Context, user remote.User) {
	created, err := m.profiles.Ensure(ctx, user)
	if err != nil {
		m.log.Error("failed to ensure profile", zap.String("user_id", user.ID), zap.Error(err))
		if errors.Is(err, profile.ErrCreate) {
			m.notes.Error(notify.MsgProfileCreateFailed, err)
		} else {
			m.notes.Error(notify.MsgProfileCheckFailed, err)
		}
		return
	}
	if created {
		m.log.Info("created profile", zap.String("user_id", user.ID))
	}
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
}
