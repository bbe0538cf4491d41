package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gurkanbulca/taskboard/internal/remote"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

// Auth is a GoTrue client holding the process's single session.
type Auth struct {
	c      *Client
	events remote.Broadcaster
	now    func() time.Time

	mu      sync.Mutex
	current *remote.Session
}

var (
	_ remote.Auth           = (*Auth)(nil)
	_ remote.PasswordSigner = (*Auth)(nil)
)

func newAuth(c *Client) *Auth {
	return &Auth{c: c, now: time.Now}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         remote.User `json:"user"`
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	s, err := a.token(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	a.set(s, remote.EventSignedIn)
	a.c.log.Info("signed in", zap.String("user_id", s.User.ID))
	return s, nil
}

// Session returns the current session. An expired session is refreshed
// once; when that fails the session is dropped.
func (a *Auth) Session(ctx context.Context) (*remote.Session, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur == nil {
		return nil, nil
	}
	if !cur.Expired(a.now()) {
		s := *cur
		return &s, nil
	}
	if cur.RefreshToken == "" {
		a.clear()
		return nil, nil
	}

	s, err := a.token(ctx, "refresh_token", map[string]string{"refresh_token": cur.RefreshToken})
	if err != nil {
		a.clear()
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	a.set(s, remote.EventTokenRefreshed)
	return s, nil
}

func (a *Auth) Subscribe(fn func(remote.AuthEvent)) func() {
	return a.events.Subscribe(fn)
}

// SignOut revokes the session remotely. A failed request keeps the local
// session.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur == nil {
		return nil
	}

	if err := a.c.do(ctx, http.MethodPost, authPath+"logout", nil, nil, nil, cur.AccessToken, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	a.clear()
	a.c.log.Info("signed out", zap.String("user_id", cur.User.ID))
	return nil
}

// ReloadUser fetches the signed-in user and emits USER_UPDATED when its
// metadata changed.
func (a *Auth) ReloadUser(ctx context.Context) (*remote.User, error) {
	cur, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, nil
	}

	var user remote.User
	if err := a.c.do(ctx, http.MethodGet, authPath+"user", nil, nil, nil, cur.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user != cur.User {
		cur.User = user
		a.set(cur, remote.EventUserUpdated)
	}
	return &user, nil
}

func (a *Auth) token(ctx context.Context, grant string, body map[string]string) (*remote.Session, error) {
	params := url.Values{}
	params.Set("grant_type", grant)

	var resp tokenResponse
	if err := a.c.do(ctx, http.MethodPost, authPath+"token", params, body, nil, "", &resp); err != nil {
		return nil, err
	}

	s := &remote.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		User:         resp.User,
	}
	switch {
	case resp.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		s.ExpiresAt = a.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	default:
		exp, err := auth.PeekExpiry(resp.AccessToken)
		if err != nil {
			a.c.log.Warn("access token expiry unreadable", zap.Error(err))
		}
		s.ExpiresAt = exp
	}
	return s, nil
}

// bearer returns the access token to send, or "" for the anon key.
func (a *Auth) bearer(ctx context.Context) (string, error) {
	s, err := a.Session(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return s.AccessToken, nil
}

func (a *Auth) set(s *remote.Session, typ remote.AuthEventType) {
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()

	cp := *s
	a.events.Emit(remote.AuthEvent{Type: typ, Session: &cp})
}

func (a *Auth) clear() {
	a.mu.Lock()
	had := a.current != nil
	a.current = nil
	a.mu.Unlock()

	if had {
		a.events.Emit(remote.AuthEvent{Type: remote.EventSignedOut})
	}
}
