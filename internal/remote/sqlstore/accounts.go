package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gurkanbulca/taskboard/internal/remote"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

const collectionAccounts = "accounts"

// Auth error codes, named after the ones a hosted identity service returns.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserExists         = "user_already_exists"
	CodeWeakPassword       = "weak_password"
	CodeValidationFailed   = "validation_failed"
	CodeSessionExpired     = "session_expired"
)

// Account is a row of the accounts table.
type Account struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FirstName    *string    `db:"first_name"`
	LastName     *string    `db:"last_name"`
	RefreshToken *string    `db:"refresh_token"`
	LastSignInAt *time.Time `db:"last_sign_in_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (a Account) user() remote.User {
	u := remote.User{ID: a.ID, Email: a.Email}
	if a.FirstName != nil {
		u.UserMetadata.FirstName = *a.FirstName
	}
	if a.LastName != nil {
		u.UserMetadata.LastName = *a.LastName
	}
	return u
}

// Accounts is a local auth provider keeping credentials in the accounts
// table. It holds one session per process.
type Accounts struct {
	store     *Store
	tokens    *auth.TokenManager
	passwords *auth.PasswordManager
	log       *zap.Logger
	events    remote.Broadcaster

	mu      sync.Mutex
	current *remote.Session
}

var (
	_ remote.Auth           = (*Accounts)(nil)
	_ remote.PasswordSigner = (*Accounts)(nil)
)

func NewAccounts(store *Store, tokens *auth.TokenManager, passwords *auth.PasswordManager, log *zap.Logger) *Accounts {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accounts{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		log:       log,
	}
}

// SignUp registers an account and signs it in.
func (a *Accounts) SignUp(ctx context.Context, email, password string, meta remote.UserMetadata) (*remote.Session, error) {
	email, err := auth.NormalizeEmail(email)
	if err != nil {
		return nil, &remote.Error{Message: "Unable to validate email address: invalid format", Code: CodeValidationFailed, Status: http.StatusBadRequest}
	}
	if err := a.passwords.ValidatePassword(password); err != nil {
		return nil, &remote.Error{Message: err.Error(), Code: CodeWeakPassword, Status: http.StatusUnprocessableEntity}
	}

	existing, err := a.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errUserExists()
	}

	hash, err := a.passwords.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := remote.Record{
		"email":         email,
		"password_hash": hash,
		"first_name":    optional(meta.FirstName),
		"last_name":     optional(meta.LastName),
	}
	var created []Account
	if err := a.store.Insert(ctx, collectionAccounts, []remote.Record{row}, &created); err != nil {
		if re, ok := remote.AsError(err); ok && re.Code == CodeUniqueViolation {
			return nil, errUserExists()
		}
		return nil, err
	}
	if len(created) == 0 {
		return nil, errors.New("create account: no row returned")
	}

	a.log.Info("account created", zap.String("user_id", created[0].ID))
	return a.startSession(ctx, created[0])
}

func (a *Accounts) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	normalized, err := auth.NormalizeEmail(email)
	if err != nil {
		return nil, errInvalidCredentials()
	}

	acct, err := a.byEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errInvalidCredentials()
	}
	if err := a.passwords.ComparePassword(acct.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			return nil, errInvalidCredentials()
		}
		return nil, err
	}

	return a.startSession(ctx, *acct)
}

// Session returns the current session, refreshing it once when the
// access token has expired.
func (a *Accounts) Session(ctx context.Context) (*remote.Session, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur == nil {
		return nil, nil
	}

	_, err := a.tokens.ValidateAccessToken(cur.AccessToken)
	switch {
	case err == nil:
		s := *cur
		return &s, nil
	case errors.Is(err, auth.ErrExpiredToken):
		return a.refresh(ctx, cur.RefreshToken)
	default:
		a.clear()
		return nil, fmt.Errorf("validate session: %w", err)
	}
}

func (a *Accounts) Subscribe(fn func(remote.AuthEvent)) func() {
	return a.events.Subscribe(fn)
}

// SignOut revokes the stored refresh token. Signing out without a session
// is a no-op.
func (a *Accounts) SignOut(ctx context.Context) error {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur == nil {
		return nil
	}

	err := a.store.Update(ctx, collectionAccounts,
		remote.Record{"refresh_token": nil},
		[]remote.Filter{remote.Eq("id", cur.User.ID)},
		nil,
	)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	a.clear()
	a.log.Info("signed out", zap.String("user_id", cur.User.ID))
	return nil
}

func (a *Accounts) refresh(ctx context.Context, refreshToken string) (*remote.Session, error) {
	claims, err := a.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		a.clear()
		return nil, &remote.Error{Message: "Session expired", Code: CodeSessionExpired, Status: http.StatusUnauthorized}
	}

	var rows []Account
	err = a.store.Select(ctx, remote.From(collectionAccounts).Where(remote.Eq("id", claims.UserID())).Take(1), &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].RefreshToken == nil || *rows[0].RefreshToken != refreshToken {
		a.clear()
		return nil, &remote.Error{Message: "Invalid Refresh Token", Code: CodeSessionExpired, Status: http.StatusUnauthorized}
	}

	s, err := a.issue(ctx, rows[0])
	if err != nil {
		return nil, err
	}
	a.set(s, remote.EventTokenRefreshed)
	return s, nil
}

func (a *Accounts) startSession(ctx context.Context, acct Account) (*remote.Session, error) {
	s, err := a.issue(ctx, acct)
	if err != nil {
		return nil, err
	}
	a.set(s, remote.EventSignedIn)
	a.log.Info("signed in", zap.String("user_id", acct.ID))
	return s, nil
}

// issue mints a token pair and records the refresh token on the account.
func (a *Accounts) issue(ctx context.Context, acct Account) (*remote.Session, error) {
	user := acct.user()
	pair, err := a.tokens.GenerateTokenPair(user.ID, user.Email, auth.Metadata{
		FirstName: user.UserMetadata.FirstName,
		LastName:  user.UserMetadata.LastName,
	})
	if err != nil {
		return nil, err
	}

	err = a.store.Update(ctx, collectionAccounts,
		remote.Record{"refresh_token": pair.RefreshToken, "last_sign_in_at": time.Now().UTC()},
		[]remote.Filter{remote.Eq("id", acct.ID)},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &remote.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	}, nil
}

func (a *Accounts) byEmail(ctx context.Context, email string) (*Account, error) {
	var rows []Account
	if err := a.store.Select(ctx, remote.From(collectionAccounts).Where(remote.Eq("email", email)).Take(1), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (a *Accounts) set(s *remote.Session, typ remote.AuthEventType) {
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()

	cp := *s
	a.events.Emit(remote.AuthEvent{Type: typ, Session: &cp})
}

func (a *Accounts) clear() {
	a.mu.Lock()
	had := a.current != nil
	a.current = nil
	a.mu.Unlock()

	if had {
		a.events.Emit(remote.AuthEvent{Type: remote.EventSignedOut})
	}
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func errInvalidCredentials() error {
	return &remote.Error{Message: "Invalid login credentials", Code: CodeInvalidCredentials, Status: http.StatusBadRequest}
}

func errUserExists() error {
	return &remote.Error{Message: "User already registered", Code: CodeUserExists, Status: http.StatusUnprocessableEntity}
}
