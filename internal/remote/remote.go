// Package remote defines the contract between the client and the service
// that owns durable state: a row store addressed by collection name and an
// authentication service that owns the session.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is a row payload keyed by column name.
type Record map[string]any

// Op is a filter operator.
type Op string

const (
	OpEq     Op = "eq"
	OpNeq    Op = "neq"
	OpILike  Op = "ilike"
	OpIsNull Op = "is"
)

// Filter restricts a query to rows whose Column satisfies Op against Value.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Neq(column string, value any) Filter { return Filter{Column: column, Op: OpNeq, Value: value} }

// ILike matches rows whose column contains substr, ignoring case.
func ILike(column, substr string) Filter {
	return Filter{Column: column, Op: OpILike, Value: substr}
}

func IsNull(column string) Filter { return Filter{Column: column, Op: OpIsNull} }

// Order sorts a result set by Column.
type Order struct {
	Column     string
	Descending bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Descending: true} }

// Query describes a select against one collection. Empty Columns selects
// every column; zero Limit returns every matching row.
type Query struct {
	Collection string
	Columns    []string
	Filters    []Filter
	Order      []Order
	Limit      int
}

// From starts a query on collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Select(columns ...string) Query {
	q.Columns = columns
	return q
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

func (q Query) OrderBy(orders ...Order) Query {
	q.Order = append(append([]Order(nil), q.Order...), orders...)
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Store executes row operations. dest, when not nil, must be a pointer to
// a slice of structs and receives the affected rows.
type Store interface {
	Select(ctx context.Context, q Query, dest any) error
	Insert(ctx context.Context, collection string, rows []Record, dest any) error
	// Upsert inserts rows and silently skips those conflicting on
	// onConflict. Skipped rows are not returned.
	Upsert(ctx context.Context, collection string, rows []Record, onConflict string, dest any) error
	Update(ctx context.Context, collection string, patch Record, filters []Filter, dest any) error
	Delete(ctx context.Context, collection string, filters []Filter) error
}

// Error is a failure reported by the remote service.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// AsError extracts a remote error from err.
func AsError(err error) (*Error, bool) {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr, true
	}
	return nil, false
}

// UserMetadata is the free-form profile data attached at sign-up.
type UserMetadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// User is an authenticated identity.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// Session is an authenticated identity with its credentials.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"-"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthEventType names a session transition.
type AuthEventType string

const (
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is delivered to subscribers on every session change. Session
// is nil after sign-out.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

// Auth owns the session lifecycle.
type Auth interface {
	// Session returns the current session, or nil when signed out.
	Session(ctx context.Context) (*Session, error)
	Subscribe(fn func(AuthEvent)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// PasswordSigner is implemented by auth backends supporting email and
// password credentials.
type PasswordSigner interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
}
