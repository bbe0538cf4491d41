// Package remotetest provides testify doubles of the remote contract.
package remotetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gurkanbulca/taskboard/internal/remote"
)

// Argument positions of dest in Store calls, for Rows.
const (
	SelectDest = 2
	InsertDest = 3
	UpsertDest = 4
	UpdateDest = 4
)

// Store is a mock remote.Store.
type Store struct {
	mock.Mock
}

var _ remote.Store = (*Store)(nil)

func (m *Store) Select(ctx context.Context, q remote.Query, dest any) error {
	args := m.Called(ctx, q, dest)
	return args.Error(0)
}

func (m *Store) Insert(ctx context.Context, collection string, rows []remote.Record, dest any) error {
	args := m.Called(ctx, collection, rows, dest)
	return args.Error(0)
}

func (m *Store) Upsert(ctx context.Context, collection string, rows []remote.Record, onConflict string, dest any) error {
	args := m.Called(ctx, collection, rows, onConflict, dest)
	return args.Error(0)
}

func (m *Store) Update(ctx context.Context, collection string, patch remote.Record, filters []remote.Filter, dest any) error {
	args := m.Called(ctx, collection, patch, filters, dest)
	return args.Error(0)
}

func (m *Store) Delete(ctx context.Context, collection string, filters []remote.Filter) error {
	args := m.Called(ctx, collection, filters)
	return args.Error(0)
}

// Rows returns a Run function copying rows into the *[]T destination at
// argument index i.
func Rows[T any](i int, rows ...T) func(mock.Arguments) {
	return func(args mock.Arguments) {
		if dest, ok := args.Get(i).(*[]T); ok {
			*dest = append((*dest)[:0], rows...)
		}
	}
}

// Collection matches a Query against the given collection.
func Collection(name string) any {
	return mock.MatchedBy(func(q remote.Query) bool { return q.Collection == name })
}

// Auth is a mock remote.Auth whose subscribers are real; tests call Emit
// to simulate session changes.
type Auth struct {
	mock.Mock
	remote.Broadcaster
}

var _ remote.Auth = (*Auth)(nil)

func (m *Auth) Session(ctx context.Context) (*remote.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*remote.Session)
	return s, args.Error(1)
}

func (m *Auth) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// SessionFor builds a session for a user id and email.
func SessionFor(id, email string) *remote.Session {
	return &remote.Session{
		AccessToken: "access-" + id,
		TokenType:   "bearer",
		User:        remote.User{ID: id, Email: email},
	}
}
