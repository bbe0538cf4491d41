package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/database/dbtest"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/remote"
	"github.com/gurkanbulca/taskboard/internal/remote/remotetest"
	"github.com/gurkanbulca/taskboard/internal/remote/sqlstore"
)

func TestEnsure_CreatesMissingProfile(t *testing.T) {
	store := &remotetest.Store{}
	user := remote.User{ID: "u1", Email: "ada@example.com", UserMetadata: remote.UserMetadata{FirstName: "Ada"}}

	store.On("Select", mock.Anything, mock.MatchedBy(func(q remote.Query) bool {
		return q.Collection == models.CollectionProfiles && q.Limit == 1 &&
			len(q.Filters) == 1 && q.Filters[0] == remote.Eq("id", "u1")
	}), mock.Anything).Return(nil).Once()
	store.On("Upsert", mock.Anything, models.CollectionProfiles, []remote.Record{{
		"id":         "u1",
		"email":      "ada@example.com",
		"first_name": "Ada",
		"last_name":  nil,
	}}, "id", nil).Return(nil).Once()

	created, err := NewRepository(store, nil).Ensure(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, created)
	store.AssertExpectations(t)
}

func TestEnsure_ExistingProfileSkipsInsert(t *testing.T) {
	store := &remotetest.Store{}
	store.On("Select", mock.Anything, remotetest.Collection(models.CollectionProfiles), mock.Anything).
		Run(remotetest.Rows(remotetest.SelectDest, models.Profile{ID: "u1", Email: "ada@example.com"})).
		Return(nil).Once()

	created, err := NewRepository(store, nil).Ensure(context.Background(), remote.User{ID: "u1", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsure_PropagatesErrors(t *testing.T) {
	lookupErr := &remote.Error{Message: "permission denied", Code: "42501"}

	store := &remotetest.Store{}
	store.On("Select", mock.Anything, mock.Anything, mock.Anything).Return(lookupErr).Once()

	_, err := NewRepository(store, nil).Ensure(context.Background(), remote.User{ID: "u1"})
	assert.ErrorIs(t, err, lookupErr)
	assert.ErrorIs(t, err, ErrLookup)

	insertErr := errors.New("connection reset")
	store = &remotetest.Store{}
	store.On("Select", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(insertErr).Once()

	created, err := NewRepository(store, nil).Ensure(context.Background(), remote.User{ID: "u1"})
	assert.ErrorIs(t, err, insertErr)
	assert.ErrorIs(t, err, ErrCreate)
	assert.False(t, created)
}

func TestEnsure_SQLBackendKeepsOneRow(t *testing.T) {
	repo := NewRepository(sqlstore.New(dbtest.Open(t), nil), nil)
	ctx := context.Background()
	user := remote.User{ID: uuid.NewString(), Email: "ada@example.com"}

	created, err := repo.Ensure(ctx, user)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Ensure(ctx, user)
	require.NoError(t, err)
	assert.False(t, created)

	profiles, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, user.ID, profiles[0].ID)
	assert.Equal(t, "ada@example.com", profiles[0].Email)
	assert.Nil(t, profiles[0].FirstName)
}

func TestList_OrdersByEmail(t *testing.T) {
	repo := NewRepository(sqlstore.New(dbtest.Open(t), nil), nil)
	ctx := context.Background()

	for _, email := range []string{"zoe@example.com", "ada@example.com"} {
		_, err := repo.Ensure(ctx, remote.User{ID: uuid.NewString(), Email: email})
		require.NoError(t, err)
	}

	profiles, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "ada@example.com", profiles[0].Email)
}
