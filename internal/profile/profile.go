// Package profile keeps one public profile row per authenticated identity.
package profile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/remote"
)

var (
	ErrLookup = errors.New("look up profile")
	ErrCreate = errors.New("create profile")
)

var columns = []string{"id", "email", "first_name", "last_name"}

type Repository struct {
	store remote.Store
	log   *zap.Logger
}

func NewRepository(store remote.Store, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{store: store, log: log}
}

// Ensure creates the profile for user when none exists and reports
// whether it did. The insert skips an existing id, so concurrent calls
// for the same user leave a single row.
func (r *Repository) Ensure(ctx context.Context, user remote.User) (bool, error) {
	existing, err := r.Get(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	row := remote.Record{
		"id":         user.ID,
		"email":      user.Email,
		"first_name": optional(user.UserMetadata.FirstName),
		"last_name":  optional(user.UserMetadata.LastName),
	}
	if err := r.store.Upsert(ctx, models.CollectionProfiles, []remote.Record{row}, "id", nil); err != nil {
		return false, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	r.log.Info("profile created", zap.String("user_id", user.ID))
	return true, nil
}

// Get returns the profile with id, or nil when there is none.
func (r *Repository) Get(ctx context.Context, id string) (*models.Profile, error) {
	var rows []models.Profile
	q := remote.From(models.CollectionProfiles).
		Select(columns...).
		Where(remote.Eq("id", id)).
		Take(1)
	if err := r.store.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// List returns every profile, for the assignee picker.
func (r *Repository) List(ctx context.Context) ([]models.Profile, error) {
	var rows []models.Profile
	q := remote.From(models.CollectionProfiles).
		Select(columns...).
		OrderBy(remote.Asc("email"))
	if err := r.store.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return rows, nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
