// Package board is the task facade: it turns task intents into remote
// store calls and keeps the fetched list for display.
package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/notify"
	"github.com/gurkanbulca/taskboard/internal/remote"
)

var (
	ErrAuthRequired    = errors.New("sign in required")
	ErrValidation      = errors.New("validation failed")
	ErrCommentRequired = fmt.Errorf("%w: comment content is required", ErrValidation)
	ErrNoSelection     = fmt.Errorf("%w: no task selected", ErrValidation)
	ErrNoRowReturned   = errors.New("remote store returned no row")
)

// Identity reports the signed-in user, nil when signed out.
type Identity interface {
	User() *remote.User
}

// Board holds the task list of the signed-in user. Operations run one
// remote call each and do not coordinate; mu only guards local state and
// is never held across a remote call, so a list may be overwritten by a
// slower concurrent fetch.
type Board struct {
	store    remote.Store
	identity Identity
	notes    *notify.Center
	log      *zap.Logger

	mu       sync.Mutex
	tasks    []models.Task
	selected *models.Task
}

// New builds a board. A nil notes drops notifications and a nil log
// discards logs.
func New(store remote.Store, identity Identity, notes *notify.Center, log *zap.Logger) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{
		store:    store,
		identity: identity,
		notes:    notes,
		log:      log.Named("board"),
	}
}

// Mount loads the list for the board's first display.
func (b *Board) Mount(ctx context.Context) error {
	return b.List(ctx)
}

// List replaces the cached list with every task, newest first. On failure
// the previous list is kept.
func (b *Board) List(ctx context.Context) error {
	if b.identity.User() == nil {
		b.notes.Warn(notify.MsgTasksFetchFailed, notify.MsgSignInRequired, nil)
		return ErrAuthRequired
	}

	var rows []models.Task
	q := remote.From(models.CollectionTasks).OrderBy(remote.Desc("created_at"))
	if err := b.store.Select(ctx, q, &rows); err != nil {
		b.log.Error("failed to list tasks", zap.Error(err))
		b.notes.Error(notify.MsgTasksFetchFailed, err)
		return fmt.Errorf("list tasks: %w", err)
	}

	b.mu.Lock()
	b.tasks = rows
	if b.selected != nil {
		if i := b.index(b.selected.ID); i >= 0 {
			t := b.tasks[i]
			t.Comments = b.selected.Comments
			b.selected = &t
		}
	}
	b.mu.Unlock()

	b.log.Debug("listed tasks", zap.Int("count", len(rows)))
	return nil
}

// Create inserts a task stamped with the signed-in user and puts it at
// the top of the list.
func (b *Board) Create(ctx context.Context, in models.NewTask) (models.Task, error) {
	user := b.identity.User()
	if user == nil {
		b.notes.Warn(notify.MsgTaskCreateFailed, notify.MsgSignInRequired, nil)
		return models.Task{}, ErrAuthRequired
	}
	if err := in.Validate(); err != nil {
		b.invalid(notify.MsgTaskCreateFailed, err)
		return models.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var rows []models.Task
	if err := b.store.Insert(ctx, models.CollectionTasks, []remote.Record{in.Record(user.ID)}, &rows); err != nil {
		b.log.Error("failed to create task", zap.Error(err))
		b.notes.Error(notify.MsgTaskCreateFailed, err)
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	if len(rows) == 0 {
		b.notes.Error(notify.MsgTaskCreateFailed, ErrNoRowReturned)
		return models.Task{}, fmt.Errorf("create task: %w", ErrNoRowReturned)
	}
	created := rows[0]

	b.mu.Lock()
	b.tasks = append([]models.Task{created}, b.tasks...)
	b.mu.Unlock()

	b.log.Info("task created", zap.String("task_id", created.ID))
	b.notes.Info(notify.MsgTaskCreated, notify.MsgTaskCreatedBody)
	return created, nil
}

// Select makes the cached task with id the target of Update. It reports
// whether the task was found.
func (b *Board) Select(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.index(id)
	if i < 0 {
		return false
	}
	t := b.tasks[i]
	b.selected = &t
	return true
}

func (b *Board) ClearSelection() {
	b.mu.Lock()
	b.selected = nil
	b.mu.Unlock()
}

func (b *Board) Selected() (models.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selected == nil {
		return models.Task{}, false
	}
	return *b.selected, true
}

// Update applies patch to the selected task. Fields absent from the patch
// are left untouched remotely and in the cache.
func (b *Board) Update(ctx context.Context, patch models.TaskPatch) error {
	sel, ok := b.Selected()
	if !ok {
		b.notes.Warn(notify.MsgTaskUpdateFailed, notify.MsgNoTaskSelected, nil)
		return ErrNoSelection
	}
	if b.identity.User() == nil {
		b.notes.Warn(notify.MsgTaskUpdateFailed, notify.MsgSignInRequired, nil)
		return ErrAuthRequired
	}
	if err := patch.Validate(); err != nil {
		b.invalid(notify.MsgTaskUpdateFailed, err)
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if patch.Empty() {
		return nil
	}

	err := b.store.Update(ctx, models.CollectionTasks, patch.Record(), []remote.Filter{remote.Eq("id", sel.ID)}, nil)
	if err != nil {
		b.log.Error("failed to update task", zap.String("task_id", sel.ID), zap.Error(err))
		b.notes.Error(notify.MsgTaskUpdateFailed, err)
		return fmt.Errorf("update task: %w", err)
	}

	b.mu.Lock()
	if i := b.index(sel.ID); i >= 0 {
		patch.Apply(&b.tasks[i])
	}
	if b.selected != nil && b.selected.ID == sel.ID {
		patch.Apply(b.selected)
	}
	b.mu.Unlock()

	b.log.Info("task updated", zap.String("task_id", sel.ID))
	b.notes.Info(notify.MsgTaskUpdated, notify.MsgTaskUpdatedBody)
	return nil
}

// Delete removes the task remotely and from the cache. The remote delete
// is issued even when id is not cached.
func (b *Board) Delete(ctx context.Context, id string) error {
	if b.identity.User() == nil {
		b.notes.Warn(notify.MsgTaskDeleteFailed, notify.MsgSignInRequired, nil)
		return ErrAuthRequired
	}

	if err := b.store.Delete(ctx, models.CollectionTasks, []remote.Filter{remote.Eq("id", id)}); err != nil {
		b.log.Error("failed to delete task", zap.String("task_id", id), zap.Error(err))
		b.notes.Error(notify.MsgTaskDeleteFailed, err)
		return fmt.Errorf("delete task: %w", err)
	}

	b.mu.Lock()
	b.tasks = slices.DeleteFunc(b.tasks, func(t models.Task) bool { return t.ID == id })
	if b.selected != nil && b.selected.ID == id {
		b.selected = nil
	}
	b.mu.Unlock()

	b.log.Info("task deleted", zap.String("task_id", id))
	b.notes.Warn(notify.MsgTaskDeleted, notify.MsgTaskDeletedBody, nil)
	return nil
}

// AddComment attaches a comment to a task. When the task is selected its
// comments are fetched again afterwards.
func (b *Board) AddComment(ctx context.Context, taskID, content string) (models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		b.notes.Warn(notify.MsgCommentAddFailed, notify.MsgCommentRequired, nil)
		return models.Comment{}, ErrCommentRequired
	}
	user := b.identity.User()
	if user == nil {
		b.notes.Warn(notify.MsgCommentAddFailed, notify.MsgSignInRequired, nil)
		return models.Comment{}, ErrAuthRequired
	}

	row := remote.Record{
		"task_id": taskID,
		"user_id": user.ID,
		"content": content,
	}
	var rows []models.Comment
	if err := b.store.Insert(ctx, models.CollectionComments, []remote.Record{row}, &rows); err != nil {
		b.log.Error("failed to add comment", zap.String("task_id", taskID), zap.Error(err))
		b.notes.Error(notify.MsgCommentAddFailed, err)
		return models.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	if len(rows) == 0 {
		b.notes.Error(notify.MsgCommentAddFailed, ErrNoRowReturned)
		return models.Comment{}, fmt.Errorf("add comment: %w", ErrNoRowReturned)
	}
	comment := rows[0]

	b.mu.Lock()
	if i := b.index(taskID); i >= 0 {
		b.tasks[i].Comments = append(slices.Clone(b.tasks[i].Comments), comment)
	}
	isSelected := b.selected != nil && b.selected.ID == taskID
	b.mu.Unlock()

	if isSelected {
		comments, err := b.Comments(ctx, taskID)
		if err != nil {
			return comment, err
		}
		b.mu.Lock()
		if b.selected != nil && b.selected.ID == taskID {
			b.selected.Comments = comments
		}
		if i := b.index(taskID); i >= 0 {
			b.tasks[i].Comments = slices.Clone(comments)
		}
		b.mu.Unlock()
	}

	b.log.Info("comment added", zap.String("task_id", taskID), zap.String("comment_id", comment.ID))
	b.notes.Info(notify.MsgCommentAdded, notify.MsgCommentAddedBody)
	return comment, nil
}

// Comments fetches a task's comments, oldest first.
func (b *Board) Comments(ctx context.Context, taskID string) ([]models.Comment, error) {
	var rows []models.Comment
	q := remote.From(models.CollectionComments).
		Where(remote.Eq("task_id", taskID)).
		OrderBy(remote.Asc("created_at"))
	if err := b.store.Select(ctx, q, &rows); err != nil {
		b.log.Error("failed to fetch comments", zap.String("task_id", taskID), zap.Error(err))
		b.notes.Error(notify.MsgCommentsFetchFailed, err)
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return rows, nil
}

// Tasks returns a copy of the cached list.
func (b *Board) Tasks() []models.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.tasks)
}

func (b *Board) invalid(titleID string, err error) {
	switch {
	case errors.Is(err, models.ErrTitleRequired):
		b.notes.Warn(titleID, notify.MsgTitleRequired, nil)
	default:
		b.notes.Warn(titleID, notify.MsgInvalidTask, map[string]any{"Reason": err.Error()})
	}
}

// index must be called with mu held.
func (b *Board) index(id string) int {
	return slices.IndexFunc(b.tasks, func(t models.Task) bool { return t.ID == id })
}
