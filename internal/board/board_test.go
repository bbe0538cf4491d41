package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/notify"
	"github.com/gurkanbulca/taskboard/internal/remote"
	"github.com/gurkanbulca/taskboard/internal/remote/remotetest"
)

type staticIdentity struct {
	user *remote.User
}

func (s staticIdentity) User() *remote.User { return s.user }

type fixture struct {
	store *remotetest.Store
	rec   *notify.Recorder
	board *Board
}

func newFixture(t *testing.T, user *remote.User) *fixture {
	t.Helper()
	catalog, err := notify.NewCatalog(nil)
	require.NoError(t, err)

	f := &fixture{store: &remotetest.Store{}, rec: &notify.Recorder{}}
	f.board = New(f.store, staticIdentity{user: user}, notify.NewCenter(f.rec, catalog, notify.LanguageEn), nil)
	return f
}

func signedIn() *remote.User {
	return &remote.User{ID: "u1", Email: "ada@example.com"}
}

func task(id, title string) models.Task {
	return models.Task{
		ID:        id,
		Title:     title,
		Status:    models.StatusPending,
		Priority:  models.PriorityMedium,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// seed loads tasks into the board through a successful List.
func (f *fixture) seed(t *testing.T, tasks ...models.Task) {
	t.Helper()
	f.store.On("Select", mock.Anything, remotetest.Collection(models.CollectionTasks), mock.Anything).
		Run(remotetest.Rows(remotetest.SelectDest, tasks...)).Return(nil).Once()
	require.NoError(t, f.board.Mount(context.Background()))
	f.rec.Reset()
}

func (f *fixture) last(t *testing.T) notify.Notification {
	t.Helper()
	n, ok := f.rec.Last()
	require.True(t, ok, "expected a notification")
	return n
}

func TestList_OrdersNewestFirst(t *testing.T) {
	f := newFixture(t, signedIn())
	f.store.On("Select", mock.Anything, mock.MatchedBy(func(q remote.Query) bool {
		return q.Collection == models.CollectionTasks &&
			len(q.Order) == 1 && q.Order[0] == remote.Desc("created_at")
	}), mock.Anything).Run(remotetest.Rows(remotetest.SelectDest, task("t2", "B"), task("t1", "A"))).Return(nil)

	require.NoError(t, f.board.List(context.Background()))

	tasks := f.board.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "t2", tasks[0].ID)
	f.store.AssertExpectations(t)
}

func TestList_FailureKeepsPreviousList(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "Keep me"))

	f.store.On("Select", mock.Anything, mock.Anything, mock.Anything).
		Return(&remote.Error{Message: "internal error", Code: "500"}).Once()

	err := f.board.List(context.Background())
	require.Error(t, err)

	tasks := f.board.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Keep me", tasks[0].Title)

	n := f.last(t)
	assert.Equal(t, "Error fetching tasks", n.Title)
	assert.Contains(t, n.Description, "500")
	assert.Equal(t, notify.SeverityDestructive, n.Severity)
}

func TestList_RequiresIdentity(t *testing.T) {
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.board.List(context.Background()), ErrAuthRequired)
	f.store.AssertNotCalled(t, "Select", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_AppliesDefaultsAndPrepends(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "Older"))

	f.store.On("Insert", mock.Anything, models.CollectionTasks, []remote.Record{{
		"title":         "Ship v1",
		"description":   "",
		"status":        "pending",
		"priority":      "medium",
		"created_by":    "u1",
		"assigned_user": nil,
	}}, mock.Anything).Run(func(args mock.Arguments) {
		rows := args.Get(2).([]remote.Record)
		created := task("t2", rows[0]["title"].(string))
		creator := rows[0]["created_by"].(string)
		created.CreatedBy = &creator
		*args.Get(remotetest.InsertDest).(*[]models.Task) = []models.Task{created}
	}).Return(nil).Once()

	created, err := f.board.Create(context.Background(), models.NewTask{Title: "Ship v1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.PriorityMedium, created.Priority)
	assert.Nil(t, created.AssignedUser)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, "u1", *created.CreatedBy)

	tasks := f.board.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "t2", tasks[0].ID)

	n := f.last(t)
	assert.Equal(t, "Task created", n.Title)
	assert.Equal(t, notify.SeverityDefault, n.Severity)
	f.store.AssertExpectations(t)
}

func TestCreate_KeepsExplicitStatusAndPriority(t *testing.T) {
	f := newFixture(t, signedIn())
	f.store.On("Insert", mock.Anything, models.CollectionTasks, mock.MatchedBy(func(rows []remote.Record) bool {
		return rows[0]["status"] == "completed" && rows[0]["priority"] == "high" && rows[0]["assigned_user"] == "u9"
	}), mock.Anything).Run(remotetest.Rows(remotetest.InsertDest, task("t1", "x"))).Return(nil).Once()

	_, err := f.board.Create(context.Background(), models.NewTask{
		Title:        "x",
		Status:       models.StatusCompleted,
		Priority:     models.PriorityHigh,
		AssignedUser: "u9",
	})
	require.NoError(t, err)
	f.store.AssertExpectations(t)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		user    *remote.User
		in      models.NewTask
		wantErr error
		desc    string
	}{
		{name: "signed out", user: nil, in: models.NewTask{Title: "x"}, wantErr: ErrAuthRequired, desc: "You must be signed in to do that."},
		{name: "blank title", user: signedIn(), in: models.NewTask{Title: "   "}, wantErr: models.ErrTitleRequired, desc: "Title is required."},
		{name: "bad status", user: signedIn(), in: models.NewTask{Title: "x", Status: "done"}, wantErr: models.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.user)

			_, err := f.board.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)

			f.store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.board.Tasks())

			n := f.last(t)
			assert.Equal(t, "Error creating task", n.Title)
			assert.Equal(t, notify.SeverityDestructive, n.Severity)
			if tt.desc != "" {
				assert.Equal(t, tt.desc, n.Description)
			}
		})
	}
}

func TestCreate_RemoteFailureLeavesState(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "Only"))
	f.store.On("Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&remote.Error{Message: "value too long", Code: "22001"}).Once()

	_, err := f.board.Create(context.Background(), models.NewTask{Title: "x"})
	require.Error(t, err)
	assert.Len(t, f.board.Tasks(), 1)
	assert.Equal(t, "value too long (22001)", f.last(t).Description)
}

func TestUpdate_MergesOnlyPresentFields(t *testing.T) {
	f := newFixture(t, signedIn())
	draft := task("t1", "Draft")
	draft.Description = "keep me"
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	draft.DueDate = &due
	f.seed(t, draft, task("t2", "Other"))

	require.True(t, f.board.Select("t1"))

	status := models.StatusCompleted
	f.store.On("Update", mock.Anything, models.CollectionTasks,
		remote.Record{"status": "completed"},
		[]remote.Filter{remote.Eq("id", "t1")},
		nil,
	).Return(nil).Once()

	require.NoError(t, f.board.Update(context.Background(), models.TaskPatch{Status: &status}))

	updated := f.board.Tasks()[0]
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, "Draft", updated.Title)
	assert.Equal(t, "keep me", updated.Description)
	assert.Equal(t, models.PriorityMedium, updated.Priority)
	require.NotNil(t, updated.DueDate)
	assert.True(t, due.Equal(*updated.DueDate))

	assert.Equal(t, models.StatusPending, f.board.Tasks()[1].Status, "other tasks are untouched")

	sel, ok := f.board.Selected()
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, sel.Status)

	assert.Equal(t, "Task updated", f.last(t).Title)
	f.store.AssertExpectations(t)
}

func TestUpdate_RequiresSelection(t *testing.T) {
	f := newFixture(t, signedIn())
	title := "x"

	err := f.board.Update(context.Background(), models.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.ErrorIs(t, err, ErrValidation)
	f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "Select a task to edit first.", f.last(t).Description)
}

func TestUpdate_RejectsBlankTitle(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "Draft"))
	require.True(t, f.board.Select("t1"))

	blank := " "
	err := f.board.Update(context.Background(), models.TaskPatch{Title: &blank})
	assert.ErrorIs(t, err, models.ErrTitleRequired)
	f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "Draft", f.board.Tasks()[0].Title)
}

func TestUpdate_FailureLeavesState(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "Draft"))
	require.True(t, f.board.Select("t1"))

	f.store.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&remote.Error{Message: "permission denied", Code: "42501"}).Once()

	title := "Renamed"
	require.Error(t, f.board.Update(context.Background(), models.TaskPatch{Title: &title}))
	assert.Equal(t, "Draft", f.board.Tasks()[0].Title)
	assert.Equal(t, "permission denied (42501)", f.last(t).Description)
}

func TestUpdate_EmptyPatchIsNoop(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "Draft"))
	require.True(t, f.board.Select("t1"))

	require.NoError(t, f.board.Update(context.Background(), models.TaskPatch{}))
	f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDelete_RemovesCachedTask(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"), task("t2", "B"))
	require.True(t, f.board.Select("t1"))

	f.store.On("Delete", mock.Anything, models.CollectionTasks, []remote.Filter{remote.Eq("id", "t1")}).Return(nil).Once()

	require.NoError(t, f.board.Delete(context.Background(), "t1"))

	tasks := f.board.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "t2", tasks[0].ID)
	_, ok := f.board.Selected()
	assert.False(t, ok, "deleting the selected task clears the selection")

	n := f.last(t)
	assert.Equal(t, "Task deleted", n.Title)
	assert.Equal(t, notify.SeverityDestructive, n.Severity)
}

func TestDelete_UncachedIDStillCallsRemote(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"))

	f.store.On("Delete", mock.Anything, models.CollectionTasks, []remote.Filter{remote.Eq("id", "missing")}).Return(nil).Once()

	require.NoError(t, f.board.Delete(context.Background(), "missing"))
	assert.Len(t, f.board.Tasks(), 1)
	f.store.AssertExpectations(t)
}

func TestDelete_FailureKeepsTask(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"))
	f.store.On("Delete", mock.Anything, mock.Anything, mock.Anything).
		Return(&remote.Error{Message: "violates foreign key constraint", Code: "23503"}).Once()

	require.Error(t, f.board.Delete(context.Background(), "t1"))
	assert.Len(t, f.board.Tasks(), 1)
	assert.Equal(t, "Error deleting task", f.last(t).Title)
}

func TestAddComment_EmptyContentMakesNoCall(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"))
	before := f.board.Tasks()

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.board.AddComment(context.Background(), "t1", content)
		assert.ErrorIs(t, err, ErrCommentRequired)
	}

	f.store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, before, f.board.Tasks())

	n := f.last(t)
	assert.Equal(t, "Error adding comment", n.Title)
	assert.Equal(t, "Comment cannot be empty.", n.Description)
}

func TestAddComment_AppendsToCachedTask(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"))

	userID := "u1"
	comment := models.Comment{ID: "c1", TaskID: "t1", UserID: &userID, Content: "Looks good"}
	f.store.On("Insert", mock.Anything, models.CollectionComments, []remote.Record{{
		"task_id": "t1",
		"user_id": "u1",
		"content": "Looks good",
	}}, mock.Anything).Run(remotetest.Rows(remotetest.InsertDest, comment)).Return(nil).Once()

	got, err := f.board.AddComment(context.Background(), "t1", "Looks good")
	require.NoError(t, err)
	assert.Equal(t, comment, got)

	tasks := f.board.Tasks()
	require.Len(t, tasks[0].Comments, 1)
	assert.Equal(t, "c1", tasks[0].Comments[0].ID)
	f.store.AssertNotCalled(t, "Select", mock.Anything, remotetest.Collection(models.CollectionComments), mock.Anything)
	assert.Equal(t, "Comment added", f.last(t).Title)
}

func TestAddComment_RefetchesSelectedTask(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"))
	require.True(t, f.board.Select("t1"))

	older := models.Comment{ID: "c0", TaskID: "t1", Content: "earlier"}
	added := models.Comment{ID: "c1", TaskID: "t1", Content: "new"}

	f.store.On("Insert", mock.Anything, models.CollectionComments, mock.Anything, mock.Anything).
		Run(remotetest.Rows(remotetest.InsertDest, added)).Return(nil).Once()
	f.store.On("Select", mock.Anything, mock.MatchedBy(func(q remote.Query) bool {
		return q.Collection == models.CollectionComments &&
			len(q.Filters) == 1 && q.Filters[0] == remote.Eq("task_id", "t1") &&
			len(q.Order) == 1 && q.Order[0] == remote.Asc("created_at")
	}), mock.Anything).Run(remotetest.Rows(remotetest.SelectDest, older, added)).Return(nil).Once()

	_, err := f.board.AddComment(context.Background(), "t1", "new")
	require.NoError(t, err)

	sel, ok := f.board.Selected()
	require.True(t, ok)
	require.Len(t, sel.Comments, 2)
	assert.Equal(t, "c0", sel.Comments[0].ID)
	assert.Len(t, f.board.Tasks()[0].Comments, 2)
	f.store.AssertExpectations(t)
}

func TestAddComment_RemoteFailure(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"))
	f.store.On("Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&remote.Error{Message: "insert failed", Code: "500"}).Once()

	_, err := f.board.AddComment(context.Background(), "t1", "hello")
	require.Error(t, err)
	assert.Empty(t, f.board.Tasks()[0].Comments)
	assert.Equal(t, "insert failed (500)", f.last(t).Description)
}

func TestSelect_UnknownTask(t *testing.T) {
	f := newFixture(t, signedIn())
	f.seed(t, task("t1", "A"))

	assert.False(t, f.board.Select("nope"))
	_, ok := f.board.Selected()
	assert.False(t, ok)

	require.True(t, f.board.Select("t1"))
	f.board.ClearSelection()
	_, ok = f.board.Selected()
	assert.False(t, ok)
}

func TestNew_WithoutNotifications(t *testing.T) {
	store := &remotetest.Store{}
	store.On("Select", mock.Anything, mock.Anything, mock.Anything).
		Return(&remote.Error{Message: "internal error", Code: "500"}).Once()
	b := New(store, staticIdentity{user: signedIn()}, nil, nil)

	assert.NotPanics(t, func() {
		assert.Error(t, b.List(context.Background()))
		_, err := b.AddComment(context.Background(), "t1", " ")
		assert.ErrorIs(t, err, ErrCommentRequired)
	})
}
