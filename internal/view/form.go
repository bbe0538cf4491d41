package view

import (
	"context"
	"fmt"
	"time"

	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/notify"
)

// DefaultDueIn is how far out a new task is due unless changed.
const DefaultDueIn = 7 * 24 * time.Hour

// TaskForm holds the values of the create/edit dialog. It is submitted
// whole; there is no partial save.
type TaskForm struct {
	Title        string
	Description  string
	Status       models.Status
	Priority     models.Priority
	DueDate      time.Time
	AssignedUser string
}

// NewForm returns the blank create form.
func NewForm(now time.Time) TaskForm {
	return TaskForm{
		Status:   models.StatusPending,
		Priority: models.PriorityMedium,
		DueDate:  now.Add(DefaultDueIn),
	}
}

// FormFor pre-fills the edit form from t. Missing values take the create
// defaults.
func FormFor(t models.Task, now time.Time) TaskForm {
	f := NewForm(now)
	f.Title = t.Title
	f.Description = t.Description
	if t.Status != "" {
		f.Status = t.Status
	}
	if t.Priority != "" {
		f.Priority = t.Priority
	}
	if t.DueDate != nil {
		f.DueDate = *t.DueDate
	}
	if t.AssignedUser != nil {
		f.AssignedUser = *t.AssignedUser
	}
	return f
}

// NewTask converts the form into a create request.
func (f TaskForm) NewTask() models.NewTask {
	due := f.DueDate.UTC()
	return models.NewTask{
		Title:        f.Title,
		Description:  f.Description,
		Status:       f.Status,
		Priority:     f.Priority,
		DueDate:      &due,
		AssignedUser: f.AssignedUser,
	}
}

// Patch converts the form into an update carrying every field. An empty
// assignee clears the assignment.
func (f TaskForm) Patch() models.TaskPatch {
	title, description := f.Title, f.Description
	status, priority := f.Status, f.Priority
	due := f.DueDate.UTC()
	assignee := f.AssignedUser
	return models.TaskPatch{
		Title:        &title,
		Description:  &description,
		Status:       &status,
		Priority:     &priority,
		DueDate:      &due,
		AssignedUser: &assignee,
	}
}

// Option is one entry of the assignee picker.
type Option struct {
	Value string
	Label string
}

// AssigneeOptions lists the profiles as picker entries, labelled
// "email (First Last)" when both names are known.
func AssigneeOptions(profiles []models.Profile) []Option {
	opts := make([]Option, 0, len(profiles))
	for _, p := range profiles {
		label := p.Email
		if name := p.FullName(); name != "" {
			label = fmt.Sprintf("%s (%s)", p.Email, name)
		}
		opts = append(opts, Option{Value: p.ID, Label: label})
	}
	return opts
}

// AssigneeName resolves the display name of a task's assignee, empty when
// the task is unassigned or the profile is unknown.
func AssigneeName(t models.Task, profiles []models.Profile) string {
	if t.AssignedUser == nil {
		return ""
	}
	for _, p := range profiles {
		if p.ID == *t.AssignedUser {
			return p.DisplayName()
		}
	}
	return ""
}

// ProfileLister lists the profiles that can be assigned tasks.
type ProfileLister interface {
	List(ctx context.Context) ([]models.Profile, error)
}

// LoadAssignees fetches the assignee picker entries. A failure is
// notified and leaves the picker empty.
func LoadAssignees(ctx context.Context, profiles ProfileLister, notes *notify.Center) ([]Option, error) {
	list, err := profiles.List(ctx)
	if err != nil {
		notes.Error(notify.MsgProfilesFetchFailed, err)
		return nil, err
	}
	return AssigneeOptions(list), nil
}
