package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

// Task status constants
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Priority is the urgency of a task.
type Priority string

// Priority constants
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Collection names in the remote store.
const (
	CollectionTasks    = "tasks"
	CollectionComments = "comments"
	CollectionProfiles = "profiles"
)

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

func (p Priority) Valid() bool {
	return slices.Contains(Priorities, p)
}

// ParseStatus accepts the canonical value and the underscore spelling
// some stores use ("in_progress").
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

func ParsePriority(s string) (Priority, error) {
	priority := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !priority.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return priority, nil
}

// UnmarshalJSON normalizes the decoded value through ParseStatus.
func (s *Status) UnmarshalJSON(data []byte) error {
	raw, err := decodeJSONString(data)
	if err != nil || raw == "" {
		return err
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil || raw == "" {
		return err
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	raw, err := decodeJSONString(data)
	if err != nil || raw == "" {
		return err
	}
	priority, err := ParsePriority(raw)
	if err != nil {
		return err
	}
	*p = priority
	return nil
}

// Scan implements sql.Scanner.
func (p *Priority) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil || raw == "" {
		return err
	}
	priority, err := ParsePriority(raw)
	if err != nil {
		return err
	}
	*p = priority
	return nil
}

// decodeJSONString returns "" for null.
func decodeJSONString(data []byte) (string, error) {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}
	return *raw, nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", fmt.Errorf("cannot scan %T into an enum value", src)
}

// Task is a row of the tasks collection. Comments is filled only by the
// details view and is never written back.
type Task struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description" db:"description"`
	Status       Status     `json:"status" db:"status"`
	Priority     Priority   `json:"priority" db:"priority"`
	DueDate      *time.Time `json:"due_date" db:"due_date"`
	AssignedUser *string    `json:"assigned_user" db:"assigned_user"`
	CreatedBy    *string    `json:"created_by" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	Comments     []Comment  `json:"comments,omitempty" db:"-"`
}

// AssignedTo reports whether the task is assigned to userID.
func (t Task) AssignedTo(userID string) bool {
	return userID != "" && t.AssignedUser != nil && *t.AssignedUser == userID
}

// NewTask is the input of a create request. Zero Status and Priority
// take their defaults; an empty AssignedUser means unassigned.
type NewTask struct {
	Title        string
	Description  string
	Status       Status
	Priority     Priority
	DueDate      *time.Time
	AssignedUser string
}

// WithDefaults returns a copy with status and priority filled in.
func (n NewTask) WithDefaults() NewTask {
	if n.Status == "" {
		n.Status = StatusPending
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	return n
}

func (n NewTask) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrTitleRequired
	}
	if n.Status != "" && !n.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, n.Status)
	}
	if n.Priority != "" && !n.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, n.Priority)
	}
	return nil
}

// Record builds the insert payload stamped with the creator.
func (n NewTask) Record(creatorID string) map[string]any {
	n = n.WithDefaults()
	rec := map[string]any{
		"title":       n.Title,
		"description": n.Description,
		"status":      string(n.Status),
		"priority":    string(n.Priority),
		"created_by":  creatorID,
	}
	if n.DueDate != nil {
		rec["due_date"] = n.DueDate.UTC()
	}
	if n.AssignedUser != "" {
		rec["assigned_user"] = n.AssignedUser
	} else {
		rec["assigned_user"] = nil
	}
	return rec
}

// TaskPatch is a partial update. Nil fields are left untouched; an
// AssignedUser pointing at "" clears the assignee.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *Status
	Priority     *Priority
	DueDate      *time.Time
	AssignedUser *string
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && p.AssignedUser == nil
}

func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrTitleRequired
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	return nil
}

// Record builds the update payload with only the present fields.
func (p TaskPatch) Record() map[string]any {
	rec := make(map[string]any)
	if p.Title != nil {
		rec["title"] = *p.Title
	}
	if p.Description != nil {
		rec["description"] = *p.Description
	}
	if p.Status != nil {
		rec["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		rec["priority"] = string(*p.Priority)
	}
	if p.DueDate != nil {
		rec["due_date"] = p.DueDate.UTC()
	}
	if p.AssignedUser != nil {
		if *p.AssignedUser == "" {
			rec["assigned_user"] = nil
		} else {
			rec["assigned_user"] = *p.AssignedUser
		}
	}
	return rec
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.AssignedUser != nil {
		if *p.AssignedUser == "" {
			t.AssignedUser = nil
		} else {
			assignee := *p.AssignedUser
			t.AssignedUser = &assignee
		}
	}
}
