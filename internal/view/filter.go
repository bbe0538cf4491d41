package view

import (
	"strings"

	"github.com/gurkanbulca/taskboard/internal/models"
)

// Tabs are the two lists shown on the board.
type Tabs struct {
	All  []models.Task
	Mine []models.Task
}

// FilterByTitle keeps the tasks whose title contains term, ignoring case.
// An empty term keeps everything. Order is preserved.
func FilterByTitle(tasks []models.Task, term string) []models.Task {
	if term == "" {
		return append([]models.Task(nil), tasks...)
	}
	needle := strings.ToLower(term)
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			out = append(out, t)
		}
	}
	return out
}

// AssignedTo keeps the tasks assigned to userID. No user means no tasks.
func AssignedTo(tasks []models.Task, userID string) []models.Task {
	out := make([]models.Task, 0)
	if userID == "" {
		return out
	}
	for _, t := range tasks {
		if t.AssignedTo(userID) {
			out = append(out, t)
		}
	}
	return out
}

// Partition applies the search to both tabs.
func Partition(tasks []models.Task, term, userID string) Tabs {
	all := FilterByTitle(tasks, term)
	return Tabs{
		All:  all,
		Mine: AssignedTo(all, userID),
	}
}
