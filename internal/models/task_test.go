package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_DecodeNormalizesEnums(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"id":"t1","title":"Ship v1","status":"IN_PROGRESS","priority":" High "}`), &task)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, task.Status)
	assert.Equal(t, PriorityHigh, task.Priority)
}

func TestTask_DecodeRejectsUnknownEnums(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"status":"done"}`), &task)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = json.Unmarshal([]byte(`{"priority":"urgent"}`), &task)
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestTask_DecodeNullEnums(t *testing.T) {
	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"status":null,"priority":null}`), &task))
	assert.Empty(t, task.Status)
	assert.Empty(t, task.Priority)
}

func TestStatus_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    Status
		wantErr error
	}{
		{name: "string", src: "completed", want: StatusCompleted},
		{name: "bytes", src: []byte("in_progress"), want: StatusInProgress},
		{name: "null", src: nil, want: ""},
		{name: "unknown", src: "archived", wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Status
			err := s.Scan(tt.src)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}

	var s Status
	assert.Error(t, s.Scan(42))
}

func TestPriority_Scan(t *testing.T) {
	var p Priority
	require.NoError(t, p.Scan([]byte("LOW")))
	assert.Equal(t, PriorityLow, p)
	assert.ErrorIs(t, p.Scan("urgent"), ErrInvalidPriority)
}

func TestTaskPatch_RecordAndApply(t *testing.T) {
	title := "Renamed"
	unassign := ""
	patch := TaskPatch{Title: &title, AssignedUser: &unassign}

	assert.Equal(t, map[string]any{"title": "Renamed", "assigned_user": nil}, patch.Record())

	assignee := "u1"
	task := Task{Title: "Draft", Description: "keep", AssignedUser: &assignee}
	patch.Apply(&task)
	assert.Equal(t, "Renamed", task.Title)
	assert.Equal(t, "keep", task.Description)
	assert.Nil(t, task.AssignedUser)
}
