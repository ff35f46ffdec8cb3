package models

import (
	"testing"
	"time"
)

func TestTaskStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending", TaskStatusPending, true},
		{"assigned", TaskStatusAssigned, true},
		{"in_progress", TaskStatusInProgress, true},
		{"completed", TaskStatusCompleted, true},
		{"failed", TaskStatusFailed, true},
		{"needs_human", TaskStatusNeedsHuman, true},
		{"aborted", TaskStatusAborted, true},
		{"empty", TaskStatus(""), false},
		{"unknown", TaskStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskStatusActive(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusPending, false},
		{TaskStatusAssigned, true},
		{TaskStatusInProgress, true},
		{TaskStatusNeedsHuman, true},
		{TaskStatusCompleted, false},
		{TaskStatusFailed, false},
		{TaskStatusAborted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskKindValid(t *testing.T) {
	for _, kind := range []TaskKind{TaskKindCode, TaskKindTest, TaskKindReview, TaskKindDebug, TaskKindRefactor} {
		if !kind.Valid() {
			t.Errorf("kind %q should be valid", kind)
		}
	}
	if TaskKind("chore").Valid() {
		t.Error("unknown kind should not be valid")
	}
}

func TestTaskText(t *testing.T) {
	task := &Task{Title: "Fix parser", Description: "handle empty input"}
	if got := task.Text(); got != "Fix parser handle empty input" {
		t.Errorf("Text() = %q", got)
	}

	task = &Task{Title: "Fix parser"}
	if got := task.Text(); got != "Fix parser" {
		t.Errorf("Text() without description = %q", got)
	}
}

func TestTaskIterationsRemaining(t *testing.T) {
	task := &Task{CurrentIteration: 2, MaxIterations: 3}
	if !task.IterationsRemaining() {
		t.Error("expected iterations remaining at 2/3")
	}

	task.CurrentIteration = 3
	if task.IterationsRemaining() {
		t.Error("expected no iterations remaining at 3/3")
	}
}

func TestHumanWaitDeadline(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task := &Task{HumanWaitStartedAt: &start, HumanTimeoutMinutes: 30}

	want := start.Add(30 * time.Minute)
	if got := task.HumanWaitDeadline(); !got.Equal(want) {
		t.Errorf("HumanWaitDeadline() = %v, want %v", got, want)
	}

	task.HumanWaitStartedAt = nil
	if got := task.HumanWaitDeadline(); !got.IsZero() {
		t.Errorf("HumanWaitDeadline() without wait start = %v, want zero", got)
	}
}
