package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codefleet/foreman/pkg/models"
)

// kindMarkers maps title/description cues to task kinds for subtasks
// produced by decomposition. First match wins; code is the default.
var kindMarkers = []struct {
	keyword string
	kind    models.TaskKind
}{
	{"review", models.TaskKindReview},
	{"test", models.TaskKindTest},
	{"debug", models.TaskKindDebug},
	{"fix", models.TaskKindDebug},
	{"refactor", models.TaskKindRefactor},
}

// deriveKind infers a task kind from the task text.
func deriveKind(text string) models.TaskKind {
	lower := strings.ToLower(text)
	for _, m := range kindMarkers {
		if strings.Contains(lower, m.keyword) {
			return m.kind
		}
	}
	return models.TaskKindCode
}

// CreateSubtask creates a pending child task under a parent. The kind is
// derived from the subtask text and the parent's priority is inherited
// unless overridden.
func (r *Router) CreateSubtask(parent *models.Task, title, description string, priority int) (*models.Task, error) {
	if priority == 0 {
		priority = parent.Priority
	}
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}

	subtask := &models.Task{
		ID:                  uuid.New().String(),
		ParentID:            parent.ID,
		Title:               title,
		Description:         description,
		Kind:                deriveKind(title + " " + description),
		Priority:            priority,
		Status:              models.TaskStatusPending,
		MaxIterations:       models.DefaultMaxIterations,
		HumanTimeoutMinutes: models.DefaultHumanTimeoutMinutes,
		CreatedAt:           time.Now().UTC(),
	}

	if err := r.store.CreateTask(subtask); err != nil {
		return nil, fmt.Errorf("create subtask of %s: %w", parent.ID, err)
	}
	return subtask, nil
}
