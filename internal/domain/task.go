package domain

import "time"

// TaskStatus is the workflow state of an annotation task.
type TaskStatus string

// Task statuses.
const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
)

// Task assigns an image of a project to an annotator.
type Task struct {
	Base
	ProjectID string     `json:"projectId"`
	ImageID   string     `json:"imageId"`
	Assignee  string     `json:"assignee,omitempty"`
	Status    TaskStatus `json:"status"`
	Priority  int        `json:"priority"`
	DueAt     *time.Time `json:"dueAt,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// TaskWithDetails is a task with its image and project embedded.
// Either may be nil when the reference is dangling.
type TaskWithDetails struct {
	Task
	Image   *Image   `json:"image"`
	Project *Project `json:"project"`
}
