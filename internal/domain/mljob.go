package domain

import "time"

// MLJobStatus is the lifecycle state of an inference job.
type MLJobStatus string

// ML job statuses.
const (
	JobQueued    MLJobStatus = "queued"
	JobRunning   MLJobStatus = "running"
	JobCompleted MLJobStatus = "completed"
	JobFailed    MLJobStatus = "failed"
	JobCancelled MLJobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s MLJobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Prediction is a single detection produced by a model.
type Prediction struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Label       string      `json:"label"`
	TagID       string      `json:"tagId,omitempty"`
	Confidence  float64     `json:"confidence"`
}

// MLJob records an asynchronous inference request and its outcome.
type MLJob struct {
	Base
	ImageID     string            `json:"imageId"`
	ProjectID   string            `json:"projectId,omitempty"`
	Model       string            `json:"model"`
	Status      MLJobStatus       `json:"status"`
	Params      map[string]string `json:"params,omitempty"`
	Predictions []Prediction      `json:"predictions,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attempts    int               `json:"attempts"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}
