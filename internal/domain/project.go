package domain

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// Project statuses.
const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// Project groups images and the tasks to annotate them.
type Project struct {
	Base
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Labels      []string      `json:"labels"`
	Status      ProjectStatus `json:"status"`
}

// ProjectStats summarizes a project's contents.
type ProjectStats struct {
	ProjectID      string         `json:"projectId"`
	ImageCount     int            `json:"imageCount"`
	TaskCount      int            `json:"taskCount"`
	TasksByStatus  map[string]int `json:"tasksByStatus"`
	ImagesByStatus map[string]int `json:"imagesByStatus"`
}
