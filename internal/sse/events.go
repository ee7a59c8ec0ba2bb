// Package sse implements Server-Sent Events for real-time project updates.
package sse

import (
	"time"

	"github.com/ilbumi/satin/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	EventProjectCreated EventType = "project.created"
	EventProjectUpdated EventType = "project.updated"
	EventProjectDeleted EventType = "project.deleted"

	EventImageCreated EventType = "image.created"
	EventImageUpdated EventType = "image.updated"
	EventImageDeleted EventType = "image.deleted"

	// Annotation events carry the appended version.
	EventAnnotationCreated  EventType = "annotation.created"
	EventAnnotationUpdated  EventType = "annotation.updated"
	EventAnnotationDeleted  EventType = "annotation.deleted"
	EventAnnotationRestored EventType = "annotation.restored"

	EventTagCreated EventType = "tag.created"
	EventTagUpdated EventType = "tag.updated"
	EventTagMoved   EventType = "tag.moved"
	EventTagDeleted EventType = "tag.deleted"

	EventTaskCreated EventType = "task.created"
	EventTaskUpdated EventType = "task.updated"
	EventTaskDeleted EventType = "task.deleted"

	// EventJobUpdated is sent on every ML job status change.
	EventJobUpdated EventType = "mljob.updated"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// Scope of the event. Clients subscribed to a project or image only
	// receive events for it; empty means the event concerns everyone.
	ProjectID string `json:"-"`
	ImageID   string `json:"-"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// DeletedEventData is the payload of hard-delete events.
type DeletedEventData struct {
	ID    string `json:"id"`
	Count int    `json:"count,omitempty"` // tags removed with their subtree
}

// TagMovedEventData is the payload of tag move events.
type TagMovedEventData struct {
	Tag     *domain.Tag `json:"tag"`
	OldPath string      `json:"oldPath"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}

// NewProjectEvent creates a project created/updated event.
func NewProjectEvent(t EventType, p *domain.Project) Event {
	e := newEvent(t, p)
	e.ProjectID = p.ID
	return e
}

// NewProjectDeletedEvent creates a project deletion event.
func NewProjectDeletedEvent(projectID string) Event {
	e := newEvent(EventProjectDeleted, DeletedEventData{ID: projectID})
	e.ProjectID = projectID
	return e
}

// NewImageEvent creates an image created/updated event.
func NewImageEvent(t EventType, img *domain.Image) Event {
	e := newEvent(t, img)
	e.ProjectID = img.ProjectID
	e.ImageID = img.ID
	return e
}

// NewImageDeletedEvent creates an image deletion event.
func NewImageDeletedEvent(img *domain.Image) Event {
	e := newEvent(EventImageDeleted, DeletedEventData{ID: img.ID})
	e.ProjectID = img.ProjectID
	e.ImageID = img.ID
	return e
}

// NewAnnotationEvent creates an annotation event for an appended version.
// The change type picks the event type unless restored is set.
func NewAnnotationEvent(a *domain.Annotation, restored bool) Event {
	t := EventAnnotationCreated
	switch {
	case restored:
		t = EventAnnotationRestored
	case a.ChangeType == domain.ChangeUpdate:
		t = EventAnnotationUpdated
	case a.ChangeType == domain.ChangeDelete:
		t = EventAnnotationDeleted
	}
	e := newEvent(t, a)
	e.ImageID = a.ImageID
	return e
}

// NewTagEvent creates a tag created/updated event.
func NewTagEvent(t EventType, tag *domain.Tag) Event {
	return newEvent(t, tag)
}

// NewTagMovedEvent creates a tag move event.
func NewTagMovedEvent(tag *domain.Tag, oldPath string) Event {
	return newEvent(EventTagMoved, TagMovedEventData{Tag: tag, OldPath: oldPath})
}

// NewTagDeletedEvent creates a tag subtree deletion event.
func NewTagDeletedEvent(tagID string, count int) Event {
	return newEvent(EventTagDeleted, DeletedEventData{ID: tagID, Count: count})
}

// NewTaskEvent creates a task created/updated event.
func NewTaskEvent(t EventType, task *domain.Task) Event {
	e := newEvent(t, task)
	e.ProjectID = task.ProjectID
	e.ImageID = task.ImageID
	return e
}

// NewTaskDeletedEvent creates a task deletion event.
func NewTaskDeletedEvent(task *domain.Task) Event {
	e := newEvent(EventTaskDeleted, DeletedEventData{ID: task.ID})
	e.ProjectID = task.ProjectID
	e.ImageID = task.ImageID
	return e
}

// NewJobEvent creates an ML job status event.
func NewJobEvent(job *domain.MLJob) Event {
	e := newEvent(EventJobUpdated, job)
	e.ProjectID = job.ProjectID
	e.ImageID = job.ImageID
	return e
}
