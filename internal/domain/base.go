package domain

import "time"

// Base holds the fields every stored document carries.
// It is embedded in each domain type persisted through a store collection.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentID returns the document identifier.
func (b *Base) DocumentID() string {
	return b.ID
}

// SetDocumentID assigns the document identifier.
func (b *Base) SetDocumentID(id string) {
	b.ID = id
}

// Touch updates the UpdatedAt timestamp to the current time.
func (b *Base) Touch() {
	b.UpdatedAt = time.Now().UTC()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (b *Base) InitTimestamps() {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
}
