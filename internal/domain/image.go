package domain

// ImageStatus tracks annotation progress for an image.
type ImageStatus string

// Image statuses.
const (
	ImagePending   ImageStatus = "pending"
	ImageAnnotated ImageStatus = "annotated"
	ImageReviewed  ImageStatus = "reviewed"
)

// Image is an uploaded or ingested picture belonging to a project.
type Image struct {
	Base
	ProjectID   string            `json:"projectId"`
	Filename    string            `json:"filename"`
	StoragePath string            `json:"storagePath"` // relative to the image directory
	URL         string            `json:"url,omitempty"`
	MimeType    string            `json:"mimeType"`
	Size        int64             `json:"size"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Checksum    string            `json:"checksum"` // blake2b-256, hex
	BlurHash    string            `json:"blurHash,omitempty"`
	Status      ImageStatus       `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
