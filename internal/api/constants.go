package api

// Cache-Control header values.
const (
	// The bytes behind an image id never change.
	CacheImmutable = "private, max-age=31536000, immutable"
	CacheNoStore   = "no-store"
)

// uploadOverhead is the multipart framing allowance on top of the configured
// maximum image size.
const uploadOverhead = 1 << 20
