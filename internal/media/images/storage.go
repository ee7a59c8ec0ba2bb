// Package images stores uploaded image files and extracts their properties.
package images

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrEmpty is returned for zero-byte uploads.
	ErrEmpty = errors.New("image data is empty")
	// ErrInvalidPath is returned for storage paths escaping the base directory.
	ErrInvalidPath = errors.New("invalid storage path")
)

// Stored describes a file written by Storage.Save.
type Stored struct {
	Path     string // relative to the storage root
	Size     int64
	Checksum string // blake2b-256, hex
	Existed  bool   // identical content was already on disk
}

// Storage keeps image files content-addressed under a base directory.
// Files live at {base}/{checksum[:2]}/{checksum}{ext}, so identical uploads
// share one file. Safe for concurrent use.
type Storage struct {
	basePath string
	mu       sync.RWMutex
}

// NewStorage creates the base directory if needed.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Save streams r to disk while hashing it. ext is appended to the file name
// (".png", ".jpg"); maxBytes <= 0 disables the size check.
func (s *Storage) Save(r io.Reader, ext string, maxBytes int64) (*Stored, error) {
	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	hasher, _ := blake2b.New256(nil) // only fails for oversized keys
	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}

	n, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	if n == 0 {
		return nil, ErrEmpty
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	rel := filepath.Join(sum[:2], sum+normalizeExt(ext))
	out := &Stored{Path: rel, Size: n, Checksum: sum}

	s.mu.Lock()
	defer s.mu.Unlock()

	full := filepath.Join(s.basePath, rel)
	if _, err := os.Stat(full); err == nil {
		out.Existed = true
		return out, nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return nil, fmt.Errorf("failed to move image into place: %w", err)
	}
	return out, nil
}

// Open opens a stored image for reading.
func (s *Storage) Open(rel string) (*os.File, error) {
	full, err := s.Path(rel)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found at %s: %w", rel, err)
		}
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return f, nil
}

// Exists reports whether rel points at a stored file.
func (s *Storage) Exists(rel string) bool {
	full, err := s.Path(rel)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(full)
	return err == nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Storage) Delete(rel string) error {
	full, err := s.Path(rel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Path resolves rel against the base directory, rejecting paths that escape it.
func (s *Storage) Path(rel string) (string, error) {
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return filepath.Join(s.basePath, rel), nil
}

// Root returns the base directory.
func (s *Storage) Root() string {
	return s.basePath
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if len(ext) > 6 || strings.ContainsFunc(ext[1:], func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) {
		return ""
	}
	return ext
}
