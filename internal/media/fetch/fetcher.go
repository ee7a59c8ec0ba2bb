// Package fetch downloads remote images for import.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// defaultMaxBytes bounds downloads when the caller passes no limit.
	defaultMaxBytes = 25 * 1024 * 1024

	// downloadTimeout is the maximum time for one download.
	downloadTimeout = 30 * time.Second
)

var (
	// ErrTooLarge is returned when the body exceeds the size limit.
	ErrTooLarge = errors.New("remote image exceeds size limit")
	// ErrNotImage is returned when the server reports a non-image content type.
	ErrNotImage = errors.New("remote resource is not an image")
)

// StatusError reports a non-200 response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s failed: status %d", e.URL, e.Status)
}

// Result holds a downloaded image.
type Result struct {
	Data        []byte
	ContentType string
	Filename    string // last path segment of the URL, or "image"
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a fetcher. A nil client uses one with a 30s timeout.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{httpClient: client, logger: logger}
}

// Fetch downloads rawURL, reading at most maxBytes (<= 0 uses the default).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (*Result, error) {
	if rawURL == "" {
		return nil, errors.New("empty image URL")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if !strings.HasPrefix(mediaType, "image/") && mediaType != "application/octet-stream" {
			return nil, fmt.Errorf("%w: %s", ErrNotImage, mediaType)
		}
		contentType = mediaType
	}

	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}

	result := &Result{
		Data:        data,
		ContentType: contentType,
		Filename:    filenameFromURL(rawURL),
	}

	f.logger.Debug("image downloaded",
		"url", rawURL,
		"size", len(data),
		"content_type", contentType,
	)

	return result, nil
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "image"
	}
	return name
}
