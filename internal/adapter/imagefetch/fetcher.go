// Package imagefetch downloads images for verification.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

const (
	defaultMIMEType = "image/jpeg"
	// maxImageBytes is the largest cap a Fetcher accepts.
	maxImageBytes = 1 << 30
)

// ErrTooLarge is returned when an image exceeds the configured size cap.
var ErrTooLarge = errors.New("image exceeds size limit")

// Fetcher implements domain.ImageFetcher over HTTP.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewFetcher creates a Fetcher that refuses bodies larger than maxBytes,
// clamped to 1..1GiB. The request deadline comes from the caller's context.
func NewFetcher(httpClient *http.Client, maxBytes int64) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	maxBytes = min(max(maxBytes, 1), maxImageBytes)
	return &Fetcher{httpClient: httpClient, maxBytes: maxBytes}
}

// Fetch downloads url and sniffs its MIME type, falling back to image/jpeg
// when the content is not recognised as an image.
func (f *Fetcher) Fetch(ctx context.Context, url string) (domain.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Image{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Image{}, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Image{}, fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return domain.Image{}, fmt.Errorf("read image: %w (%d bytes)", ErrTooLarge, f.maxBytes)
	}
	if len(data) == 0 {
		return domain.Image{}, errors.New("read image: empty body")
	}

	return domain.Image{Data: data, MIMEType: detectMIME(data)}, nil
}

func detectMIME(data []byte) string {
	m := mimetype.Detect(data)
	if strings.HasPrefix(m.String(), "image/") {
		return m.String()
	}
	return defaultMIMEType
}
