package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/helixml/damkit/domain/asset"
)

// FetchError reports a non-2xx response from a remote file.
type FetchError struct {
	Status string
}

// Error implements error.
func (e *FetchError) Error() string {
	return "Failed to fetch file: " + e.Status
}

// Fetched is a remote file read into memory.
type Fetched struct {
	Data        []byte
	ContentType string
}

// Fetcher downloads remote files for import.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher that refuses bodies larger than maxBytes.
// A nil client uses a client with a 60 second timeout.
func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads rawURL. A missing or generic content type is replaced by
// one sniffed from the bytes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Fetched{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Fetched{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Fetched{}, &FetchError{Status: resp.Status}
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Fetched{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return Fetched{}, fmt.Errorf("file exceeds %d bytes", f.maxBytes)
	}

	return Fetched{Data: data, ContentType: DetectContentType(resp.Header.Get("Content-Type"), data)}, nil
}

// DetectContentType returns declared when it names a specific media type,
// otherwise the type sniffed from data.
func DetectContentType(declared string, data []byte) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != asset.DefaultContentType {
			return declared
		}
	}
	if len(data) == 0 {
		return asset.DefaultContentType
	}
	return mimetype.Detect(data).String()
}

// SniffReader peeks at r to detect its content type and returns a reader
// that still yields the full stream.
func SniffReader(declared string, r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]
	return DetectContentType(declared, head), io.MultiReader(bytes.NewReader(head), r), nil
}
