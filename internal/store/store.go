// Package store defines the content-store contract shared by the ticket
// collection backends: read a whole file with its version hash, and write it
// back only if that hash is still current.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// File is the current content of a stored file and its version hash.
type File struct {
	Content []byte
	SHA     string
}

// ContentStore reads and conditionally writes whole files.
type ContentStore interface {
	GetFile(ctx context.Context, path string) (*File, error)
	PutFile(ctx context.Context, path string, content []byte, expectedSHA, message string) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIError is a non-success response from a store. Body holds the raw
// response text so callers can forward it verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store: status %d: %s", e.StatusCode, e.Body)
}

// IsConflict reports whether the write was rejected because the expected
// hash no longer matches the stored file.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
