package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared across the engine and its adapters. The engine only
// ever branches on these; everything else is an opaque wrapped error.
var (
	// ErrPermissionDenied means the library provider has no access to the
	// photo library. Fatal to the whole run.
	ErrPermissionDenied = errors.New("photo library access denied")

	// ErrAuth means the server rejected the API key (401/403).
	ErrAuth = errors.New("authentication rejected by server")

	// ErrAssetNotFound means the provider no longer knows the asset id.
	ErrAssetNotFound = errors.New("asset not found in library")
)

// ServerError is a non-2xx response from the remote server.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode exposes the status for retryability checks
func (e *ServerError) HTTPStatusCode() int {
	return e.StatusCode
}
