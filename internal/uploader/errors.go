// Copyright 2025 James Ross
package uploader

import "fmt"

// ServerError is the typed signal spec.md §4.2/§7 calls a "server-error":
// the endpoint responded with a non-2xx status. Upload returns it as
// its only non-nil error, so callers distinguish it from a transport
// failure (ok=false, nil error) by err != nil and move the batch into
// the retry pipeline instead of leaving it in place.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("upload server error: status %d: %s", e.StatusCode, e.Body)
}
