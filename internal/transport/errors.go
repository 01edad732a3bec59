package transport

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindStatus      ErrorKind = "status"
	KindCircuitOpen ErrorKind = "circuit_open"
	KindInvalidURL  ErrorKind = "invalid_url"
	KindRender      ErrorKind = "render"
)

// FetchError is returned when a URL could not be retrieved after all retries.
// A bot-block page is not a FetchError; it comes back as a Document with
// Blocked set.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// IsKind reports whether err is a FetchError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == k
}
