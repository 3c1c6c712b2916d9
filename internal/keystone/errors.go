package keystone

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("keystone: unauthorized")
	ErrNotFound     = errors.New("keystone: not found")
	ErrConflict     = errors.New("keystone: conflict")
)

// HTTPError es cualquier otra respuesta no 2xx.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("keystone: %s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("keystone: %s %s: %d", e.Method, e.URL, e.StatusCode)
}

// Unwrap permite errors.Is contra los sentinels por status.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}
