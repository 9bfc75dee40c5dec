package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the backend has no content for the id.
	ErrNotFound = errors.New("storage: content not found")

	// ErrBackendUnavailable indicates a backend refused or failed the request.
	ErrBackendUnavailable = errors.New("storage: backend unavailable")

	// ErrNetworkTimeout indicates an attempt exceeded its deadline.
	ErrNetworkTimeout = errors.New("storage: network timeout")

	// ErrAllBackendsFailed indicates every configured backend failed.
	ErrAllBackendsFailed = errors.New("storage: all backends failed")

	// ErrPartialNotFound indicates the payload is unavailable but its
	// metadata was recovered.
	ErrPartialNotFound = errors.New("storage: payload not found, metadata recovered")

	// ErrContentMismatch indicates returned bytes do not hash to the requested id.
	ErrContentMismatch = errors.New("storage: content does not match id")

	// ErrInvalidContentID indicates a malformed content id.
	ErrInvalidContentID = errors.New("storage: invalid content id")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrEmptyContent indicates an attempt to store empty content.
	ErrEmptyContent = errors.New("storage: content is empty")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrNoBackends indicates a gateway was built without backends.
	ErrNoBackends = errors.New("storage: no backends configured")
)

// BackendError records one failed attempt.
type BackendError struct {
	Backend string
	Err     error
}

func (e BackendError) Error() string {
	return e.Backend + ": " + e.Err.Error()
}

// AllBackendsFailedError is returned when no backend could serve an
// operation. It matches ErrAllBackendsFailed and unwraps to every attempt
// error, so errors.Is also finds the individual causes.
type AllBackendsFailedError struct {
	Op       string
	Attempts []BackendError
}

func (e *AllBackendsFailedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("%s: %s [%s]", ErrAllBackendsFailed, e.Op, strings.Join(parts, "; "))
}

// Is reports whether target is ErrAllBackendsFailed.
func (e *AllBackendsFailedError) Is(target error) bool {
	return target == ErrAllBackendsFailed
}

// Unwrap returns every attempt error.
func (e *AllBackendsFailedError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// Last returns the error of the final attempt, or nil.
func (e *AllBackendsFailedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// NotFound reports whether every backend answered ErrNotFound, meaning the
// content is absent rather than unreachable.
func (e *AllBackendsFailedError) NotFound() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !errors.Is(a.Err, ErrNotFound) {
			return false
		}
	}
	return true
}

// PartialNotFoundError is returned by retrieval when every backend failed
// but descriptive metadata for the id is known.
type PartialNotFoundError struct {
	ID    ContentID
	Meta  ObjectMeta
	Cause *AllBackendsFailedError
}

func (e *PartialNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPartialNotFound, e.ID)
}

// Is reports whether target is ErrPartialNotFound.
func (e *PartialNotFoundError) Is(target error) bool {
	return target == ErrPartialNotFound
}

// Unwrap returns the backend failure that caused the partial result.
func (e *PartialNotFoundError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}
