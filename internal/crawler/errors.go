package crawler

import (
	"errors"
	"fmt"
)

// Sentinel kinds, matched with errors.Is against the typed errors below.
var (
	ErrNetwork    = errors.New("network error")
	ErrParse      = errors.New("parse error")
	ErrStorage    = errors.New("storage error")
	ErrValidation = errors.New("validation error")
)

// NetworkError reports a failed fetch: transport failure, timeout or a
// non-success status.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ParseError reports a document that could not be read at all. Missing nodes
// are never a ParseError; they degrade to empty values.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// StorageError reports a failed row write or constraint violation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// ValidationError reports a missing or malformed corpus file.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid corpus %s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
