package storage

import "errors"

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrEmptyKey indicates an empty blob key was supplied.
	ErrEmptyKey = errors.New("blob key is empty")
	// ErrInvalidKey indicates a blob key with path traversal segments.
	ErrInvalidKey = errors.New("blob key is invalid")
)
