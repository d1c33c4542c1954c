package storage

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a row with the same unique key exists.
	ErrDuplicate = errors.New("storage: duplicate")
)
