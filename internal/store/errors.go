package store

import "errors"

var (
	// ErrNotFound is returned when the referenced item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrAlreadyInStatus is returned when a transition targets the status
	// the item already has. Nothing is written.
	ErrAlreadyInStatus = errors.New("item already in requested status")
)
