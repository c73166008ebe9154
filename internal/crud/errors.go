package crud

import "errors"

var (
	// ErrNotFound is returned when a referenced header is not held locally.
	ErrNotFound = errors.New("not found")

	// ErrSingletonViolation is returned when a singleton type already has a
	// create header discoverable under its path.
	ErrSingletonViolation = errors.New("singleton already exists")

	// ErrDeleteForbidden is returned when the type does not allow delete.
	ErrDeleteForbidden = errors.New("delete forbidden")

	// ErrEntryTypeMismatch is returned when a header belongs to another
	// entry type, or names a delete where a live revision is required.
	ErrEntryTypeMismatch = errors.New("entry type mismatch")
)
