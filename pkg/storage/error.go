package storage

import "errors"

// NotFoundError is returned when an image record doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "image not found"
	}

	return "image not found: " + e.ID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
