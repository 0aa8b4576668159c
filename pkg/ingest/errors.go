package ingest

import (
	"errors"

	"github.com/papercomputeco/snaps/pkg/shotdate"
)

var (
	// ErrMissingField is returned when a required upload field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField is returned when an upload field is present but malformed.
	ErrInvalidField = errors.New("invalid field")

	// ErrUnsupportedImage is returned when the uploaded bytes are not a
	// decodable image of a supported type.
	ErrUnsupportedImage = errors.New("unsupported image")

	// ErrInvalidShotDate is returned when shot_date is not YYYY-MM-DD.
	ErrInvalidShotDate = shotdate.ErrInvalid
)

// IsValidation reports whether err was caused by bad input rather than a
// failing backend.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidField) ||
		errors.Is(err, ErrUnsupportedImage) ||
		errors.Is(err, ErrInvalidShotDate)
}
