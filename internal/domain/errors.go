package domain

import "errors"

// common domain errors that cross entity boundaries.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFrequencyType means a goal carries a frequency type with no
	// calculation branch. this is a schema/version mismatch and must surface.
	ErrUnsupportedFrequencyType = errors.New("unsupported frequency type")
)
