package config

import "errors"

var (
	// ErrInvalidConfigType is returned when the target is not a non-nil
	// pointer to a struct.
	ErrInvalidConfigType = errors.New("config target must be a non-nil struct pointer")

	// ErrParseFailed is returned when environment parsing fails, typically a
	// missing required variable or an unparseable value.
	ErrParseFailed = errors.New("failed to parse environment")
)
