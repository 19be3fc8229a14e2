// Package errdefs defines the error kinds shared by the storage, sink and
// adapter packages. Callers match them with errors.Is.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a required piece of configuration is
	// missing or invalid, e.g. no storage bound or no output directory.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingResource is returned when an operation runs before the
	// resource it needs has been set up, e.g. a closed storage connection.
	ErrMissingResource = errors.New("missing resource")
)

// Configuration wraps ErrConfiguration with a formatted message.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// MissingResource wraps ErrMissingResource with a formatted message.
func MissingResource(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMissingResource, fmt.Sprintf(format, args...))
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsMissingResource reports whether err is a missing resource error.
func IsMissingResource(err error) bool {
	return errors.Is(err, ErrMissingResource)
}
