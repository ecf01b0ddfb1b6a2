package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when the service or detector is set up
	// with values it can't work with. Instances in this state must not be used.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidThreshold is returned for negative or NaN thresholds.
	ErrInvalidThreshold = fmt.Errorf("%w: threshold must be a non-negative number", ErrConfiguration)

	// ErrMissingCamera is returned when the camera dependency is absent.
	ErrMissingCamera = fmt.Errorf("%w: a camera name is required", ErrConfiguration)

	// ErrUnsupportedFormat is returned for encoded images whose mime type
	// is outside SupportedMimeTypes.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrMalformedImage is returned when the bytes of a supported container
	// can't be parsed.
	ErrMalformedImage = errors.New("malformed image")

	// ErrShapeMismatch is returned when two images don't have the same
	// width and height.
	ErrShapeMismatch = errors.New("images must be of the same size to compare")

	// ErrMismatchedSource is returned when a request names a camera other
	// than the configured one.
	ErrMismatchedSource = errors.New("camera name mismatch")
)
