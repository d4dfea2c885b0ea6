package syncstate

import "github.com/cockroachdb/errors"

var (
	// ErrUnknownAccessFlags is returned when an access mask has bits that are neither known read bits
	// nor known write bits
	ErrUnknownAccessFlags error = errors.New("unknown access flag bits")
	// ErrOutOfBounds is returned when a buffer range or image subresource range reaches past the
	// resource
	ErrOutOfBounds error = errors.New("range lies outside the resource")
	// ErrInvalidRange is returned for ranges with no size and other malformed ranges
	ErrInvalidRange error = errors.New("invalid range")
	// ErrInvalidQueueFamily is returned when a queue family index is required but not provided
	ErrInvalidQueueFamily error = errors.New("invalid queue family index")
)
