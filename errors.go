package synctrack

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument is wrapped by the panics raised when a caller breaks the contract of a
	// tracker operation, such as passing an empty region list
	ErrInvalidArgument error = errors.New("invalid argument")
	// ErrDimensionMismatch is returned when two regions or coordinate lists that must share a
	// dimension count do not
	ErrDimensionMismatch error = errors.New("dimension count mismatch")
	// ErrTooManyDimensions is returned when a region is requested with more than region.MaxDimensions
	// dimensions
	ErrTooManyDimensions error = errors.New("too many dimensions")
	// ErrInvertedRegion is returned when a region's start coordinate is greater than its end coordinate
	// in some dimension
	ErrInvertedRegion error = errors.New("region start must not exceed region end")
)
