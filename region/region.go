package region

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/synctrack"
	"golang.org/x/exp/constraints"
)

// MaxDimensions is the largest number of dimensions a Region can have
const MaxDimensions = 4

// Coordinate is the set of types that can be used as region coordinates. Buffers use int64 byte
// offsets and images use uint32 subresource coordinates.
type Coordinate interface {
	constraints.Integer
}

// Region is an axis-aligned, half-open interval over up to MaxDimensions integer dimensions.
// start is always less than or equal to end in every dimension. A region with start == end in
// any dimension has zero volume and is only useful as a marker; operations that require volume
// reject it.
//
// Region is a value type: coordinates for unused dimensions are always zero, so two regions can
// be compared with ==.
type Region[T Coordinate] struct {
	dims  int
	start [MaxDimensions]T
	end   [MaxDimensions]T
}

// New creates a region from per-dimension start and end coordinates.
func New[T Coordinate](start, end []T) (Region[T], error) {
	if len(start) != len(end) {
		return Region[T]{}, errors.Wrapf(synctrack.ErrDimensionMismatch, "start has %d coordinates but end has %d", len(start), len(end))
	}

	if len(start) == 0 {
		return Region[T]{}, errors.Wrap(synctrack.ErrDimensionMismatch, "a region must have at least one dimension")
	}

	if len(start) > MaxDimensions {
		return Region[T]{}, errors.Wrapf(synctrack.ErrTooManyDimensions, "requested %d dimensions, the maximum is %d", len(start), MaxDimensions)
	}

	r := Region[T]{dims: len(start)}
	for i := range start {
		if start[i] > end[i] {
			return Region[T]{}, errors.Wrapf(synctrack.ErrInvertedRegion, "dimension %d runs from %d to %d", i, start[i], end[i])
		}

		r.start[i] = start[i]
		r.end[i] = end[i]
	}

	return r, nil
}

// MustNew is New, but panics on error
func MustNew[T Coordinate](start, end []T) Region[T] {
	r, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Span creates a one-dimensional region [start, end)
func Span[T Coordinate](start, end T) Region[T] {
	return MustNew([]T{start}, []T{end})
}

// Dimensions returns the number of dimensions of the region
func (r Region[T]) Dimensions() int { return r.dims }

// Start returns the inclusive start coordinate of the region in the provided dimension
func (r Region[T]) Start(dim int) T { return r.start[dim] }

// End returns the exclusive end coordinate of the region in the provided dimension
func (r Region[T]) End(dim int) T { return r.end[dim] }

// StartCoords returns a copy of the region's start coordinates
func (r Region[T]) StartCoords() []T {
	coords := make([]T, r.dims)
	copy(coords, r.start[:r.dims])
	return coords
}

// EndCoords returns a copy of the region's end coordinates
func (r Region[T]) EndCoords() []T {
	coords := make([]T, r.dims)
	copy(coords, r.end[:r.dims])
	return coords
}

// Volume returns the product over all dimensions of end - start. Each factor is widened to
// uint64 before it is multiplied, so signed coordinates with a span larger than the coordinate
// type can represent are measured correctly. Degenerate regions have a volume of zero.
func (r Region[T]) Volume() uint64 {
	if r.dims == 0 {
		return 0
	}

	volume := uint64(1)
	for i := 0; i < r.dims; i++ {
		if r.end[i] <= r.start[i] {
			return 0
		}

		volume *= uint64(r.end[i]) - uint64(r.start[i])
	}

	return volume
}

// VolumeAs computes the region's volume, accumulating into the integer type R
func VolumeAs[R constraints.Integer, T Coordinate](r Region[T]) R {
	if r.dims == 0 {
		return 0
	}

	volume := R(1)
	for i := 0; i < r.dims; i++ {
		if r.end[i] <= r.start[i] {
			return 0
		}

		volume *= R(r.end[i]) - R(r.start[i])
	}

	return volume
}

// IsEmpty returns true if the region has zero volume
func (r Region[T]) IsEmpty() bool {
	return r.Volume() == 0
}

func (r Region[T]) mustMatch(other Region[T]) {
	if r.dims != other.dims {
		panic(errors.AssertionFailedf("region has %d dimensions but the other region has %d", r.dims, other.dims))
	}
}

// Intersects returns true if both regions overlap with positive extent in every dimension.
// Regions that only touch at a boundary do not intersect.
func (r Region[T]) Intersects(other Region[T]) bool {
	r.mustMatch(other)

	if r.dims == 0 {
		return false
	}

	for i := 0; i < r.dims; i++ {
		if max(r.start[i], other.start[i]) >= min(r.end[i], other.end[i]) {
			return false
		}
	}

	return true
}

// Intersection returns the overlap between the two regions. The boolean return value is false
// if the regions do not intersect, in which case the returned region is meaningless.
func (r Region[T]) Intersection(other Region[T]) (Region[T], bool) {
	r.mustMatch(other)

	if r.dims == 0 {
		return Region[T]{}, false
	}

	result := Region[T]{dims: r.dims}
	for i := 0; i < r.dims; i++ {
		result.start[i] = max(r.start[i], other.start[i])
		result.end[i] = min(r.end[i], other.end[i])

		if result.end[i] <= result.start[i] {
			return Region[T]{}, false
		}
	}

	return result, true
}

// Contains returns true if other lies entirely within this region
func (r Region[T]) Contains(other Region[T]) bool {
	r.mustMatch(other)

	for i := 0; i < r.dims; i++ {
		if other.start[i] < r.start[i] || other.end[i] > r.end[i] {
			return false
		}
	}

	return true
}

// Cut shrinks this region to its intersection with tool and appends the parts of the region
// that lie outside tool to splits as whole regions.
//
// Dimensions are processed in order. For each one, at most one slab below tool and one slab
// above tool are produced, and each slab spans the full current extent of the region in every
// other dimension. The leftover slabs and the shrunken region always have the same total volume
// as the original region.
//
// If the regions do not intersect, the region is not modified, splits is returned unchanged,
// and the boolean return value is false. A region that is already fully inside tool is a
// successful cut that produces no slabs.
func (r *Region[T]) Cut(tool Region[T], splits []Region[T]) ([]Region[T], bool) {
	if !r.Intersects(tool) {
		return splits, false
	}

	for i := 0; i < r.dims; i++ {
		if r.start[i] < tool.start[i] {
			slab := *r
			slab.end[i] = tool.start[i]
			splits = append(splits, slab)
			r.start[i] = tool.start[i]
		}

		if r.end[i] > tool.end[i] {
			slab := *r
			slab.start[i] = tool.end[i]
			splits = append(splits, slab)
			r.end[i] = tool.end[i]
		}
	}

	return splits, true
}

// Compare orders regions lexicographically by start coordinates, then by end coordinates
func Compare[T Coordinate](left, right Region[T]) int {
	left.mustMatch(right)

	for i := 0; i < left.dims; i++ {
		if left.start[i] != right.start[i] {
			if left.start[i] < right.start[i] {
				return -1
			}
			return 1
		}
	}

	for i := 0; i < left.dims; i++ {
		if left.end[i] != right.end[i] {
			if left.end[i] < right.end[i] {
				return -1
			}
			return 1
		}
	}

	return 0
}

// Validate checks that the region has a supported dimension count and is not inverted
func (r Region[T]) Validate() error {
	if r.dims == 0 {
		return errors.Wrap(synctrack.ErrDimensionMismatch, "region has no dimensions")
	}

	if r.dims > MaxDimensions {
		return errors.Wrapf(synctrack.ErrTooManyDimensions, "region has %d dimensions", r.dims)
	}

	for i := 0; i < r.dims; i++ {
		if r.start[i] > r.end[i] {
			return errors.Wrapf(synctrack.ErrInvertedRegion, "dimension %d runs from %d to %d", i, r.start[i], r.end[i])
		}
	}

	return nil
}

func (r Region[T]) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < r.dims; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d..%d", r.start[i], r.end[i])
	}
	sb.WriteString(")")
	return sb.String()
}
