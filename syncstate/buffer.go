package syncstate

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/synctrack"
	"github.com/vkngwrapper/arsenal/synctrack/history"
	"github.com/vkngwrapper/arsenal/synctrack/internal/utils"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// BufferRange is a byte range within a buffer
type BufferRange struct {
	Offset int
	Size   int
}

// BufferTracker records the access history of one buffer's byte range and reports the barriers
// each new access requires
type BufferTracker struct {
	logger *slog.Logger
	mutex  utils.RWLock
	size   int

	tracker *history.Tracker[AccessScope, int64]
}

var _ synctrack.Validatable = &BufferTracker{}

func NewBufferTracker(size int, options TrackerOptions) (*BufferTracker, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "buffer size %d must be positive", size)
	}

	tracker, err := history.NewTracker[AccessScope, int64](region.Span[int64](0, int64(size)))
	if err != nil {
		return nil, err
	}

	return &BufferTracker{
		logger:  options.logger(),
		mutex:   utils.NewRWLock(options.Synchronized),
		size:    size,
		tracker: tracker,
	}, nil
}

// Size returns the size of the tracked buffer in bytes
func (b *BufferTracker) Size() int {
	return b.size
}

func (b *BufferTracker) rangeRegions(ranges []BufferRange) ([]region.Region[int64], error) {
	if len(ranges) == 0 {
		return nil, errors.Wrap(ErrInvalidRange, "at least one buffer range is required")
	}

	regions := make([]region.Region[int64], 0, len(ranges))
	for _, bufferRange := range ranges {
		if bufferRange.Size <= 0 {
			return nil, errors.Wrapf(ErrInvalidRange, "buffer range at offset %d has size %d", bufferRange.Offset, bufferRange.Size)
		}

		if bufferRange.Offset < 0 || bufferRange.Offset > b.size-bufferRange.Size {
			return nil, errors.Wrapf(ErrOutOfBounds, "buffer range [%d, %d) does not fit in a buffer of size %d", bufferRange.Offset, bufferRange.Offset+bufferRange.Size, b.size)
		}

		regions = append(regions, region.Span(int64(bufferRange.Offset), int64(bufferRange.Offset+bufferRange.Size)))
	}

	return regions, nil
}

func validateAccess(access AccessScope) (AccessType, error) {
	accessType, err := ClassifyAccess(access.AccessMask)
	if err != nil {
		return AccessNone, err
	}

	if access.QueueFamily < QueueFamilyIgnored {
		return AccessNone, errors.Wrapf(ErrInvalidQueueFamily, "queue family %d", access.QueueFamily)
	}

	return accessType, nil
}

// Access records an access to [offset, offset+size) and returns the barriers that must be
// executed before it. The access Layout is ignored.
func (b *BufferTracker) Access(offset, size int, access AccessScope) ([]Barrier[int64], error) {
	return b.AccessRanges([]BufferRange{{Offset: offset, Size: size}}, access)
}

// AccessRanges records a single access covering several byte ranges, which may overlap
func (b *BufferTracker) AccessRanges(ranges []BufferRange, access AccessScope) ([]Barrier[int64], error) {
	regions, err := b.rangeRegions(ranges)
	if err != nil {
		return nil, err
	}

	accessType, err := validateAccess(access)
	if err != nil {
		return nil, err
	}
	access.Layout = core1_0.ImageLayoutUndefined

	b.mutex.Lock()
	defer b.mutex.Unlock()

	transitions := newAccessTransitions[int64](access, accessType, false)
	b.tracker.Override(regions, transitions)

	logBarriers(b.logger, "BufferTracker::Access", transitions.barriers)
	return transitions.barriers, nil
}

// State returns the scopes currently recorded over [offset, offset+size). Bytes that have never
// been accessed are not reported.
func (b *BufferTracker) State(offset, size int) ([]RangeState[int64], error) {
	regions, err := b.rangeRegions([]BufferRange{{Offset: offset, Size: size}})
	if err != nil {
		return nil, err
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return collectStates(b.tracker, regions), nil
}

// Discard forgets the recorded scopes over [offset, offset+size), such as after the memory is
// aliased by another resource. The discarded scopes are returned. The next access to the range
// will not synchronize against them.
func (b *BufferTracker) Discard(offset, size int) ([]RangeState[int64], error) {
	regions, err := b.rangeRegions([]BufferRange{{Offset: offset, Size: size}})
	if err != nil {
		return nil, err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	discarded, volume := discardStates(b.tracker, regions)
	if volume > 0 {
		b.logger.LogAttrs(context.Background(), slog.LevelDebug, "BufferTracker::Discard",
			slog.Int("Offset", offset),
			slog.Int("Size", size),
			slog.Uint64("DiscardedBytes", volume),
		)
	}

	return discarded, nil
}

// Reset forgets every recorded scope
func (b *BufferTracker) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.tracker.Reset(nil)
}

// IsEmpty returns true if no byte of the buffer has a recorded scope
func (b *BufferTracker) IsEmpty() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.tracker.IsEmpty()
}

func (b *BufferTracker) Validate() error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.tracker.Validate()
}

func (b *BufferTracker) AddStatistics(stats *synctrack.Statistics) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	b.tracker.AddStatistics(stats)
}

// LogState writes every tracked range to the tracker's logger at debug level
func (b *BufferTracker) LogState() {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	b.tracker.DebugLogAllEntries(b.logger, logEntry[int64])
}

func (b *BufferTracker) JsonData(json *jwriter.ObjectState) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	json.Name("Size").Int(b.size)
	b.tracker.JsonData(json, writeScope)
}

func writeScope(json *jwriter.ObjectState, state AccessScope) {
	obj := json.Name("State").Object()
	state.jsonData(&obj)
	obj.End()
}
