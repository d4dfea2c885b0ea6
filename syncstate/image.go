package syncstate

import (
	"context"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/synctrack"
	"github.com/vkngwrapper/arsenal/synctrack/history"
	"github.com/vkngwrapper/arsenal/synctrack/internal/utils"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// ImageTracker records the access history of one image's subresources and reports the barriers
// each new access requires, including layout transitions.
//
// Subresources are tracked in a three dimensional domain: aspect bit index, mip level and array
// layer. Aspect masks are split into runs of adjacent bits, so a depth/stencil access is a
// single region.
type ImageTracker struct {
	logger *slog.Logger
	mutex  utils.RWLock

	aspects     core1_0.ImageAspectFlags
	mipLevels   int
	arrayLayers int

	tracker *history.Tracker[AccessScope, uint32]
}

var _ synctrack.Validatable = &ImageTracker{}

func NewImageTracker(aspects core1_0.ImageAspectFlags, mipLevels, arrayLayers int, options TrackerOptions) (*ImageTracker, error) {
	if aspects == 0 {
		return nil, errors.Wrap(ErrInvalidRange, "an image must have at least one aspect")
	}

	if mipLevels <= 0 || arrayLayers <= 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "an image must have at least one mip level and array layer, but has %d and %d", mipLevels, arrayLayers)
	}

	mask := uint32(aspects)
	domain := region.MustNew(
		[]uint32{uint32(bits.TrailingZeros32(mask)), 0, 0},
		[]uint32{uint32(32 - bits.LeadingZeros32(mask)), uint32(mipLevels), uint32(arrayLayers)},
	)

	tracker, err := history.NewTracker[AccessScope, uint32](domain)
	if err != nil {
		return nil, err
	}

	return &ImageTracker{
		logger:      options.logger(),
		mutex:       utils.NewRWLock(options.Synchronized),
		aspects:     aspects,
		mipLevels:   mipLevels,
		arrayLayers: arrayLayers,
		tracker:     tracker,
	}, nil
}

func (t *ImageTracker) Aspects() core1_0.ImageAspectFlags { return t.aspects }
func (t *ImageTracker) MipLevels() int                    { return t.mipLevels }
func (t *ImageTracker) ArrayLayers() int                  { return t.arrayLayers }

// aspectRuns splits an aspect mask into half-open runs of adjacent bit indices
func aspectRuns(aspects core1_0.ImageAspectFlags) [][2]uint32 {
	var runs [][2]uint32

	mask := uint32(aspects)
	for mask != 0 {
		start := uint32(bits.TrailingZeros32(mask))
		length := uint32(bits.TrailingZeros32(^(mask >> start)))
		runs = append(runs, [2]uint32{start, start + length})

		if start+length >= 32 {
			break
		}
		mask &^= (uint32(1)<<length - 1) << start
	}

	return runs
}

func (t *ImageTracker) subresourceRegions(ranges []core1_0.ImageSubresourceRange) ([]region.Region[uint32], error) {
	if len(ranges) == 0 {
		return nil, errors.Wrap(ErrInvalidRange, "at least one subresource range is required")
	}

	var regions []region.Region[uint32]
	for _, subresources := range ranges {
		if subresources.AspectMask == 0 {
			return nil, errors.Wrap(ErrInvalidRange, "subresource range has an empty aspect mask")
		}

		if subresources.AspectMask&^t.aspects != 0 {
			return nil, errors.Wrapf(ErrOutOfBounds, "aspect mask %#x is not part of the image's aspects %#x", int64(subresources.AspectMask), int64(t.aspects))
		}

		if subresources.LevelCount <= 0 || subresources.LayerCount <= 0 {
			return nil, errors.Wrapf(ErrInvalidRange, "subresource range covers %d mip levels and %d array layers", subresources.LevelCount, subresources.LayerCount)
		}

		if subresources.BaseMipLevel < 0 || subresources.BaseMipLevel > t.mipLevels-subresources.LevelCount {
			return nil, errors.Wrapf(ErrOutOfBounds, "mip levels [%d, %d) do not fit in an image with %d mip levels", subresources.BaseMipLevel, subresources.BaseMipLevel+subresources.LevelCount, t.mipLevels)
		}

		if subresources.BaseArrayLayer < 0 || subresources.BaseArrayLayer > t.arrayLayers-subresources.LayerCount {
			return nil, errors.Wrapf(ErrOutOfBounds, "array layers [%d, %d) do not fit in an image with %d array layers", subresources.BaseArrayLayer, subresources.BaseArrayLayer+subresources.LayerCount, t.arrayLayers)
		}

		for _, run := range aspectRuns(subresources.AspectMask) {
			regions = append(regions, region.MustNew(
				[]uint32{run[0], uint32(subresources.BaseMipLevel), uint32(subresources.BaseArrayLayer)},
				[]uint32{run[1], uint32(subresources.BaseMipLevel + subresources.LevelCount), uint32(subresources.BaseArrayLayer + subresources.LayerCount)},
			))
		}
	}

	return regions, nil
}

// SubresourceRanges converts tracker regions, such as Barrier.Regions, back into subresource
// ranges
func SubresourceRanges(regions []region.Region[uint32]) []core1_0.ImageSubresourceRange {
	ranges := make([]core1_0.ImageSubresourceRange, 0, len(regions))
	for _, r := range regions {
		aspects := (uint64(1)<<r.End(0) - 1) &^ (uint64(1)<<r.Start(0) - 1)

		ranges = append(ranges, core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectFlags(aspects),
			BaseMipLevel:   int(r.Start(1)),
			LevelCount:     int(r.End(1) - r.Start(1)),
			BaseArrayLayer: int(r.Start(2)),
			LayerCount:     int(r.End(2) - r.Start(2)),
		})
	}

	return ranges
}

// Access records an access to a range of subresources and returns the barriers that must be
// executed before it. Subresources touched for the first time report a transition from
// core1_0.ImageLayoutUndefined unless the access itself uses that layout.
func (t *ImageTracker) Access(subresources core1_0.ImageSubresourceRange, access AccessScope) ([]Barrier[uint32], error) {
	return t.AccessRanges([]core1_0.ImageSubresourceRange{subresources}, access)
}

// AccessRanges records a single access covering several subresource ranges, which may overlap
func (t *ImageTracker) AccessRanges(ranges []core1_0.ImageSubresourceRange, access AccessScope) ([]Barrier[uint32], error) {
	regions, err := t.subresourceRegions(ranges)
	if err != nil {
		return nil, err
	}

	accessType, err := validateAccess(access)
	if err != nil {
		return nil, err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	transitions := newAccessTransitions[uint32](access, accessType, true)
	t.tracker.Override(regions, transitions)

	logBarriers(t.logger, "ImageTracker::Access", transitions.barriers)
	return transitions.barriers, nil
}

// State returns the scopes currently recorded over a range of subresources. Subresources that
// have never been accessed are not reported.
func (t *ImageTracker) State(subresources core1_0.ImageSubresourceRange) ([]RangeState[uint32], error) {
	regions, err := t.subresourceRegions([]core1_0.ImageSubresourceRange{subresources})
	if err != nil {
		return nil, err
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return collectStates(t.tracker, regions), nil
}

// Discard forgets the recorded scopes over a range of subresources. The next access to those
// subresources transitions from core1_0.ImageLayoutUndefined.
func (t *ImageTracker) Discard(subresources core1_0.ImageSubresourceRange) ([]RangeState[uint32], error) {
	regions, err := t.subresourceRegions([]core1_0.ImageSubresourceRange{subresources})
	if err != nil {
		return nil, err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	discarded, volume := discardStates(t.tracker, regions)
	if volume > 0 {
		t.logger.LogAttrs(context.Background(), slog.LevelDebug, "ImageTracker::Discard",
			slog.Any("AspectMask", subresources.AspectMask),
			slog.Int("BaseMipLevel", subresources.BaseMipLevel),
			slog.Int("BaseArrayLayer", subresources.BaseArrayLayer),
			slog.Uint64("DiscardedSubresources", volume),
		)
	}

	return discarded, nil
}

func (t *ImageTracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.tracker.Reset(nil)
}

func (t *ImageTracker) IsEmpty() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.tracker.IsEmpty()
}

func (t *ImageTracker) Validate() error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.tracker.Validate()
}

func (t *ImageTracker) AddStatistics(stats *synctrack.Statistics) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	t.tracker.AddStatistics(stats)
}

func (t *ImageTracker) LogState() {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	t.tracker.DebugLogAllEntries(t.logger, logEntry[uint32])
}

func (t *ImageTracker) JsonData(json *jwriter.ObjectState) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	json.Name("Aspects").Int(int(t.aspects))
	json.Name("MipLevels").Int(t.mipLevels)
	json.Name("ArrayLayers").Int(t.arrayLayers)
	t.tracker.JsonData(json, writeScope)
}
