package history

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/synctrack"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"golang.org/x/exp/slog"
)

// Tracker records the state history of one resource domain, such as a buffer's byte range or
// one aspect of an image's mip/layer grid. It owns a chain of entries in which newer entries
// shadow older ones and consults a TransitionSystem whenever a new access overlaps recorded
// state.
//
// Tracker performs no internal synchronization. Callers that share a Tracker between goroutines
// must serialize every call.
type Tracker[V any, T region.Coordinate] struct {
	domain region.Region[T]
	chain  chain[V, T]
}

var _ synctrack.Validatable = &Tracker[int, int]{}

// NewTracker creates an empty Tracker over the provided domain. Every region later passed to
// the Tracker must lie inside the domain.
func NewTracker[V any, T region.Coordinate](domain region.Region[T]) (*Tracker[V, T], error) {
	err := domain.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid tracker domain")
	}

	if domain.IsEmpty() {
		return nil, errors.Wrapf(synctrack.ErrInvalidArgument, "tracker domain %s has no volume", domain)
	}

	return &Tracker[V, T]{
		domain: domain,
		chain:  newChain[V, T](),
	}, nil
}

// Domain returns the region this Tracker was created over
func (t *Tracker[V, T]) Domain() region.Region[T] {
	return t.domain
}

func (t *Tracker[V, T]) prepare(regions []region.Region[T], transitions TransitionSystem[V, T]) []region.Region[T] {
	if transitions == nil {
		panic(errors.Wrap(synctrack.ErrInvalidArgument, "a transition system is required"))
	}

	if len(regions) == 0 {
		panic(errors.Wrap(synctrack.ErrInvalidArgument, "at least one region is required"))
	}

	for i, r := range regions {
		if r.Dimensions() != t.domain.Dimensions() {
			panic(errors.Wrapf(synctrack.ErrInvalidArgument, "region %d has %d dimensions, but the tracker domain has %d", i, r.Dimensions(), t.domain.Dimensions()))
		}

		if r.IsEmpty() {
			panic(errors.Wrapf(synctrack.ErrInvalidArgument, "region %d (%s) has no volume", i, r))
		}

		if !t.domain.Contains(r) {
			panic(errors.Wrapf(synctrack.ErrInvalidArgument, "region %d (%s) lies outside the tracker domain %s", i, r, t.domain))
		}
	}

	return region.Normalize(regions)
}

// Update reports the recorded state overlapping the provided regions to transitions.OnUpdate,
// once per overlapping entry. Values may be modified in place, but the set of recorded regions
// never changes.
//
// regions may overlap one another. Passing no regions, an empty region, or a region outside the
// domain panics with an error wrapping synctrack.ErrInvalidArgument.
func (t *Tracker[V, T]) Update(regions []region.Region[T], transitions TransitionSystem[V, T]) {
	search := t.prepare(regions, transitions)
	t.chain.update(search, transitions)
}

// Override records a new access over the provided regions. Each overlapping entry is passed to
// transitions.OnOverride, whose Action decides whether the overlapping area is left alone,
// replaced with a new value or cleared. Space that was never recorded, or was cleared, receives
// a value from transitions.OnCreate. Entries that no longer have any visible area are removed
// and passed to transitions.OnClear.
//
// Argument requirements are the same as Update.
func (t *Tracker[V, T]) Override(regions []region.Region[T], transitions TransitionSystem[V, T]) {
	search := t.prepare(regions, transitions)
	t.chain.override(search, transitions)

	synctrack.DebugValidate(t)
}

// Reset removes every entry. If transitions is not nil, OnClear is called for each entry with
// its visible area.
func (t *Tracker[V, T]) Reset(transitions TransitionSystem[V, T]) {
	if transitions != nil {
		_ = t.chain.walkVisible(func(index int, visible []region.Region[T]) error {
			node := &t.chain.nodes[index]
			if !node.cleared {
				transitions.OnClear(visible, node.value, node.region)
			}
			return nil
		})
	}

	t.chain.reset()
}

// IsEmpty returns true if no area of the domain currently carries a recorded value
func (t *Tracker[V, T]) IsEmpty() bool {
	return t.chain.trackedCount == 0
}

// EntryCount returns the number of entries carrying a recorded value
func (t *Tracker[V, T]) EntryCount() int {
	return t.chain.trackedCount
}

// TrackedVolume returns the total visible volume of all recorded entries
func (t *Tracker[V, T]) TrackedVolume() uint64 {
	var volume uint64
	for index := t.chain.head; index != noNode; index = t.chain.nodes[index].next {
		if !t.chain.nodes[index].cleared {
			volume += t.chain.nodes[index].activeVolume
		}
	}

	return volume
}

// VisitEntries calls handle for each recorded entry, newest first, with the entry's full region
// and its visible volume. The entry's region may be partially shadowed by newer entries. If
// handle returns an error, iteration stops and the error is returned.
func (t *Tracker[V, T]) VisitEntries(handle func(r region.Region[T], activeVolume uint64, value V) error) error {
	for index := t.chain.head; index != noNode; index = t.chain.nodes[index].next {
		node := &t.chain.nodes[index]
		if node.cleared {
			continue
		}

		err := handle(node.region, node.activeVolume, node.value)
		if err != nil {
			return err
		}
	}

	return nil
}

// VisitRegions calls handle for each recorded entry, newest first, with the disjoint pieces of
// the entry's region that are currently visible. Across all calls the pieces never overlap. If
// handle returns an error, iteration stops and the error is returned.
func (t *Tracker[V, T]) VisitRegions(handle func(visible []region.Region[T], value V) error) error {
	return t.chain.walkVisible(func(index int, visible []region.Region[T]) error {
		node := &t.chain.nodes[index]
		if node.cleared {
			return nil
		}

		return handle(visible, node.value)
	})
}

// Validate walks the whole chain and verifies its bookkeeping. It is expensive and is intended
// for tests and debug builds.
func (t *Tracker[V, T]) Validate() error {
	var trackedCount, clearedCount int
	oldestCleared := false

	err := t.chain.walkVisible(func(index int, visible []region.Region[T]) error {
		node := &t.chain.nodes[index]

		if node.region.Dimensions() != t.domain.Dimensions() || !t.domain.Contains(node.region) {
			return errors.Errorf("entry %s lies outside the tracker domain %s", node.region, t.domain)
		}

		if node.activeVolume == 0 {
			return errors.Errorf("entry %s has no active volume but is still linked", node.region)
		}

		visibleVolume := region.TotalVolume(visible)
		if visibleVolume != node.activeVolume {
			return errors.Errorf("entry %s records an active volume of %d, but %d is visible", node.region, node.activeVolume, visibleVolume)
		}

		if node.cleared {
			clearedCount++
		} else {
			trackedCount++
		}
		oldestCleared = node.cleared

		return nil
	})
	if err != nil {
		return err
	}

	if trackedCount != t.chain.trackedCount {
		return errors.Errorf("tracker counts %d entries, but %d are linked", t.chain.trackedCount, trackedCount)
	}

	if clearedCount != t.chain.clearedCount {
		return errors.Errorf("tracker counts %d cleared markers, but %d are linked", t.chain.clearedCount, clearedCount)
	}

	if oldestCleared {
		return errors.New("the oldest entry is a cleared marker with nothing left to shadow")
	}

	return nil
}

// AddStatistics adds this Tracker's totals to the provided Statistics
func (t *Tracker[V, T]) AddStatistics(stats *synctrack.Statistics) {
	stats.TrackerCount++
	stats.EntryCount += t.chain.trackedCount
	stats.TrackedVolume += t.TrackedVolume()
	stats.DomainVolume += t.domain.Volume()
}

// AddDetailedStatistics adds this Tracker's per-entry details to the provided DetailedStatistics
func (t *Tracker[V, T]) AddDetailedStatistics(stats *synctrack.DetailedStatistics) {
	stats.TrackerCount++
	stats.DomainVolume += t.domain.Volume()

	for index := t.chain.head; index != noNode; index = t.chain.nodes[index].next {
		node := &t.chain.nodes[index]
		if node.cleared {
			stats.AddClearedMarker()
			continue
		}

		stats.AddEntry(node.activeVolume)
	}
}

// DebugLogAllEntries passes every recorded entry to logFunc, newest first
func (t *Tracker[V, T]) DebugLogAllEntries(logger *slog.Logger, logFunc func(logger *slog.Logger, r region.Region[T], activeVolume uint64, value V)) {
	for index := t.chain.head; index != noNode; index = t.chain.nodes[index].next {
		node := &t.chain.nodes[index]
		if !node.cleared {
			logFunc(logger, node.region, node.activeVolume, node.value)
		}
	}
}

// JsonData writes this Tracker's state to the provided json object. writeValue, if not nil, is
// called for each entry to add the entry's value to the entry's object.
func (t *Tracker[V, T]) JsonData(json *jwriter.ObjectState, writeValue func(json *jwriter.ObjectState, value V)) {
	json.Name("Domain").String(t.domain.String())
	json.Name("EntryCount").Int(t.chain.trackedCount)
	json.Name("ClearedMarkerCount").Int(t.chain.clearedCount)
	json.Name("TrackedVolume").Int(int(t.TrackedVolume()))

	entries := json.Name("Entries").Array()
	_ = t.chain.walkVisible(func(index int, visible []region.Region[T]) error {
		node := &t.chain.nodes[index]
		if node.cleared {
			return nil
		}

		entry := entries.Object()
		entry.Name("Region").String(node.region.String())
		entry.Name("ActiveVolume").Int(int(node.activeVolume))

		pieces := entry.Name("Visible").Array()
		for _, piece := range visible {
			pieces.String(piece.String())
		}
		pieces.End()

		if writeValue != nil {
			writeValue(&entry, node.value)
		}
		entry.End()

		return nil
	})
	entries.End()
}
