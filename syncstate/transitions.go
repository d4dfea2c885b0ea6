package syncstate

import (
	"github.com/vkngwrapper/arsenal/synctrack/history"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// accessTransitions decides, for one new access, which recorded scopes must be synchronized
// against and what each touched region records afterward
type accessTransitions[T region.Coordinate] struct {
	access     AccessScope
	accessType AccessType
	// images report a layout transition the first time a subresource is touched
	images bool

	barriers []Barrier[T]
}

var _ history.TransitionSystem[AccessScope, int64] = &accessTransitions[int64]{}

func newAccessTransitions[T region.Coordinate](access AccessScope, accessType AccessType, images bool) *accessTransitions[T] {
	return &accessTransitions[T]{
		access:     access,
		accessType: accessType,
		images:     images,
	}
}

func (t *accessTransitions[T]) requiresBarrier(recorded AccessScope) bool {
	if recorded.Layout != t.access.Layout {
		return true
	}

	if recorded.QueueFamily != QueueFamilyIgnored &&
		t.access.QueueFamily != QueueFamilyIgnored &&
		recorded.QueueFamily != t.access.QueueFamily {
		return true
	}

	recordedType := recorded.AccessType()
	if recordedType == AccessWritePending {
		return true
	}

	return t.accessType == AccessWritePending && recordedType != AccessNone
}

func (t *accessTransitions[T]) addBarrier(regions []region.Region[T], src AccessScope) {
	for i := range t.barriers {
		if t.barriers[i].Src == src {
			t.barriers[i].Regions = append(t.barriers[i].Regions, regions...)
			return
		}
	}

	t.barriers = append(t.barriers, Barrier[T]{
		Regions: append([]region.Region[T](nil), regions...),
		Src:     src,
		Dst:     t.access,
	})
}

func (t *accessTransitions[T]) OnUpdate(overlap []region.Region[T], value *AccessScope, containing region.Region[T]) {
}

func (t *accessTransitions[T]) OnOverride(overlap []region.Region[T], value AccessScope, containing region.Region[T]) history.Action[AccessScope] {
	if t.requiresBarrier(value) {
		t.addBarrier(overlap, value)
		return history.Update(t.access)
	}

	// Reads after reads accumulate into one scope
	merged := value
	merged.AccessMask |= t.access.AccessMask
	merged.StageMask |= t.access.StageMask
	if merged.QueueFamily == QueueFamilyIgnored {
		merged.QueueFamily = t.access.QueueFamily
	}

	if merged == value {
		return history.Ignore[AccessScope]()
	}

	return history.Update(merged)
}

func (t *accessTransitions[T]) OnClear(overlap []region.Region[T], value AccessScope, containing region.Region[T]) {
}

func (t *accessTransitions[T]) OnCreate(r region.Region[T]) AccessScope {
	if t.images && t.access.Layout != core1_0.ImageLayoutUndefined {
		t.addBarrier([]region.Region[T]{r}, AccessScope{
			Layout:      core1_0.ImageLayoutUndefined,
			QueueFamily: QueueFamilyIgnored,
		})
	}

	return t.access
}

// stateCollector gathers the recorded scopes over a set of regions without modifying them
type stateCollector[T region.Coordinate] struct {
	history.TransitionFuncs[AccessScope, T]
	states []RangeState[T]
}

func newStateCollector[T region.Coordinate]() *stateCollector[T] {
	collector := &stateCollector[T]{}
	collector.Update = func(overlap []region.Region[T], value *AccessScope, containing region.Region[T]) {
		collector.add(overlap, *value)
	}
	return collector
}

func (c *stateCollector[T]) add(regions []region.Region[T], state AccessScope) {
	for i := range c.states {
		if c.states[i].State == state {
			c.states[i].Regions = append(c.states[i].Regions, regions...)
			return
		}
	}

	c.states = append(c.states, RangeState[T]{
		Regions: append([]region.Region[T](nil), regions...),
		State:   state,
	})
}

// discardTransitions clears every recorded scope it touches
type discardTransitions[T region.Coordinate] struct {
	discarded []RangeState[T]
}

func (t *discardTransitions[T]) OnUpdate(overlap []region.Region[T], value *AccessScope, containing region.Region[T]) {
}

func (t *discardTransitions[T]) OnOverride(overlap []region.Region[T], value AccessScope, containing region.Region[T]) history.Action[AccessScope] {
	t.discarded = append(t.discarded, RangeState[T]{
		Regions: append([]region.Region[T](nil), overlap...),
		State:   value,
	})
	return history.Clear[AccessScope]()
}

func (t *discardTransitions[T]) OnClear(overlap []region.Region[T], value AccessScope, containing region.Region[T]) {
}

func (t *discardTransitions[T]) OnCreate(r region.Region[T]) AccessScope {
	return AccessScope{QueueFamily: QueueFamilyIgnored}
}

func collectStates[T region.Coordinate](tracker *history.Tracker[AccessScope, T], regions []region.Region[T]) []RangeState[T] {
	collector := newStateCollector[T]()
	tracker.Update(regions, collector)
	return collector.states
}

// discardStates clears whatever is recorded over regions and returns it, along with the volume
// that was cleared
func discardStates[T region.Coordinate](tracker *history.Tracker[AccessScope, T], regions []region.Region[T]) ([]RangeState[T], uint64) {
	var tracked []region.Region[T]
	for _, state := range collectStates(tracker, regions) {
		tracked = append(tracked, state.Regions...)
	}

	if len(tracked) == 0 {
		return nil, 0
	}

	discard := &discardTransitions[T]{}
	tracker.Override(tracked, discard)

	return discard.discarded, region.TotalVolume(tracked)
}
