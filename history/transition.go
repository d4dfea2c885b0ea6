package history

import "github.com/vkngwrapper/arsenal/synctrack/region"

// ActionKind identifies what a Tracker should do with the part of a recorded entry that an
// Override call touched
type ActionKind uint32

const (
	// ActionIgnore leaves the recorded value in place, such as for a read after a read
	ActionIgnore ActionKind = iota
	// ActionUpdate replaces the recorded value with Action.Value over the overlapping area
	ActionUpdate
	// ActionClear removes the overlapping area from the entry and leaves it untracked
	ActionClear
)

var actionKindMapping = map[ActionKind]string{
	ActionIgnore: "ActionIgnore",
	ActionUpdate: "ActionUpdate",
	ActionClear:  "ActionClear",
}

func (k ActionKind) String() string {
	return actionKindMapping[k]
}

// Action is returned from TransitionSystem.OnOverride to tell the Tracker how to restructure
// the entry being overridden
type Action[V any] struct {
	Kind  ActionKind
	Value V
}

// Ignore builds an ActionIgnore action
func Ignore[V any]() Action[V] {
	return Action[V]{Kind: ActionIgnore}
}

// Update builds an ActionUpdate action that will record value
func Update[V any](value V) Action[V] {
	return Action[V]{Kind: ActionUpdate, Value: value}
}

// Clear builds an ActionClear action
func Clear[V any]() Action[V] {
	return Action[V]{Kind: ActionClear}
}

// TransitionSystem is the policy a Tracker consults whenever a new access overlaps recorded
// state. Values are copied into and out of the Tracker, so V should be a value type or the
// implementation should hand out fresh values.
//
// The overlap slices passed to these methods are pairwise disjoint. Implementations may retain
// them but must not modify them, and must not call back into the Tracker.
type TransitionSystem[V any, T region.Coordinate] interface {
	// OnUpdate is called during Tracker.Update once for each recorded entry that overlaps the
	// requested regions. value points at the recorded value and may be modified in place.
	// containing is the entry's full region, which may be larger than the overlap.
	OnUpdate(overlap []region.Region[T], value *V, containing region.Region[T])
	// OnOverride is called during Tracker.Override once for each recorded entry that overlaps the
	// requested regions. The returned Action decides what happens to the overlapping area.
	OnOverride(overlap []region.Region[T], value V, containing region.Region[T]) Action[V]
	// OnClear is called when an entry leaves the tracker because none of its area remains
	// visible. overlap is the area whose removal emptied the entry.
	OnClear(overlap []region.Region[T], value V, containing region.Region[T])
	// OnCreate supplies the value for a region that has never been recorded (or was cleared)
	// and is touched by Tracker.Override. It is called once per disjoint slab.
	OnCreate(r region.Region[T]) V
}

// TransitionFuncs adapts a set of functions into a TransitionSystem. Any function left nil gets
// a default: updates and clears are ignored, overrides return ActionIgnore, and created regions
// receive the zero value.
type TransitionFuncs[V any, T region.Coordinate] struct {
	Update   func(overlap []region.Region[T], value *V, containing region.Region[T])
	Override func(overlap []region.Region[T], value V, containing region.Region[T]) Action[V]
	Clear    func(overlap []region.Region[T], value V, containing region.Region[T])
	Create   func(r region.Region[T]) V
}

var _ TransitionSystem[int, int] = TransitionFuncs[int, int]{}

func (f TransitionFuncs[V, T]) OnUpdate(overlap []region.Region[T], value *V, containing region.Region[T]) {
	if f.Update != nil {
		f.Update(overlap, value, containing)
	}
}

func (f TransitionFuncs[V, T]) OnOverride(overlap []region.Region[T], value V, containing region.Region[T]) Action[V] {
	if f.Override != nil {
		return f.Override(overlap, value, containing)
	}
	return Ignore[V]()
}

func (f TransitionFuncs[V, T]) OnClear(overlap []region.Region[T], value V, containing region.Region[T]) {
	if f.Clear != nil {
		f.Clear(overlap, value, containing)
	}
}

func (f TransitionFuncs[V, T]) OnCreate(r region.Region[T]) V {
	if f.Create != nil {
		return f.Create(r)
	}
	var zero V
	return zero
}
