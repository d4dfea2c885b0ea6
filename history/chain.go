package history

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/synctrack/region"
)

const noNode = -1

// regionInfo is one record in a chain. Records closer to the head are newer and shadow any
// older record whose region they intersect. activeVolume is the part of the region that no
// newer record shadows.
type regionInfo[V any, T region.Coordinate] struct {
	region       region.Region[T]
	activeVolume uint64
	value        V
	// cleared records mark explicitly cleared space. They carry no value and only exist to keep
	// the older records they shadow from becoming visible again.
	cleared bool
	next    int
}

type pendingInfo[V any, T region.Coordinate] struct {
	region  region.Region[T]
	value   V
	cleared bool
}

// chain is a singly linked list of regionInfo records stored in an arena. Links are indices
// into nodes, and slots of unlinked records are reused through freeSlots.
type chain[V any, T region.Coordinate] struct {
	nodes        []regionInfo[V, T]
	freeSlots    []int
	head         int
	trackedCount int
	clearedCount int
}

func newChain[V any, T region.Coordinate]() chain[V, T] {
	return chain[V, T]{head: noNode}
}

func (c *chain[V, T]) allocate(info pendingInfo[V, T]) int {
	node := regionInfo[V, T]{
		region:       info.region,
		activeVolume: info.region.Volume(),
		value:        info.value,
		cleared:      info.cleared,
		next:         noNode,
	}

	if info.cleared {
		c.clearedCount++
	} else {
		c.trackedCount++
	}

	if slotCount := len(c.freeSlots); slotCount > 0 {
		index := c.freeSlots[slotCount-1]
		c.freeSlots = c.freeSlots[:slotCount-1]
		c.nodes[index] = node
		return index
	}

	c.nodes = append(c.nodes, node)
	return len(c.nodes) - 1
}

// release returns a slot to the arena. It does not touch links or counts.
func (c *chain[V, T]) release(index int) {
	c.nodes[index] = regionInfo[V, T]{next: noNode}
	c.freeSlots = append(c.freeSlots, index)
}

func (c *chain[V, T]) unlink(prev, index int) {
	next := c.nodes[index].next
	if prev == noNode {
		c.head = next
	} else {
		c.nodes[prev].next = next
	}

	if c.nodes[index].cleared {
		c.clearedCount--
	} else {
		c.trackedCount--
	}

	c.release(index)
}

// prepend links new records ahead of the current head, keeping their relative order
func (c *chain[V, T]) prepend(pending []pendingInfo[V, T]) {
	for i := len(pending) - 1; i >= 0; i-- {
		index := c.allocate(pending[i])
		c.nodes[index].next = c.head
		c.head = index
	}
}

func (c *chain[V, T]) reset() {
	c.nodes = c.nodes[:0]
	c.freeSlots = c.freeSlots[:0]
	c.head = noNode
	c.trackedCount = 0
	c.clearedCount = 0
}

// update reports every tracked record that overlaps the search regions without changing the
// chain's structure
func (c *chain[V, T]) update(search []region.Region[T], transitions TransitionSystem[V, T]) {
	for index := c.head; index != noNode && len(search) > 0; index = c.nodes[index].next {
		var overlap []region.Region[T]
		search, overlap, _ = region.CutRegions(c.nodes[index].region, search, nil)

		if len(overlap) == 0 || c.nodes[index].cleared {
			continue
		}

		transitions.OnUpdate(overlap, &c.nodes[index].value, c.nodes[index].region)
	}
}

// override applies the transition system's decision to every record overlapping the search
// regions, unlinks records with no remaining active volume, and prepends records for space
// that was split off, cleared or never tracked
func (c *chain[V, T]) override(search []region.Region[T], transitions TransitionSystem[V, T]) {
	var pending []pendingInfo[V, T]

	prev := noNode
	index := c.head
	for index != noNode && len(search) > 0 {
		var overlap []region.Region[T]
		var volume uint64
		search, overlap, volume = region.CutRegions(c.nodes[index].region, search, nil)

		next := c.nodes[index].next
		if volume == 0 {
			prev = index
			index = next
			continue
		}

		node := &c.nodes[index]
		if volume > node.activeVolume {
			panic(errors.AssertionFailedf("entry %s has %d active volume remaining but %d volume was overridden", node.region, node.activeVolume, volume))
		}

		if node.cleared {
			// Cleared space is untracked as far as the transition system is concerned
			node.activeVolume -= volume
			for _, piece := range overlap {
				pending = append(pending, pendingInfo[V, T]{region: piece, value: transitions.OnCreate(piece)})
			}
		} else {
			action := transitions.OnOverride(overlap, node.value, node.region)

			switch action.Kind {
			case ActionIgnore:
			case ActionUpdate:
				if volume == node.activeVolume {
					node.value = action.Value
					break
				}

				node.activeVolume -= volume
				for _, piece := range overlap {
					pending = append(pending, pendingInfo[V, T]{region: piece, value: action.Value})
				}
			case ActionClear:
				node.activeVolume -= volume
				for _, piece := range overlap {
					pending = append(pending, pendingInfo[V, T]{region: piece, cleared: true})
				}
			default:
				panic(errors.AssertionFailedf("unknown transition action %d", action.Kind))
			}
		}

		if node.activeVolume == 0 {
			if !node.cleared {
				transitions.OnClear(overlap, node.value, node.region)
			}
			c.unlink(prev, index)
		} else {
			prev = index
		}

		index = next
	}

	for _, leftover := range search {
		pending = append(pending, pendingInfo[V, T]{region: leftover, value: transitions.OnCreate(leftover)})
	}

	c.prepend(pending)
	c.pruneClearedRecords()
}

// pruneClearedRecords unlinks every cleared record that no older record intersects
func (c *chain[V, T]) pruneClearedRecords() {
	if c.clearedCount == 0 {
		return
	}

	order := make([]int, 0, c.trackedCount+c.clearedCount)
	for index := c.head; index != noNode; index = c.nodes[index].next {
		order = append(order, index)
	}

	// kept is built oldest first
	kept := make([]int, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		index := order[i]

		if c.nodes[index].cleared && !c.intersectsAny(index, kept) {
			c.clearedCount--
			c.release(index)
			continue
		}

		kept = append(kept, index)
	}

	c.head = noNode
	for _, index := range kept {
		c.nodes[index].next = c.head
		c.head = index
	}
}

func (c *chain[V, T]) intersectsAny(index int, others []int) bool {
	for _, other := range others {
		if c.nodes[index].region.Intersects(c.nodes[other].region) {
			return true
		}
	}

	return false
}

// walkVisible visits every linked record, newest first, along with the disjoint pieces of its
// region that no newer record shadows
func (c *chain[V, T]) walkVisible(handle func(index int, visible []region.Region[T]) error) error {
	var covered []region.Region[T]

	for index := c.head; index != noNode; index = c.nodes[index].next {
		visible := region.Subtract([]region.Region[T]{c.nodes[index].region}, covered)
		covered = append(covered, visible...)

		err := handle(index, visible)
		if err != nil {
			return err
		}
	}

	return nil
}
