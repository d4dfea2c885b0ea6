package region

// CutRegions cuts every candidate region against tool. Candidates that intersect tool are
// removed from the candidate list and their overlap with tool is appended to intersections;
// the parts of those candidates that lie outside tool are appended to the candidate list.
//
// The candidate slice is modified in place and must not be used by the caller afterward
// except through the returned slice. When the call returns, the remaining candidates cover
// exactly the originally covered space minus tool, intersections holds exactly the covered
// space inside tool, and the returned volume is the total volume of the new intersections.
func CutRegions[T Coordinate](tool Region[T], candidates, intersections []Region[T]) ([]Region[T], []Region[T], uint64) {
	var volume uint64

	// Every entry before index has been checked against tool and is disjoint from it. A
	// successful cut appends its slabs to the tail and swaps the tail entry into index, so
	// the loop bound is reread each pass and index is not advanced: the swapped-in entry has
	// not been visited yet.
	index := 0
	for index < len(candidates) {
		candidate := candidates[index]

		var cut bool
		candidates, cut = candidate.Cut(tool, candidates)
		if !cut {
			index++
			continue
		}

		intersections = append(intersections, candidate)
		volume += candidate.Volume()

		last := len(candidates) - 1
		candidates[index] = candidates[last]
		candidates = candidates[:last]
	}

	return candidates, intersections, volume
}

// Subtract removes every tool region from the space covered by regions. regions is modified
// in place; the returned slice covers exactly the remaining space.
func Subtract[T Coordinate](regions []Region[T], tools []Region[T]) []Region[T] {
	var scratch []Region[T]
	for _, tool := range tools {
		if len(regions) == 0 {
			break
		}

		regions, scratch, _ = CutRegions(tool, regions, scratch[:0])
	}

	return regions
}

// Normalize returns a new list of pairwise-disjoint regions covering exactly the space covered
// by the input regions. Empty regions are dropped. Earlier input regions keep their shape; later
// ones are cut down to the space earlier regions do not already cover.
func Normalize[T Coordinate](regions []Region[T]) []Region[T] {
	result := make([]Region[T], 0, len(regions))

	for _, r := range regions {
		if r.IsEmpty() {
			continue
		}

		pieces := Subtract([]Region[T]{r}, result)
		result = append(result, pieces...)
	}

	return result
}

// TotalVolume sums the volume of every region in the list. The regions are assumed to be
// pairwise disjoint.
func TotalVolume[T Coordinate](regions []Region[T]) uint64 {
	var volume uint64
	for _, r := range regions {
		volume += r.Volume()
	}
	return volume
}
