package synctrack

import "math"

// Statistics summarizes the entries held by one or more trackers or partitions
type Statistics struct {
	TrackerCount  int
	EntryCount    int
	TrackedVolume uint64
	DomainVolume  uint64
}

func (s *Statistics) Clear() {
	s.TrackerCount = 0
	s.EntryCount = 0
	s.TrackedVolume = 0
	s.DomainVolume = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.TrackerCount += other.TrackerCount
	s.EntryCount += other.EntryCount
	s.TrackedVolume += other.TrackedVolume
	s.DomainVolume += other.DomainVolume
}

type DetailedStatistics struct {
	Statistics
	ClearedMarkerCount int
	EntryVolumeMin     uint64
	EntryVolumeMax     uint64
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.ClearedMarkerCount = 0
	s.EntryVolumeMin = math.MaxUint64
	s.EntryVolumeMax = 0
}

func (s *DetailedStatistics) AddClearedMarker() {
	s.ClearedMarkerCount++
}

func (s *DetailedStatistics) AddEntry(activeVolume uint64) {
	s.EntryCount++
	s.TrackedVolume += activeVolume

	if activeVolume < s.EntryVolumeMin {
		s.EntryVolumeMin = activeVolume
	}

	if activeVolume > s.EntryVolumeMax {
		s.EntryVolumeMax = activeVolume
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.ClearedMarkerCount += other.ClearedMarkerCount

	if other.EntryVolumeMin < s.EntryVolumeMin {
		s.EntryVolumeMin = other.EntryVolumeMin
	}

	if other.EntryVolumeMax > s.EntryVolumeMax {
		s.EntryVolumeMax = other.EntryVolumeMax
	}
}
