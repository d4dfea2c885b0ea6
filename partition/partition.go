package partition

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/synctrack"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"golang.org/x/exp/slices"
)

// EntryHandle identifies one entry in a Partition. Handles are never reused by the Partition
// that issued them.
type EntryHandle uint64

const (
	NoEntry EntryHandle = math.MaxUint64
)

// Entry is a single region of a Partition and the value stored for it
type Entry[V any, T region.Coordinate] struct {
	Handle EntryHandle
	Region region.Region[T]
	Value  V
}

type entryData[V any, T region.Coordinate] struct {
	region region.Region[T]
	value  V
}

// Partition is a flat set of pairwise-disjoint regions inside a domain, each carrying a value.
// Unlike history.Tracker it keeps no history: inserting a region simply carves it out of
// whatever entries it overlaps.
type Partition[V any, T region.Coordinate] struct {
	domain     region.Region[T]
	entries    *swiss.Map[EntryHandle, entryData[V, T]]
	nextHandle EntryHandle
	volume     uint64
}

var _ synctrack.Validatable = &Partition[int, int]{}

func New[V any, T region.Coordinate](domain region.Region[T]) (*Partition[V, T], error) {
	err := domain.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid partition domain")
	}

	if domain.IsEmpty() {
		return nil, errors.Wrapf(synctrack.ErrInvalidArgument, "partition domain %s has no volume", domain)
	}

	return &Partition[V, T]{
		domain:  domain,
		entries: swiss.NewMap[EntryHandle, entryData[V, T]](42),
	}, nil
}

func (p *Partition[V, T]) Domain() region.Region[T] {
	return p.domain
}

func (p *Partition[V, T]) checkRegion(r region.Region[T]) error {
	if r.Dimensions() != p.domain.Dimensions() {
		return errors.Wrapf(synctrack.ErrDimensionMismatch, "region %s does not match partition domain %s", r, p.domain)
	}

	if r.IsEmpty() {
		return errors.Wrapf(synctrack.ErrInvalidArgument, "region %s has no volume", r)
	}

	if !p.domain.Contains(r) {
		return errors.Wrapf(synctrack.ErrInvalidArgument, "region %s lies outside the partition domain %s", r, p.domain)
	}

	return nil
}

func (p *Partition[V, T]) add(r region.Region[T], value V) EntryHandle {
	handle := p.nextHandle
	p.nextHandle++

	p.entries.Put(handle, entryData[V, T]{region: r, value: value})
	p.volume += r.Volume()

	return handle
}

// intersecting collects the handles of every entry overlapping r. The swiss map must not be
// modified during Iter, so callers mutate only after this returns.
func (p *Partition[V, T]) intersecting(r region.Region[T]) []EntryHandle {
	var handles []EntryHandle
	p.entries.Iter(func(handle EntryHandle, data entryData[V, T]) bool {
		if data.region.Intersects(r) {
			handles = append(handles, handle)
		}
		return false
	})

	slices.Sort(handles)
	return handles
}

// carve removes r from every entry it overlaps. The parts of those entries outside r are
// re-added under new handles with their old values.
func (p *Partition[V, T]) carve(r region.Region[T]) uint64 {
	var removed uint64
	tool := []region.Region[T]{r}

	for _, handle := range p.intersecting(r) {
		data, _ := p.entries.Get(handle)
		p.entries.Delete(handle)
		p.volume -= data.region.Volume()

		overlap, _ := data.region.Intersection(r)
		removed += overlap.Volume()

		for _, piece := range region.Subtract([]region.Region[T]{data.region}, tool) {
			p.add(piece, data.value)
		}
	}

	return removed
}

// Insert stores value over r, replacing whatever r previously overlapped
func (p *Partition[V, T]) Insert(r region.Region[T], value V) (EntryHandle, error) {
	err := p.checkRegion(r)
	if err != nil {
		return NoEntry, err
	}

	p.carve(r)
	handle := p.add(r, value)

	synctrack.DebugValidate(p)
	return handle, nil
}

// Remove drops r from the partition and returns the volume that had been covered
func (p *Partition[V, T]) Remove(r region.Region[T]) (uint64, error) {
	err := p.checkRegion(r)
	if err != nil {
		return 0, err
	}

	removed := p.carve(r)

	synctrack.DebugValidate(p)
	return removed, nil
}

// Lookup returns the parts of r covered by entries, with the handle and value of the covering
// entry. Overlap regions are returned in region order.
func (p *Partition[V, T]) Lookup(r region.Region[T]) ([]Entry[V, T], error) {
	err := p.checkRegion(r)
	if err != nil {
		return nil, err
	}

	var overlaps []Entry[V, T]
	for _, handle := range p.intersecting(r) {
		data, _ := p.entries.Get(handle)
		overlap, _ := data.region.Intersection(r)
		overlaps = append(overlaps, Entry[V, T]{Handle: handle, Region: overlap, Value: data.value})
	}

	sortEntries(overlaps)
	return overlaps, nil
}

// Get returns the region and value stored under handle
func (p *Partition[V, T]) Get(handle EntryHandle) (region.Region[T], V, bool) {
	data, ok := p.entries.Get(handle)
	return data.region, data.value, ok
}

func (p *Partition[V, T]) IsEmpty() bool {
	return p.entries.Count() == 0
}

func (p *Partition[V, T]) Len() int {
	return p.entries.Count()
}

// Volume returns the total volume covered by entries
func (p *Partition[V, T]) Volume() uint64 {
	return p.volume
}

// Entries returns every entry sorted by region
func (p *Partition[V, T]) Entries() []Entry[V, T] {
	entries := make([]Entry[V, T], 0, p.entries.Count())
	p.entries.Iter(func(handle EntryHandle, data entryData[V, T]) bool {
		entries = append(entries, Entry[V, T]{Handle: handle, Region: data.region, Value: data.value})
		return false
	})

	sortEntries(entries)
	return entries
}

func sortEntries[V any, T region.Coordinate](entries []Entry[V, T]) {
	slices.SortFunc(entries, func(left, right Entry[V, T]) int {
		return region.Compare(left.Region, right.Region)
	})
}

// Visit calls handle for every entry in region order. If handle returns an error, iteration
// stops and the error is returned.
func (p *Partition[V, T]) Visit(handle func(entryHandle EntryHandle, r region.Region[T], value V) error) error {
	for _, entry := range p.Entries() {
		err := handle(entry.Handle, entry.Region, entry.Value)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Partition[V, T]) Clear() {
	p.entries.Clear()
	p.volume = 0
}

func (p *Partition[V, T]) Validate() error {
	entries := p.Entries()

	var volume uint64
	for i, entry := range entries {
		if entry.Region.Dimensions() != p.domain.Dimensions() || !p.domain.Contains(entry.Region) {
			return errors.Errorf("entry %d (%s) lies outside the partition domain %s", entry.Handle, entry.Region, p.domain)
		}

		if entry.Region.IsEmpty() {
			return errors.Errorf("entry %d has no volume", entry.Handle)
		}

		if entry.Handle >= p.nextHandle {
			return errors.Errorf("entry handle %d was never issued", entry.Handle)
		}

		for _, other := range entries[i+1:] {
			if entry.Region.Intersects(other.Region) {
				return errors.Errorf("entries %d (%s) and %d (%s) overlap", entry.Handle, entry.Region, other.Handle, other.Region)
			}
		}

		volume += entry.Region.Volume()
	}

	if volume != p.volume {
		return errors.Errorf("partition records a volume of %d, but its entries cover %d", p.volume, volume)
	}

	return nil
}

func (p *Partition[V, T]) AddStatistics(stats *synctrack.Statistics) {
	stats.TrackerCount++
	stats.EntryCount += p.entries.Count()
	stats.TrackedVolume += p.volume
	stats.DomainVolume += p.domain.Volume()
}

// JsonData writes every entry to the provided json object in region order
func (p *Partition[V, T]) JsonData(json *jwriter.ObjectState, writeValue func(json *jwriter.ObjectState, value V)) {
	json.Name("Domain").String(p.domain.String())
	json.Name("EntryCount").Int(p.entries.Count())
	json.Name("Volume").Int(int(p.volume))

	entries := json.Name("Entries").Array()
	for _, entry := range p.Entries() {
		obj := entries.Object()
		obj.Name("Handle").Int(int(entry.Handle))
		obj.Name("Region").String(entry.Region.String())
		if writeValue != nil {
			writeValue(&obj, entry.Value)
		}
		obj.End()
	}
	entries.End()
}
