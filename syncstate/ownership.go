package syncstate

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/synctrack"
	"github.com/vkngwrapper/arsenal/synctrack/internal/utils"
	"github.com/vkngwrapper/arsenal/synctrack/partition"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"golang.org/x/exp/slog"
)

// OwnedRange is a byte range of a buffer and the queue family that owns it
type OwnedRange struct {
	Offset      int
	Size        int
	QueueFamily int
}

// OwnershipTransfer is a byte range that must be released by SrcQueueFamily and acquired by
// DstQueueFamily before DstQueueFamily may use it
type OwnershipTransfer struct {
	Offset         int
	Size           int
	SrcQueueFamily int
	DstQueueFamily int
}

// OwnershipMap records which queue family owns each byte range of a buffer created with
// exclusive sharing mode
type OwnershipMap struct {
	logger *slog.Logger
	mutex  utils.RWLock
	size   int

	owners *partition.Partition[int, int64]
}

var _ synctrack.Validatable = &OwnershipMap{}

func NewOwnershipMap(size int, options TrackerOptions) (*OwnershipMap, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "buffer size %d must be positive", size)
	}

	owners, err := partition.New[int, int64](region.Span[int64](0, int64(size)))
	if err != nil {
		return nil, err
	}

	return &OwnershipMap{
		logger: options.logger(),
		mutex:  utils.NewRWLock(options.Synchronized),
		size:   size,
		owners: owners,
	}, nil
}

func ownedRangeSpan(offset, size int) region.Region[int64] {
	return region.Span(int64(offset), int64(offset+size))
}

func (m *OwnershipMap) checkRange(offset, size int) error {
	if size <= 0 {
		return errors.Wrapf(ErrInvalidRange, "buffer range at offset %d has size %d", offset, size)
	}

	if offset < 0 || offset > m.size-size {
		return errors.Wrapf(ErrOutOfBounds, "buffer range [%d, %d) does not fit in a buffer of size %d", offset, offset+size, m.size)
	}

	return nil
}

// Acquire gives queueFamily ownership of [offset, offset+size). The returned transfers cover
// the parts of the range previously owned by other queue families. Parts that were never owned
// need no transfer.
func (m *OwnershipMap) Acquire(offset, size, queueFamily int) ([]OwnershipTransfer, error) {
	err := m.checkRange(offset, size)
	if err != nil {
		return nil, err
	}

	if queueFamily < 0 {
		return nil, errors.Wrapf(ErrInvalidQueueFamily, "cannot acquire ownership for queue family %d", queueFamily)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	r := ownedRangeSpan(offset, size)
	overlaps, err := m.owners.Lookup(r)
	if err != nil {
		return nil, err
	}

	var transfers []OwnershipTransfer
	for _, overlap := range overlaps {
		if overlap.Value == queueFamily {
			continue
		}

		transfer := OwnershipTransfer{
			Offset:         int(overlap.Region.Start(0)),
			Size:           int(overlap.Region.End(0) - overlap.Region.Start(0)),
			SrcQueueFamily: overlap.Value,
			DstQueueFamily: queueFamily,
		}
		transfers = append(transfers, transfer)

		m.logger.LogAttrs(context.Background(), slog.LevelDebug, "OwnershipMap::Acquire transfer",
			slog.Int("Offset", transfer.Offset),
			slog.Int("Size", transfer.Size),
			slog.Int("SrcQueueFamily", transfer.SrcQueueFamily),
			slog.Int("DstQueueFamily", transfer.DstQueueFamily),
		)
	}

	_, err = m.owners.Insert(r, queueFamily)
	if err != nil {
		return nil, err
	}

	return transfers, nil
}

// Owners returns the owned parts of [offset, offset+size) in offset order
func (m *OwnershipMap) Owners(offset, size int) ([]OwnedRange, error) {
	err := m.checkRange(offset, size)
	if err != nil {
		return nil, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	overlaps, err := m.owners.Lookup(ownedRangeSpan(offset, size))
	if err != nil {
		return nil, err
	}

	owned := make([]OwnedRange, 0, len(overlaps))
	for _, overlap := range overlaps {
		owned = append(owned, OwnedRange{
			Offset:      int(overlap.Region.Start(0)),
			Size:        int(overlap.Region.End(0) - overlap.Region.Start(0)),
			QueueFamily: overlap.Value,
		})
	}

	return owned, nil
}

// Release drops ownership of [offset, offset+size) and returns the number of bytes that had
// been owned
func (m *OwnershipMap) Release(offset, size int) (int, error) {
	err := m.checkRange(offset, size)
	if err != nil {
		return 0, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	released, err := m.owners.Remove(ownedRangeSpan(offset, size))
	return int(released), err
}

func (m *OwnershipMap) IsEmpty() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.owners.IsEmpty()
}

func (m *OwnershipMap) Validate() error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.owners.Validate()
}

func (m *OwnershipMap) AddStatistics(stats *synctrack.Statistics) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	m.owners.AddStatistics(stats)
}

func (m *OwnershipMap) JsonData(json *jwriter.ObjectState) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	json.Name("Size").Int(m.size)
	m.owners.JsonData(json, func(json *jwriter.ObjectState, queueFamily int) {
		json.Name("QueueFamily").Int(queueFamily)
	})
}
