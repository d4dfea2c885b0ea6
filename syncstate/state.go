package syncstate

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// QueueFamilyIgnored marks an access that does not care which queue family owns the resource
const QueueFamilyIgnored = -1

// AccessScope describes one access to a resource range: the memory accesses it performs, the
// pipeline stages that perform them, the image layout it requires and the queue family it runs
// on. It is both the requirement passed to the trackers and the state they record.
//
// Layout is ignored for buffers and should be left at core1_0.ImageLayoutUndefined.
type AccessScope struct {
	AccessMask  core1_0.AccessFlags
	StageMask   core1_0.PipelineStageFlags
	Layout      core1_0.ImageLayout
	QueueFamily int
}

// AccessType classifies the scope's access mask. The mask must already have been validated.
func (s AccessScope) AccessType() AccessType {
	return mustClassifyAccess(s.AccessMask)
}

func (s AccessScope) jsonData(json *jwriter.ObjectState) {
	json.Name("AccessMask").Int(int(s.AccessMask))
	json.Name("StageMask").Int(int(s.StageMask))
	json.Name("Layout").Int(int(s.Layout))
	json.Name("QueueFamily").Int(s.QueueFamily)
}

func (s AccessScope) logAttrs(prefix string) []slog.Attr {
	return []slog.Attr{
		slog.Any(prefix+".AccessMask", s.AccessMask),
		slog.Any(prefix+".StageMask", s.StageMask),
		slog.Any(prefix+".Layout", s.Layout),
		slog.Int(prefix+".QueueFamily", s.QueueFamily),
	}
}

// Barrier reports that an access requires synchronization with what was previously recorded
// over Regions. Src is the recorded scope that must complete and Dst is the new access.
type Barrier[T region.Coordinate] struct {
	Regions []region.Region[T]
	Src     AccessScope
	Dst     AccessScope
}

// IsLayoutTransition returns true if the barrier must change the image layout
func (b Barrier[T]) IsLayoutTransition() bool {
	return b.Src.Layout != b.Dst.Layout
}

// IsOwnershipTransfer returns true if the barrier must transfer ownership between queue families
func (b Barrier[T]) IsOwnershipTransfer() bool {
	return b.Src.QueueFamily != QueueFamilyIgnored &&
		b.Dst.QueueFamily != QueueFamilyIgnored &&
		b.Src.QueueFamily != b.Dst.QueueFamily
}

// RangeState is a set of disjoint regions that all carry the same recorded scope
type RangeState[T region.Coordinate] struct {
	Regions []region.Region[T]
	State   AccessScope
}
