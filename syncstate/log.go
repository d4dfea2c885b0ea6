package syncstate

import (
	"context"

	"github.com/vkngwrapper/arsenal/synctrack/region"
	"golang.org/x/exp/slog"
)

func logBarriers[T region.Coordinate](logger *slog.Logger, message string, barriers []Barrier[T]) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	for _, barrier := range barriers {
		attrs := []slog.Attr{
			slog.Int("RegionCount", len(barrier.Regions)),
			slog.String("FirstRegion", barrier.Regions[0].String()),
			slog.Bool("LayoutTransition", barrier.IsLayoutTransition()),
			slog.Bool("OwnershipTransfer", barrier.IsOwnershipTransfer()),
		}
		attrs = append(attrs, barrier.Src.logAttrs("Src")...)
		attrs = append(attrs, barrier.Dst.logAttrs("Dst")...)

		logger.LogAttrs(context.Background(), slog.LevelDebug, message, attrs...)
	}
}

func logEntry[T region.Coordinate](logger *slog.Logger, r region.Region[T], activeVolume uint64, state AccessScope) {
	attrs := []slog.Attr{
		slog.String("Region", r.String()),
		slog.Uint64("ActiveVolume", activeVolume),
	}
	attrs = append(attrs, state.logAttrs("State")...)

	logger.LogAttrs(context.Background(), slog.LevelDebug, "[TRACKED RANGE]", attrs...)
}
