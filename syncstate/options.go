package syncstate

import "golang.org/x/exp/slog"

// TrackerOptions configures BufferTracker, ImageTracker and OwnershipMap
type TrackerOptions struct {
	// Logger receives a debug record for every barrier produced. slog.Default() is used if it
	// is nil.
	Logger *slog.Logger
	// Synchronized guards every call with a mutex held for the duration of the call. Leave it
	// unset when the caller already serializes access to the tracker.
	Synchronized bool
}

func (o TrackerOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
