//go:build !debug_sync_track

package synctrack

// DebugEnabled reports whether the module was built with the debug_sync_track build tag
const DebugEnabled bool = false

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_sync_track build tag is present
func DebugValidate(validatable Validatable) {
}
