package synctrack

// Validatable is implemented by every tracker that can check its own consistency. Mutating
// operations pass themselves to DebugValidate, which only calls Validate in debug builds.
type Validatable interface {
	Validate() error
}
