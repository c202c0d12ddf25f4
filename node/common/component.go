package common

// ComponentLifecycle defines the starting and stopping
// of a component. Currently starting and destroying are
// the only two lifecycle events supported on a component
type ComponentLifecycle interface {
	// Start performs necessary initializations and
	// makes the component operational
	Start() error

	// Destroy performs necessary cleanup operations like
	// closing listeners, connections and flushing state
	// to disk. Any operation invoked on the component
	// after that returns error
	Destroy() error
}
