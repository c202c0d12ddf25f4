package logfield

// Keys used with logrus.WithFields across the components
// so that log lines can be filtered consistently.
const (
	// Component is the name of the component emitting the log
	Component = "component"
	// Event is a short upper-case name of what happened
	Event = "event"
	// ErrorReason carries the error message, if any
	ErrorReason = "error-reason"

	RemoteAddress = "remote-address"
	ClientName    = "client-name"
	EntryName     = "entry-name"
	EntryID       = "entry-id"

	RequesterIPAddress = "requester-ip"
	RESTMethod         = "rest-method"
	RequestURI         = "request-uri"
)
