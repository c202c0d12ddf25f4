package client

import "fmt"

// NotConnectedError occurs when an operation needs a connection
// to the server and there is none
type NotConnectedError struct {
	URL string
}

// DisconnectedError occurs when the connection drops while an
// operation waits for the server's answer
type DisconnectedError struct {
	Operation string
}

// ProtocolVersionUnsupportedError occurs when the server does
// not speak the client's protocol revision
type ProtocolVersionUnsupportedError struct {
	ServerRevision uint16
}

// ClientClosedError occurs when the client was closed
type ClientClosedError struct{}

// AlreadyConnectedError occurs when connecting a client that is
// connected or connecting
type AlreadyConnectedError struct {
	URL string
}

// TooManyPendingCallsError occurs when every call ID is taken by
// a procedure call that has not returned yet
type TooManyPendingCallsError struct {
	Pending int
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("not connected to %s", e.URL)
}

func (e *DisconnectedError) Error() string {
	return fmt.Sprintf("connection lost during %s", e.Operation)
}

func (e *ProtocolVersionUnsupportedError) Error() string {
	return fmt.Sprintf("server does not support the protocol revision, it speaks 0x%04x", e.ServerRevision)
}

func (e *ClientClosedError) Error() string {
	return "client is closed"
}

func (e *AlreadyConnectedError) Error() string {
	return fmt.Sprintf("already connected or connecting to %s", e.URL)
}

func (e *TooManyPendingCallsError) Error() string {
	return fmt.Sprintf("all %d procedure call IDs are in use", e.Pending)
}
