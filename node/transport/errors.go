package transport

import "fmt"

// UnexpectedMessageTypeError is returned when a WebSocket peer
// sends anything but binary messages
type UnexpectedMessageTypeError struct {
	MessageType int
}

// PacketSplitAcrossMessagesError is returned when a WebSocket
// message ends in the middle of a packet
type PacketSplitAcrossMessagesError struct{}

// SubprotocolNotNegotiatedError is returned by Dial when the server
// did not accept the NetworkTables subprotocol
type SubprotocolNotNegotiatedError struct {
	Negotiated string
}

// UnsupportedSchemeError is returned by Dial for unknown URL schemes
type UnsupportedSchemeError struct {
	Scheme string
}

// ListenerClosedError is returned by Accept once the listener is closed
type ListenerClosedError struct{}

func (e *UnexpectedMessageTypeError) Error() string {
	return fmt.Sprintf("unexpected websocket message type %d, only binary messages are allowed", e.MessageType)
}

func (e *PacketSplitAcrossMessagesError) Error() string {
	return "packet split across websocket messages"
}

func (e *SubprotocolNotNegotiatedError) Error() string {
	return fmt.Sprintf("server did not accept the NetworkTables subprotocol (negotiated %q)", e.Negotiated)
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported scheme %q", e.Scheme)
}

func (e *ListenerClosedError) Error() string {
	return "listener is closed"
}
