package transport

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/su225/networktables/node/wire"
)

// Subprotocol is the WebSocket subprotocol offered by clients and
// echoed by the server
const Subprotocol = "NetworkTables"

// closeTimeout bounds the close handshake
const closeTimeout = time.Second

// websocketConn carries packets in binary messages. A message may
// hold several packets but a packet never spans two messages.
type websocketConn struct {
	ws         *websocket.Conn
	pending    *bytes.Reader
	writeMutex sync.Mutex
}

// NewWebSocketConn wraps an established WebSocket connection
func NewWebSocketConn(ws *websocket.Conn) PacketConn {
	ws.SetReadLimit(wire.MaxLength)
	return &websocketConn{ws: ws}
}

func (c *websocketConn) ReadPacket() (wire.Packet, error) {
	for c.pending == nil || c.pending.Len() == 0 {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if messageType != websocket.BinaryMessage {
			return nil, &UnexpectedMessageTypeError{MessageType: messageType}
		}
		c.pending = bytes.NewReader(message)
	}
	packet, err := wire.ReadPacket(c.pending)
	if err == io.ErrUnexpectedEOF {
		return nil, &PacketSplitAcrossMessagesError{}
	}
	return packet, err
}

func (c *websocketConn) WritePackets(packets ...wire.Packet) error {
	message, err := wire.Marshal(packets...)
	if err != nil {
		return err
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return errors.Wrap(c.ws.WriteMessage(websocket.BinaryMessage, message), "write message")
}

func (c *websocketConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *websocketConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

func (c *websocketConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// Close sends a normal close frame before closing the socket
func (c *websocketConn) Close() error {
	c.writeMutex.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))
	c.writeMutex.Unlock()
	return c.ws.Close()
}

// offersNetworkTables tells if one of the offered subprotocols
// names NetworkTables, ignoring case
func offersNetworkTables(subprotocols []string) (string, bool) {
	for _, offered := range subprotocols {
		if strings.Contains(strings.ToLower(offered), strings.ToLower(Subprotocol)) {
			return offered, true
		}
	}
	return "", false
}
