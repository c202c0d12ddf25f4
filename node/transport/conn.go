package transport

import (
	"bufio"
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/su225/networktables/node/wire"
)

// DefaultPort is the well-known NetworkTables port
const DefaultPort = 1735

// PacketConn is a connection exchanging NetworkTables packets.
// ReadPacket must be called from one goroutine at a time while
// WritePackets may be called concurrently.
type PacketConn interface {
	// ReadPacket blocks until the next packet arrives
	ReadPacket() (wire.Packet, error)

	// WritePackets sends the packets in one write
	WritePackets(packets ...wire.Packet) error

	// SetReadDeadline bounds the next ReadPacket calls
	SetReadDeadline(t time.Time) error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Close() error
}

// streamConn carries packets back to back over a byte stream
type streamConn struct {
	conn       net.Conn
	reader     *bufio.Reader
	writeMutex sync.Mutex
}

// NewStreamConn wraps a TCP (or any stream) connection
func NewStreamConn(conn net.Conn) PacketConn {
	return newStreamConn(conn, bufio.NewReader(conn))
}

func newStreamConn(conn net.Conn, reader *bufio.Reader) *streamConn {
	return &streamConn{conn: conn, reader: reader}
}

func (c *streamConn) ReadPacket() (wire.Packet, error) {
	return wire.ReadPacket(c.reader)
}

func (c *streamConn) WritePackets(packets ...wire.Packet) error {
	var buf bytes.Buffer
	for _, p := range packets {
		if err := wire.Encode(&buf, p); err != nil {
			return err
		}
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	_, err := c.conn.Write(buf.Bytes())
	return errors.Wrap(err, "write packets")
}

func (c *streamConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *streamConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *streamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}
