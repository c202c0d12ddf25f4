package server

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/transport"
	"github.com/su225/networktables/node/wire"
)

// outboundQueueLength is the number of batches a client may lag
// behind before it is dropped
const outboundQueueLength = 1024

type sessionPhase uint8

const (
	awaitingClientHello sessionPhase = iota
	awaitingClientHelloComplete
	sessionActive
)

type outboundBatch struct {
	packets    []wire.Packet
	closeAfter bool
}

// clientSession is the server side of one client connection. Its
// fields other than the channels are owned by the server loop.
type clientSession struct {
	id          uint64
	conn        transport.PacketConn
	phase       sessionPhase
	name        string
	connectedAt time.Time

	outbound  chan outboundBatch
	done      chan struct{}
	closeOnce sync.Once
}

func newClientSession(id uint64, conn transport.PacketConn) *clientSession {
	return &clientSession{
		id:          id,
		conn:        conn,
		phase:       awaitingClientHello,
		connectedAt: time.Now(),
		outbound:    make(chan outboundBatch, outboundQueueLength),
		done:        make(chan struct{}),
	}
}

func (cs *clientSession) remoteAddr() net.Addr {
	return cs.conn.RemoteAddr()
}

// handshaken tells if the client already got the entry snapshot
// and must therefore be told about every change
func (cs *clientSession) handshaken() bool {
	return cs.phase != awaitingClientHello
}

// send queues packets for the writer. It returns false if the
// queue is full, in which case the client is too slow to keep.
func (cs *clientSession) send(packets ...wire.Packet) bool {
	return cs.enqueue(outboundBatch{packets: packets})
}

// sendAndClose queues the packets and closes the connection once
// they are written
func (cs *clientSession) sendAndClose(packets ...wire.Packet) {
	if !cs.enqueue(outboundBatch{packets: packets, closeAfter: true}) {
		cs.close()
	}
}

func (cs *clientSession) enqueue(batch outboundBatch) bool {
	select {
	case <-cs.done:
		return true
	default:
	}
	select {
	case cs.outbound <- batch:
		return true
	default:
		return false
	}
}

func (cs *clientSession) close() {
	cs.closeOnce.Do(func() {
		close(cs.done)
		cs.conn.Close()
	})
}

// writeLoop drains the outbound queue into the connection
func (cs *clientSession) writeLoop() {
	for {
		select {
		case batch := <-cs.outbound:
			if err := cs.conn.WritePackets(batch.packets...); err != nil {
				logrus.WithFields(logrus.Fields{
					logfield.ErrorReason:   err.Error(),
					logfield.Component:     ntServer,
					logfield.Event:         "WRITE-PACKETS",
					logfield.RemoteAddress: cs.remoteAddr().String(),
				}).Debugf("error while writing to client")
				cs.close()
				return
			}
			if batch.closeAfter {
				cs.close()
				return
			}
		case <-cs.done:
			return
		}
	}
}

// readLoop forwards incoming packets to the server loop. Reading
// stops at the first error, which is reported as the end of the
// session.
func (cs *clientSession) readLoop(commands chan<- serverCommand, idleTimeout time.Duration) {
	for {
		if idleTimeout > 0 {
			cs.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		}
		packet, err := cs.conn.ReadPacket()
		if err != nil {
			commands <- &sessionClosed{sessionID: cs.id, reason: err}
			return
		}
		commands <- &packetReceived{sessionID: cs.id, packet: packet}
	}
}
