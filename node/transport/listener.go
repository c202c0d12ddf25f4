package transport

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"golang.org/x/net/netutil"
)

const listenerComponent = "NT-LISTENER"

// DefaultSniffTimeout bounds the wait for the first bytes of a
// connection, which decide between TCP and WebSocket
const DefaultSniffTimeout = 5 * time.Second

// Listener accepts NetworkTables clients speaking either plain TCP or
// WebSocket on the same port. A connection starting with "GET" goes
// through the HTTP upgrade, anything else is taken as a TCP stream.
type Listener struct {
	SniffTimeout time.Duration

	listener   net.Listener
	upgrades   *handoffListener
	httpServer *http.Server
	accepted   chan PacketConn

	done      chan struct{}
	closeOnce sync.Once

	failed    chan struct{}
	acceptErr error
}

// Listen opens the listener. When maxClients is positive no more than
// that many connections are open at once; further clients wait in
// the backlog until a slot frees up.
func Listen(address string, maxClients int) (*Listener, error) {
	raw, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", address)
	}
	if maxClients > 0 {
		raw = netutil.LimitListener(raw, maxClients)
	}
	l := &Listener{
		SniffTimeout: DefaultSniffTimeout,
		listener:     raw,
		upgrades:     newHandoffListener(raw.Addr()),
		accepted:     make(chan PacketConn),
		done:         make(chan struct{}),
		failed:       make(chan struct{}),
	}
	l.httpServer = &http.Server{Handler: http.HandlerFunc(l.serveWebSocket)}
	go l.httpServer.Serve(l.upgrades)
	go l.acceptLoop()
	return l, nil
}

// Accept waits for the next client that got past transport
// negotiation. For WebSocket clients that means a finished upgrade.
func (l *Listener) Accept() (PacketConn, error) {
	select {
	case conn := <-l.accepted:
		return conn, nil
	case <-l.done:
		return nil, &ListenerClosedError{}
	case <-l.failed:
		return nil, l.acceptErr
	}
}

// Addr returns the address the listener is bound to
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close stops accepting clients. Connections already handed
// out by Accept are not affected.
func (l *Listener) Close() error {
	var closeErr error
	l.closeOnce.Do(func() {
		close(l.done)
		closeErr = l.listener.Close()
		l.upgrades.Close()
		l.httpServer.Close()
	})
	return closeErr
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			if netErr, ok := err.(net.Error); ok && netErr.Temporary() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			logrus.WithFields(logrus.Fields{
				logfield.ErrorReason: err.Error(),
				logfield.Component:   listenerComponent,
				logfield.Event:       "ACCEPT",
			}).Errorf("error while accepting connections")
			l.acceptErr = err
			close(l.failed)
			return
		}
		go l.sniff(conn)
	}
}

// sniff peeks at the first bytes of the connection and routes it
func (l *Listener) sniff(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(l.SniffTimeout))
	reader := bufio.NewReader(conn)
	prefix, err := reader.Peek(3)
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason:   err.Error(),
			logfield.Component:     listenerComponent,
			logfield.Event:         "SNIFF",
			logfield.RemoteAddress: conn.RemoteAddr().String(),
		}).Debugf("closing connection that sent nothing usable")
		conn.Close()
		return
	}
	if string(prefix) == "GET" {
		l.upgrades.push(&peekedConn{Conn: conn, reader: reader})
		return
	}
	l.deliver(newStreamConn(conn, reader))
}

func (l *Listener) deliver(conn PacketConn) {
	select {
	case l.accepted <- conn:
	case <-l.done:
		conn.Close()
	}
}

func (l *Listener) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	offered, ok := offersNetworkTables(websocket.Subprotocols(r))
	responseHeader := http.Header{}
	if ok {
		responseHeader.Set("Sec-Websocket-Protocol", offered)
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason:   err.Error(),
			logfield.Component:     listenerComponent,
			logfield.Event:         "WS-UPGRADE",
			logfield.RemoteAddress: r.RemoteAddr,
		}).Warnf("websocket upgrade failed")
		return
	}
	if !ok {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "NetworkTables protocol required."),
			time.Now().Add(closeTimeout))
		ws.Close()
		return
	}
	l.deliver(NewWebSocketConn(ws))
}

// peekedConn replays the bytes consumed while sniffing
type peekedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *peekedConn) Read(b []byte) (int, error) {
	return c.reader.Read(b)
}

// handoffListener feeds sniffed connections to the HTTP server
type handoffListener struct {
	conns     chan net.Conn
	done      chan struct{}
	closeOnce sync.Once
	addr      net.Addr
}

func newHandoffListener(addr net.Addr) *handoffListener {
	return &handoffListener{
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
		addr:  addr,
	}
}

func (h *handoffListener) push(conn net.Conn) {
	select {
	case h.conns <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *handoffListener) Accept() (net.Conn, error) {
	select {
	case conn := <-h.conns:
		return conn, nil
	case <-h.done:
		return nil, &ListenerClosedError{}
	}
}

func (h *handoffListener) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

func (h *handoffListener) Addr() net.Addr {
	return h.addr
}
