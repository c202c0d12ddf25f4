package client

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/callback"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/transport"
	"github.com/su225/networktables/node/wire"
)

const ntClient = "NT-CLIENT"

// DefaultKeepAliveInterval is how often an idle client tells
// the server that it is still there
const DefaultKeepAliveInterval = time.Second

// DefaultDialTimeout bounds connection establishment when the
// context passed to Connect carries no deadline
const DefaultDialTimeout = 5 * time.Second

// ConnectionState describes where the client is in its
// connection lifecycle
type ConnectionState uint8

const (
	// Idle means there is no connection
	Idle ConnectionState = iota
	// Connecting means the handshake is in progress
	Connecting
	// Connected means the entry mirror is live
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Option customizes a client
type Option func(*RealClient)

// WithKeepAliveInterval overrides DefaultKeepAliveInterval
func WithKeepAliveInterval(interval time.Duration) Option {
	return func(c *RealClient) {
		if interval > 0 {
			c.KeepAliveInterval = interval
		}
	}
}

// WithDialTimeout overrides DefaultDialTimeout
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *RealClient) {
		if timeout > 0 {
			c.DialTimeout = timeout
		}
	}
}

// RealClient keeps a local mirror of the server's entry table.
// Remote changes are applied as they arrive and reported through
// callbacks. Local changes are applied immediately and sent to
// the server.
type RealClient struct {
	// URL is either ws://host:port, wss://host:port,
	// tcp://host:port or a bare host[:port]
	URL string

	// Name is announced to the server in the handshake
	Name string

	KeepAliveInterval time.Duration
	DialTimeout       time.Duration

	mutex          sync.Mutex
	state          ConnectionState
	closed         bool
	conn           transport.PacketConn
	serverName     string
	table          *entry.Table
	pendingCreates map[string][]chan uint16
	pendingCalls   map[uint16]chan []byte
	nextCallID     uint16
	disconnected   chan struct{}
	keepAlive      *keepAliveController
	callbacks      *callback.Registry
}

// NewRealClient creates a client in the Idle state. Use Reconnect
// to establish the connection or Connect to do both at once.
func NewRealClient(url, name string, opts ...Option) *RealClient {
	c := &RealClient{
		URL:               url,
		Name:              name,
		KeepAliveInterval: DefaultKeepAliveInterval,
		DialTimeout:       DefaultDialTimeout,
		table:             entry.NewTable(),
		pendingCreates:    make(map[string][]chan uint16),
		pendingCalls:      make(map[uint16]chan []byte),
		callbacks:         callback.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect creates a client and connects it to the server at url.
// It returns once the server sent its complete entry table.
func Connect(ctx context.Context, url, name string, opts ...Option) (*RealClient, error) {
	c := NewRealClient(url, name, opts...)
	if err := c.connect(ctx); err != nil {
		c.callbacks.Close()
		return nil, err
	}
	return c, nil
}

// Reconnect drops the current connection, if any, together with the
// mirrored entries and every pending operation, then connects again.
func (c *RealClient) Reconnect(ctx context.Context) error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn != nil {
		c.dropConnection(conn, "reconnect requested")
	}
	return c.connect(ctx)
}

// Close disconnects and releases the client. Callbacks registered
// on the client do not fire after Close returns.
func (c *RealClient) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mutex.Unlock()
	if conn != nil {
		c.dropConnection(conn, "client closed")
	}
	c.callbacks.Close()
	return nil
}

// State returns the current connection state
func (c *RealClient) State() ConnectionState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// ServerName returns the name the server announced in the
// handshake of the current connection
func (c *RealClient) ServerName() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.serverName
}

// Entries returns copies of the mirrored entries keyed by ID
func (c *RealClient) Entries() map[uint16]entry.EntryData {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.table.Entries()
}

// LookupEntry finds the ID of the entry with the given name
func (c *RealClient) LookupEntry(name string) (uint16, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.table.Lookup(name)
}

// GetEntry returns a handle for the entry with the given ID, or
// nil if the mirror does not hold such an entry
func (c *RealClient) GetEntry(id uint16) *EntryHandle {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, exists := c.table.Get(id); !exists {
		return nil
	}
	return &EntryHandle{client: c, id: id}
}

// AddCallback registers an action run for remote entry changes
func (c *RealClient) AddCallback(t callback.CallbackType, action callback.EntryAction) {
	c.callbacks.AddCallback(t, action)
}

// AddConnectionCallback registers an action run when the
// connection to the server is established or lost
func (c *RealClient) AddConnectionCallback(t callback.ConnectionCallbackType, action callback.ConnectionAction) {
	c.callbacks.AddConnectionCallback(t, action)
}

// CreateEntry asks the server to create an entry and waits until
// the server assigns it an ID. If the name is taken the server
// answers with the existing entry and its ID is returned.
func (c *RealClient) CreateEntry(ctx context.Context, data entry.EntryData) (uint16, error) {
	if !data.Value.Type.Valid() {
		return 0, &entry.InvalidEntryTypeError{Type: data.Value.Type}
	}
	c.mutex.Lock()
	conn, disconnected, err := c.connectedState()
	if err != nil {
		c.mutex.Unlock()
		return 0, err
	}
	resultChan := make(chan uint16, 1)
	c.pendingCreates[data.Name] = append(c.pendingCreates[data.Name], resultChan)
	c.mutex.Unlock()

	assignment := &wire.EntryAssignment{
		Name:   data.Name,
		ID:     entry.NewEntryID,
		Seqnum: data.Seqnum,
		Flags:  data.Flags,
		Value:  data.Value,
	}
	if err := conn.WritePackets(assignment); err != nil {
		c.forgetPendingCreate(data.Name, resultChan)
		return 0, err
	}
	select {
	case id := <-resultChan:
		return id, nil
	case <-disconnected:
		return 0, &DisconnectedError{Operation: "entry creation"}
	case <-ctx.Done():
		c.forgetPendingCreate(data.Name, resultChan)
		return 0, ctx.Err()
	}
}

// UpdateEntry sets a new value for an entry. The value must have
// the type the entry was created with.
func (c *RealClient) UpdateEntry(id uint16, value entry.EntryValue) error {
	c.mutex.Lock()
	conn, _, err := c.connectedState()
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	current, exists := c.table.Get(id)
	if !exists {
		c.mutex.Unlock()
		return &entry.EntryNotFoundError{ID: id}
	}
	seqnum := current.Seqnum + 1
	if _, err := c.table.Update(id, value, seqnum); err != nil {
		c.mutex.Unlock()
		return err
	}
	c.mutex.Unlock()
	return conn.WritePackets(&wire.EntryUpdate{ID: id, Seqnum: seqnum, Value: value})
}

// UpdateEntryFlags replaces the flags of an entry
func (c *RealClient) UpdateEntryFlags(id uint16, flags uint8) error {
	c.mutex.Lock()
	conn, _, err := c.connectedState()
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	if _, err := c.table.SetFlags(id, flags); err != nil {
		c.mutex.Unlock()
		return err
	}
	c.mutex.Unlock()
	return conn.WritePackets(&wire.EntryFlagsUpdate{ID: id, Flags: flags})
}

// DeleteEntry removes an entry
func (c *RealClient) DeleteEntry(id uint16) error {
	c.mutex.Lock()
	conn, _, err := c.connectedState()
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	if _, exists := c.table.Delete(id); !exists {
		c.mutex.Unlock()
		return &entry.EntryNotFoundError{ID: id}
	}
	c.mutex.Unlock()
	return conn.WritePackets(&wire.EntryDelete{ID: id})
}

// ClearEntries removes every entry, locally and on the server
func (c *RealClient) ClearEntries() error {
	c.mutex.Lock()
	conn, _, err := c.connectedState()
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	c.table.Clear()
	c.mutex.Unlock()
	return conn.WritePackets(wire.NewClearAllEntries())
}

// CallRPC executes the remote procedure behind an RPC entry and
// waits for its result
func (c *RealClient) CallRPC(ctx context.Context, id uint16, parameter []byte) ([]byte, error) {
	c.mutex.Lock()
	conn, disconnected, err := c.connectedState()
	if err != nil {
		c.mutex.Unlock()
		return nil, err
	}
	data, exists := c.table.Get(id)
	if !exists {
		c.mutex.Unlock()
		return nil, &entry.EntryNotFoundError{ID: id}
	}
	if data.Value.Type != entry.TypeRPC {
		c.mutex.Unlock()
		return nil, &entry.TypeMismatchError{ID: id, Expected: entry.TypeRPC, Actual: data.Value.Type}
	}
	uniqueID, allocErr := c.allocateCallID()
	if allocErr != nil {
		c.mutex.Unlock()
		return nil, allocErr
	}
	resultChan := make(chan []byte, 1)
	c.pendingCalls[uniqueID] = resultChan
	c.mutex.Unlock()

	if err := conn.WritePackets(&wire.RPCExecute{ID: id, UniqueID: uniqueID, Parameter: parameter}); err != nil {
		c.forgetPendingCall(uniqueID)
		return nil, err
	}
	select {
	case result := <-resultChan:
		return result, nil
	case <-disconnected:
		return nil, &DisconnectedError{Operation: "procedure call"}
	case <-ctx.Done():
		c.forgetPendingCall(uniqueID)
		return nil, ctx.Err()
	}
}

// allocateCallID picks the next call ID that is not waiting for a
// result. It must be called with the mutex held.
func (c *RealClient) allocateCallID() (uint16, error) {
	for attempt := 0; attempt <= 0xFFFF; attempt++ {
		candidate := c.nextCallID
		c.nextCallID++
		if _, inFlight := c.pendingCalls[candidate]; !inFlight {
			return candidate, nil
		}
	}
	return 0, &TooManyPendingCallsError{Pending: len(c.pendingCalls)}
}

// connectedState must be called with the mutex held
func (c *RealClient) connectedState() (transport.PacketConn, chan struct{}, error) {
	if c.closed {
		return nil, nil, &ClientClosedError{}
	}
	if c.state != Connected {
		return nil, nil, &NotConnectedError{URL: c.URL}
	}
	return c.conn, c.disconnected, nil
}

func (c *RealClient) forgetPendingCreate(name string, resultChan chan uint16) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	waiters := c.pendingCreates[name]
	for i, waiter := range waiters {
		if waiter == resultChan {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(c.pendingCreates, name)
	} else {
		c.pendingCreates[name] = waiters
	}
}

func (c *RealClient) forgetPendingCall(uniqueID uint16) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.pendingCalls, uniqueID)
}

func (c *RealClient) connect(ctx context.Context) error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return &ClientClosedError{}
	}
	if c.state != Idle {
		c.mutex.Unlock()
		return &AlreadyConnectedError{URL: c.URL}
	}
	c.state = Connecting
	c.mutex.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.DialTimeout)
		defer cancel()
	}
	conn, err := transport.Dial(ctx, c.URL, c.DialTimeout)
	if err != nil {
		c.setIdle()
		return errors.Wrapf(err, "connecting to %s", c.URL)
	}
	serverName, table, err := c.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		c.setIdle()
		return err
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		conn.Close()
		c.setIdle()
		return &ClientClosedError{}
	}
	c.conn = conn
	c.serverName = serverName
	c.table = table
	c.state = Connected
	c.disconnected = make(chan struct{})
	c.keepAlive = startKeepAlive(conn, c.KeepAliveInterval)
	initial := make([]entry.Entry, 0, table.Len())
	table.Ascend("", func(e entry.Entry) bool {
		initial = append(initial, e)
		return true
	})
	c.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		logfield.Component:     ntClient,
		logfield.Event:         "CONNECTED",
		logfield.RemoteAddress: conn.RemoteAddr().String(),
	}).Infof("connected to %s with %d entries", serverName, len(initial))

	go c.readLoop(conn)
	c.callbacks.NotifyConnection(callback.ClientConnected, conn.RemoteAddr())
	for _, e := range initial {
		c.callbacks.NotifyEntry(callback.Add, e)
	}
	return nil
}

func (c *RealClient) setIdle() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.state = Idle
}

// handshake announces the client and collects the server's table
// until the server says it is complete. The context bounds the
// whole exchange.
func (c *RealClient) handshake(ctx context.Context, conn transport.PacketConn) (string, *entry.Table, error) {
	stopWatching := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopWatching()
	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}

	hello := &wire.ClientHello{Revision: wire.ProtocolRevision, Name: c.Name}
	if err := conn.WritePackets(hello); err != nil {
		return "", nil, c.handshakeError(ctx, err)
	}
	serverName := ""
	table := entry.NewTable()
	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			return "", nil, c.handshakeError(ctx, err)
		}
		switch p := packet.(type) {
		case *wire.ProtocolVersionUnsupported:
			return "", nil, &ProtocolVersionUnsupportedError{ServerRevision: p.Revision}
		case *wire.ServerHello:
			serverName = p.Name
		case *wire.EntryAssignment:
			data := entry.EntryData{Name: p.Name, Flags: p.Flags, Value: p.Value, Seqnum: p.Seqnum}
			table.Put(p.ID, data)
		case *wire.ServerHelloComplete:
			if err := conn.WritePackets(&wire.ClientHelloComplete{}); err != nil {
				return "", nil, c.handshakeError(ctx, err)
			}
			if !stopWatching() {
				return "", nil, ctx.Err()
			}
			return serverName, table, nil
		}
	}
}

func (c *RealClient) handshakeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *RealClient) readLoop(conn transport.PacketConn) {
	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			c.dropConnection(conn, err.Error())
			return
		}
		c.handlePacket(conn, packet)
	}
}

// dropConnection forgets conn if it is still the current one and
// fails whatever waits on it. Later calls for the same conn are
// no-ops.
func (c *RealClient) dropConnection(conn transport.PacketConn, reason string) {
	c.mutex.Lock()
	if c.conn != conn {
		c.mutex.Unlock()
		return
	}
	c.conn = nil
	c.state = Idle
	c.table = entry.NewTable()
	c.pendingCreates = make(map[string][]chan uint16)
	c.pendingCalls = make(map[uint16]chan []byte)
	close(c.disconnected)
	c.keepAlive.stop()
	c.mutex.Unlock()

	conn.Close()
	logrus.WithFields(logrus.Fields{
		logfield.Component:     ntClient,
		logfield.Event:         "DISCONNECTED",
		logfield.RemoteAddress: conn.RemoteAddr().String(),
		logfield.ErrorReason:   reason,
	}).Info("disconnected from server")
	c.callbacks.NotifyConnection(callback.ClientDisconnected, conn.RemoteAddr())
}

type entryNotification struct {
	event callback.CallbackType
	entry entry.Entry
}

func (c *RealClient) handlePacket(conn transport.PacketConn, packet wire.Packet) {
	var notifications []entryNotification
	notify := func(event callback.CallbackType, id uint16, data entry.EntryData) {
		notifications = append(notifications, entryNotification{
			event: event,
			entry: entry.Entry{ID: id, EntryData: data},
		})
	}

	c.mutex.Lock()
	if c.conn != conn {
		c.mutex.Unlock()
		return
	}
	switch p := packet.(type) {
	case *wire.EntryAssignment:
		data := entry.EntryData{Name: p.Name, Flags: p.Flags, Value: p.Value, Seqnum: p.Seqnum}
		event := callback.Add
		if c.table.Put(p.ID, data) {
			event = callback.Update
		}
		for _, waiter := range c.pendingCreates[p.Name] {
			waiter <- p.ID
		}
		delete(c.pendingCreates, p.Name)
		notify(event, p.ID, data.Clone())
	case *wire.EntryUpdate:
		if updated, err := c.table.Update(p.ID, p.Value, p.Seqnum); err == nil {
			notify(callback.Update, p.ID, updated)
		} else {
			c.logIgnored(p, err)
		}
	case *wire.EntryFlagsUpdate:
		if updated, err := c.table.SetFlags(p.ID, p.Flags); err == nil {
			notify(callback.Update, p.ID, updated)
		} else {
			c.logIgnored(p, err)
		}
	case *wire.EntryDelete:
		if removed, exists := c.table.Delete(p.ID); exists {
			notify(callback.Delete, p.ID, removed)
		}
	case *wire.ClearAllEntries:
		if p.IsValid() {
			for _, removed := range c.table.Clear() {
				notify(callback.Delete, removed.ID, removed.EntryData)
			}
		}
	case *wire.RPCResponse:
		if resultChan, pending := c.pendingCalls[p.UniqueID]; pending {
			delete(c.pendingCalls, p.UniqueID)
			resultChan <- p.Result
		}
	}
	c.mutex.Unlock()

	for _, n := range notifications {
		c.callbacks.NotifyEntry(n.event, n.entry)
	}
}

func (c *RealClient) logIgnored(packet wire.Packet, err error) {
	logrus.WithFields(logrus.Fields{
		logfield.Component:   ntClient,
		logfield.Event:       "IGNORED-PACKET",
		logfield.ErrorReason: err.Error(),
	}).Debugf("ignoring packet 0x%02x", uint8(packet.PacketID()))
}
