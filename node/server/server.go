package server

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/callback"
	"github.com/su225/networktables/node/common"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/persist"
	"github.com/su225/networktables/node/transport"
)

const ntServer = "NT-SERVER"

// DefaultPersistInterval is used when no interval is configured
const DefaultPersistInterval = time.Second

var serverNotStartedError = &common.ComponentHasNotStartedError{ComponentName: ntServer}
var serverIsDestroyedError = &common.ComponentIsDestroyedError{ComponentName: ntServer}

// Server is the authoritative holder of the entry table. Clients
// connect to it, and local callers (REST and admin RPC) mutate
// the table through it. Every change is pushed to the clients.
type Server interface {
	// Addr returns the address the server listens on
	Addr() (string, error)

	// Entries returns a copy of all entries keyed by ID
	Entries() (map[uint16]entry.EntryData, error)

	// EntriesWithPrefix returns the entries whose name starts
	// with prefix, in name order
	EntriesWithPrefix(prefix string) ([]entry.Entry, error)

	// Entry returns the entry with the given ID
	Entry(id uint16) (entry.Entry, error)

	// LookupEntry returns the entry with the given name
	LookupEntry(name string) (entry.Entry, error)

	// CreateEntry adds an entry and announces it to all clients.
	// The ID assigned by the server is returned
	CreateEntry(data entry.EntryData) (uint16, error)

	// CreateRPC adds an rpc entry served by the given procedure
	CreateRPC(name string, procedure Procedure) (uint16, error)

	// UpdateEntry sets a new value of the same type and bumps
	// the sequence number
	UpdateEntry(id uint16, value entry.EntryValue) (entry.Entry, error)

	// UpdateEntryFlags replaces the flags of an entry
	UpdateEntryFlags(id uint16, flags uint8) (entry.Entry, error)

	// DeleteEntry removes an entry
	DeleteEntry(id uint16) error

	// ClearEntries removes every entry
	ClearEntries() error

	// CallProcedure runs the procedure behind an rpc entry
	CallProcedure(ctx context.Context, id uint16, parameter []byte) ([]byte, error)

	// Clients lists the connected clients
	Clients() ([]ClientInfo, error)

	// AddCallback registers an action for entry changes
	AddCallback(t callback.CallbackType, action callback.EntryAction)

	// AddConnectionCallback registers an action for clients
	// finishing the handshake or going away
	AddConnectionCallback(t callback.ConnectionCallbackType, action callback.ConnectionAction)

	common.ComponentLifecycle
}

// ClientInfo describes a client connection
type ClientInfo struct {
	Name          string    `json:"name"`
	RemoteAddress string    `json:"remote_address"`
	Handshaken    bool      `json:"handshaken"`
	ConnectedAt   time.Time `json:"connected_at"`
}

// RealServer implements Server. All state is owned by a single
// loop goroutine; client connections talk to it through commands.
type RealServer struct {
	// Address is where the server listens for clients, both
	// plain TCP and WebSocket
	Address string

	// ServerName is sent to clients in ServerHello
	ServerName string

	// MaxClients limits concurrently open connections. Zero
	// means no limit
	MaxClients int

	// ClientIdleTimeout drops clients that send nothing, not
	// even keep-alives, for that long. Zero disables it
	ClientIdleTimeout time.Duration

	// PersistInterval is the minimum time between two writes
	// of the persistent entries
	PersistInterval time.Duration

	// EntryPersistence stores the persistent entries. It
	// may be nil in which case nothing survives a restart
	persist.EntryPersistence

	callbacks      *callback.Registry
	commandChannel chan serverCommand
}

// NewRealServer creates a new server. It does not listen until
// Start is called.
func NewRealServer(
	address string,
	serverName string,
	maxClients int,
	clientIdleTimeout time.Duration,
	persistInterval time.Duration,
	entryPersistence persist.EntryPersistence,
) *RealServer {
	if persistInterval <= 0 {
		persistInterval = DefaultPersistInterval
	}
	s := &RealServer{
		Address:           address,
		ServerName:        serverName,
		MaxClients:        maxClients,
		ClientIdleTimeout: clientIdleTimeout,
		PersistInterval:   persistInterval,
		EntryPersistence:  entryPersistence,
		callbacks:         callback.NewRegistry(),
		commandChannel:    make(chan serverCommand),
	}
	go s.loop()
	return s
}

// Start restores the persistent entries and starts accepting
// clients. Calling it again is a no-op.
func (s *RealServer) Start() error {
	errChan := make(chan error)
	s.commandChannel <- &startServer{errChan: errChan}
	return <-errChan
}

// Destroy stops accepting clients, disconnects the existing ones
// and writes the persistent entries one last time. The server
// cannot be started again.
func (s *RealServer) Destroy() error {
	errChan := make(chan error)
	s.commandChannel <- &destroyServer{errChan: errChan}
	destroyErr := <-errChan
	s.callbacks.Close()
	return destroyErr
}

// Addr returns the address the server is listening on, which
// differs from Address when the port was chosen by the system
func (s *RealServer) Addr() (string, error) {
	replyChan := make(chan *getAddrReply)
	s.commandChannel <- &getAddr{replyChan: replyChan}
	reply := <-replyChan
	return reply.address, reply.err
}

// Entries returns a copy of all entries keyed by ID
func (s *RealServer) Entries() (map[uint16]entry.EntryData, error) {
	replyChan := make(chan *getEntriesReply)
	s.commandChannel <- &getEntries{replyChan: replyChan}
	reply := <-replyChan
	return reply.entries, reply.err
}

// EntriesWithPrefix returns the matching entries in name order
func (s *RealServer) EntriesWithPrefix(prefix string) ([]entry.Entry, error) {
	replyChan := make(chan *listEntriesReply)
	s.commandChannel <- &listEntries{prefix: prefix, replyChan: replyChan}
	reply := <-replyChan
	return reply.entries, reply.err
}

// Entry returns the entry with the given ID
func (s *RealServer) Entry(id uint16) (entry.Entry, error) {
	replyChan := make(chan *entryReply)
	s.commandChannel <- &getEntry{id: id, replyChan: replyChan}
	reply := <-replyChan
	return reply.entry, reply.err
}

// LookupEntry returns the entry with the given name
func (s *RealServer) LookupEntry(name string) (entry.Entry, error) {
	replyChan := make(chan *entryReply)
	s.commandChannel <- &getEntry{name: name, byName: true, replyChan: replyChan}
	reply := <-replyChan
	return reply.entry, reply.err
}

// CreateEntry adds the entry and announces it to the clients. If the
// name is taken, EntryAlreadyExistsError carries the existing ID.
func (s *RealServer) CreateEntry(data entry.EntryData) (uint16, error) {
	return s.create(data, nil)
}

// CreateRPC adds an rpc entry answered by procedure
func (s *RealServer) CreateRPC(name string, procedure Procedure) (uint16, error) {
	return s.create(entry.NewEntryData(name, 0, entry.RPCValue()), procedure)
}

func (s *RealServer) create(data entry.EntryData, procedure Procedure) (uint16, error) {
	replyChan := make(chan *entryReply)
	s.commandChannel <- &createEntry{data: data, procedure: procedure, replyChan: replyChan}
	reply := <-replyChan
	return reply.entry.ID, reply.err
}

// UpdateEntry replaces the value of an entry
func (s *RealServer) UpdateEntry(id uint16, value entry.EntryValue) (entry.Entry, error) {
	replyChan := make(chan *entryReply)
	s.commandChannel <- &updateEntry{id: id, value: value, replyChan: replyChan}
	reply := <-replyChan
	return reply.entry, reply.err
}

// UpdateEntryFlags replaces the flags of an entry
func (s *RealServer) UpdateEntryFlags(id uint16, flags uint8) (entry.Entry, error) {
	replyChan := make(chan *entryReply)
	s.commandChannel <- &updateEntryFlags{id: id, flags: flags, replyChan: replyChan}
	reply := <-replyChan
	return reply.entry, reply.err
}

// DeleteEntry removes an entry
func (s *RealServer) DeleteEntry(id uint16) error {
	replyChan := make(chan *entryReply)
	s.commandChannel <- &deleteEntry{id: id, replyChan: replyChan}
	return (<-replyChan).err
}

// ClearEntries removes every entry
func (s *RealServer) ClearEntries() error {
	errChan := make(chan error)
	s.commandChannel <- &clearEntries{errChan: errChan}
	return <-errChan
}

// CallProcedure runs the procedure registered for the entry outside
// of the server loop. A panicking procedure yields an empty result.
func (s *RealServer) CallProcedure(ctx context.Context, id uint16, parameter []byte) ([]byte, error) {
	replyChan := make(chan *getProcedureReply)
	s.commandChannel <- &getProcedure{id: id, replyChan: replyChan}
	reply := <-replyChan
	if reply.err != nil {
		return nil, reply.err
	}
	resultChan := make(chan []byte, 1)
	go func() {
		resultChan <- runProcedure(id, reply.procedure, parameter)
	}()
	select {
	case result := <-resultChan:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clients lists connected clients, oldest first
func (s *RealServer) Clients() ([]ClientInfo, error) {
	replyChan := make(chan *getClientsReply)
	s.commandChannel <- &getClients{replyChan: replyChan}
	reply := <-replyChan
	return reply.clients, reply.err
}

// AddCallback registers an action for entry changes, whether they
// come from clients or from local callers
func (s *RealServer) AddCallback(t callback.CallbackType, action callback.EntryAction) {
	s.callbacks.AddCallback(t, action)
}

// AddConnectionCallback registers an action for client connections
func (s *RealServer) AddConnectionCallback(t callback.ConnectionCallbackType, action callback.ConnectionAction) {
	s.callbacks.AddConnectionCallback(t, action)
}

type serverState struct {
	isStarted, isDestroyed bool

	listener      *transport.Listener
	table         *entry.Table
	procedures    map[uint16]Procedure
	sessions      map[uint64]*clientSession
	nextSessionID uint64
	seenClients   map[string]bool

	persistDirty bool
}

// loop owns the server state and executes commands one at a time.
// Persistent entries are flushed on a timer when they changed.
func (s *RealServer) loop() {
	state := &serverState{
		isStarted:     false,
		isDestroyed:   false,
		table:         entry.NewTable(),
		procedures:    make(map[uint16]Procedure),
		sessions:      make(map[uint64]*clientSession),
		nextSessionID: 1,
		seenClients:   make(map[string]bool),
	}
	persistTicker := time.NewTicker(s.PersistInterval)
	defer persistTicker.Stop()
	for {
		select {
		case cmd := <-s.commandChannel:
			switch c := cmd.(type) {
			case *startServer:
				c.errChan <- s.handleStartServer(state, c)
			case *destroyServer:
				c.errChan <- s.handleDestroyServer(state, c)
			case *sessionOpened:
				s.handleSessionOpened(state, c)
			case *packetReceived:
				s.handlePacketReceived(state, c)
			case *sessionClosed:
				s.handleSessionClosed(state, c)
			case *getAddr:
				c.replyChan <- s.handleGetAddr(state, c)
			case *getEntries:
				c.replyChan <- s.handleGetEntries(state, c)
			case *listEntries:
				c.replyChan <- s.handleListEntries(state, c)
			case *getEntry:
				c.replyChan <- s.handleGetEntry(state, c)
			case *createEntry:
				c.replyChan <- s.handleCreateEntry(state, c)
			case *updateEntry:
				c.replyChan <- s.handleUpdateEntry(state, c)
			case *updateEntryFlags:
				c.replyChan <- s.handleUpdateEntryFlags(state, c)
			case *deleteEntry:
				c.replyChan <- s.handleDeleteEntry(state, c)
			case *clearEntries:
				c.errChan <- s.handleClearEntries(state, c)
			case *getProcedure:
				c.replyChan <- s.handleGetProcedure(state, c)
			case *getClients:
				c.replyChan <- s.handleGetClients(state, c)
			}
		case <-persistTicker.C:
			if state.isStarted && !state.isDestroyed {
				s.flushPersistentEntries(state)
			}
		}
	}
}

// handleStartServer restores persistent entries and opens the listener.
// This operation is idempotent.
func (s *RealServer) handleStartServer(state *serverState, cmd *startServer) error {
	if state.isDestroyed {
		return serverIsDestroyedError
	}
	if state.isStarted {
		return nil
	}
	if recoveryErr := s.recoverEntries(state); recoveryErr != nil {
		return recoveryErr
	}
	listener, listenErr := transport.Listen(s.Address, s.MaxClients)
	if listenErr != nil {
		return listenErr
	}
	state.listener = listener
	state.isStarted = true
	go s.acceptLoop(listener)

	logrus.WithFields(logrus.Fields{
		logfield.Component: ntServer,
		logfield.Event:     "START",
	}).Infof("NetworkTables server %q listening at %s", s.ServerName, listener.Addr())
	return nil
}

// recoverEntries loads the persistent entries keeping their IDs
func (s *RealServer) recoverEntries(state *serverState) error {
	if s.EntryPersistence == nil {
		return nil
	}
	persisted, retrieveErr := s.EntryPersistence.RetrieveEntries()
	if retrieveErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: retrieveErr.Error(),
			logfield.Component:   ntServer,
			logfield.Event:       "RECOVER",
		}).Errorf("error while retrieving persistent entries")
		return retrieveErr
	}
	for _, e := range persisted {
		if e.ID == entry.NewEntryID || !e.Value.Type.Valid() {
			continue
		}
		state.table.Put(e.ID, e.EntryData)
	}
	logrus.WithFields(logrus.Fields{
		logfield.Component: ntServer,
		logfield.Event:     "RECOVER",
	}).Infof("restored %d persistent entries", state.table.Len())
	return nil
}

// handleDestroyServer closes the listener and every session and
// writes the persistent entries. It is idempotent.
func (s *RealServer) handleDestroyServer(state *serverState, cmd *destroyServer) error {
	if state.isDestroyed {
		return nil
	}
	state.isDestroyed = true
	if !state.isStarted {
		return nil
	}
	state.listener.Close()
	for _, session := range state.sessions {
		s.dropSession(state, session)
	}
	var persistErr error
	if state.persistDirty {
		persistErr = s.flushPersistentEntries(state)
	}
	logrus.WithFields(logrus.Fields{
		logfield.Component: ntServer,
		logfield.Event:     "DESTROY",
	}).Infof("destroyed NetworkTables server")
	return persistErr
}

// acceptLoop hands accepted connections to the server loop
func (s *RealServer) acceptLoop(listener *transport.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if _, closed := err.(*transport.ListenerClosedError); !closed {
				logrus.WithFields(logrus.Fields{
					logfield.ErrorReason: err.Error(),
					logfield.Component:   ntServer,
					logfield.Event:       "ACCEPT",
				}).Errorf("stopped accepting clients")
			}
			return
		}
		s.commandChannel <- &sessionOpened{conn: conn}
	}
}

func (s *RealServer) handleSessionOpened(state *serverState, cmd *sessionOpened) {
	if state.isDestroyed {
		cmd.conn.Close()
		return
	}
	session := newClientSession(state.nextSessionID, cmd.conn)
	state.nextSessionID++
	state.sessions[session.id] = session
	go session.writeLoop()
	go session.readLoop(s.commandChannel, s.ClientIdleTimeout)

	logrus.WithFields(logrus.Fields{
		logfield.Component:     ntServer,
		logfield.Event:         "CLIENT-OPEN",
		logfield.RemoteAddress: session.remoteAddr().String(),
	}).Debugf("accepted connection")
}

func (s *RealServer) handleSessionClosed(state *serverState, cmd *sessionClosed) {
	session, exists := state.sessions[cmd.sessionID]
	if !exists {
		return
	}
	logrus.WithFields(logrus.Fields{
		logfield.ErrorReason:   cmd.reason.Error(),
		logfield.Component:     ntServer,
		logfield.Event:         "CLIENT-CLOSED",
		logfield.RemoteAddress: session.remoteAddr().String(),
		logfield.ClientName:    session.name,
	}).Infof("client disconnected")
	s.dropSession(state, session)
}

// dropSession forgets the session and closes its connection. Clients
// that finished the handshake are reported as disconnected.
func (s *RealServer) dropSession(state *serverState, session *clientSession) {
	delete(state.sessions, session.id)
	session.close()
	if session.phase == sessionActive {
		s.callbacks.NotifyConnection(callback.ClientDisconnected, session.remoteAddr())
	}
}

func (s *RealServer) handleGetAddr(state *serverState, cmd *getAddr) *getAddrReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &getAddrReply{err: statusErr}
	}
	return &getAddrReply{address: state.listener.Addr().String()}
}

func (s *RealServer) handleGetEntries(state *serverState, cmd *getEntries) *getEntriesReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &getEntriesReply{err: statusErr}
	}
	return &getEntriesReply{entries: state.table.Entries()}
}

func (s *RealServer) handleListEntries(state *serverState, cmd *listEntries) *listEntriesReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &listEntriesReply{err: statusErr}
	}
	entries := make([]entry.Entry, 0)
	state.table.Ascend(cmd.prefix, func(e entry.Entry) bool {
		entries = append(entries, e)
		return true
	})
	return &listEntriesReply{entries: entries}
}

func (s *RealServer) handleGetEntry(state *serverState, cmd *getEntry) *entryReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &entryReply{err: statusErr}
	}
	id := cmd.id
	if cmd.byName {
		found, exists := state.table.Lookup(cmd.name)
		if !exists {
			return &entryReply{err: &entry.EntryNotFoundError{Name: cmd.name}}
		}
		id = found
	}
	data, exists := state.table.Get(id)
	if !exists {
		return &entryReply{err: &entry.EntryNotFoundError{ID: id}}
	}
	return &entryReply{entry: entry.Entry{ID: id, EntryData: data}}
}

func (s *RealServer) handleGetClients(state *serverState, cmd *getClients) *getClientsReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &getClientsReply{err: statusErr}
	}
	clients := make([]ClientInfo, 0, len(state.sessions))
	for _, session := range state.sessions {
		clients = append(clients, ClientInfo{
			Name:          session.name,
			RemoteAddress: session.remoteAddr().String(),
			Handshaken:    session.phase == sessionActive,
			ConnectedAt:   session.connectedAt,
		})
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ConnectedAt.Before(clients[j].ConnectedAt)
	})
	return &getClientsReply{clients: clients}
}

// flushPersistentEntries writes all persistent entries if any of
// them changed since the last write
func (s *RealServer) flushPersistentEntries(state *serverState) error {
	if !state.persistDirty || s.EntryPersistence == nil {
		return nil
	}
	persistent := make([]entry.Entry, 0)
	state.table.Ascend("", func(e entry.Entry) bool {
		if e.IsPersistent() {
			persistent = append(persistent, e)
		}
		return true
	})
	if persistErr := s.EntryPersistence.PersistEntries(persistent); persistErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: persistErr.Error(),
			logfield.Component:   ntServer,
			logfield.Event:       "PERSIST",
		}).Errorf("error while persisting entries")
		return persistErr
	}
	state.persistDirty = false
	return nil
}

// checkOperationalStatus returns error if the server has not been
// started or is already destroyed
func (s *RealServer) checkOperationalStatus(state *serverState) error {
	if state.isDestroyed {
		return serverIsDestroyedError
	}
	if !state.isStarted {
		return serverNotStartedError
	}
	return nil
}
