package server

import (
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/transport"
	"github.com/su225/networktables/node/wire"
)

type serverCommand interface {
	isServerCommand() bool
}

type startServer struct {
	serverCommand
	errChan chan error
}

type destroyServer struct {
	serverCommand
	errChan chan error
}

type sessionOpened struct {
	serverCommand
	conn transport.PacketConn
}

type packetReceived struct {
	serverCommand
	sessionID uint64
	packet    wire.Packet
}

type sessionClosed struct {
	serverCommand
	sessionID uint64
	reason    error
}

type getAddr struct {
	serverCommand
	replyChan chan *getAddrReply
}

type getAddrReply struct {
	address string
	err     error
}

type getEntries struct {
	serverCommand
	replyChan chan *getEntriesReply
}

type getEntriesReply struct {
	entries map[uint16]entry.EntryData
	err     error
}

type listEntries struct {
	serverCommand
	prefix    string
	replyChan chan *listEntriesReply
}

type listEntriesReply struct {
	entries []entry.Entry
	err     error
}

type getEntry struct {
	serverCommand
	id        uint16
	name      string
	byName    bool
	replyChan chan *entryReply
}

type entryReply struct {
	entry entry.Entry
	err   error
}

type createEntry struct {
	serverCommand
	data      entry.EntryData
	procedure Procedure
	replyChan chan *entryReply
}

type updateEntry struct {
	serverCommand
	id        uint16
	value     entry.EntryValue
	replyChan chan *entryReply
}

type updateEntryFlags struct {
	serverCommand
	id        uint16
	flags     uint8
	replyChan chan *entryReply
}

type deleteEntry struct {
	serverCommand
	id        uint16
	replyChan chan *entryReply
}

type clearEntries struct {
	serverCommand
	errChan chan error
}

type getProcedure struct {
	serverCommand
	id        uint16
	replyChan chan *getProcedureReply
}

type getProcedureReply struct {
	procedure Procedure
	err       error
}

type getClients struct {
	serverCommand
	replyChan chan *getClientsReply
}

type getClientsReply struct {
	clients []ClientInfo
	err     error
}
