package rpc

import "github.com/su225/networktables/node/rpc/ntpb"

type adminClientCommand interface {
	isAdminClientCommand() bool
}

type startClient struct {
	adminClientCommand
	errChan chan error
}

type destroyClient struct {
	adminClientCommand
	errChan chan error
}

type clientListEntries struct {
	adminClientCommand
	prefix    string
	replyChan chan *clientListEntriesReply
}

type clientListEntriesReply struct {
	entries []*ntpb.Entry
	listErr error
}

type clientPutEntry struct {
	adminClientCommand
	entry     *ntpb.Entry
	replyChan chan *clientPutEntryReply
}

type clientPutEntryReply struct {
	id      uint16
	created bool
	putErr  error
}

type clientDeleteEntry struct {
	adminClientCommand
	id      uint16
	all     bool
	errChan chan error
}

type clientCallProcedure struct {
	adminClientCommand
	id        uint16
	parameter []byte
	replyChan chan *clientCallProcedureReply
}

type clientCallProcedureReply struct {
	result  []byte
	callErr error
}

type clientReconnect struct {
	adminClientCommand
	errChan chan error
}
