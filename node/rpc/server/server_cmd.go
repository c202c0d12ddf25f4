package server

import (
	"github.com/su225/networktables/node/rpc/ntpb"
)

type adminServerCommand interface {
	isAdminServerCommand() bool
}

type startServer struct {
	adminServerCommand
	rpcPort uint32
	errChan chan error
}

type destroyServer struct {
	adminServerCommand
	errChan chan error
}

type getAddress struct {
	adminServerCommand
	replyChan chan *getAddressReply
}

type getAddressReply struct {
	address string
	addrErr error
}

type checkStatus struct {
	adminServerCommand
	errChan chan error
}

type listEntriesRequest struct {
	adminServerCommand
	*ntpb.ListEntriesRequest
	resChan chan *listEntriesReply
}

type listEntriesReply struct {
	*ntpb.ListEntriesReply
	listError error
}

type putEntryRequest struct {
	adminServerCommand
	*ntpb.PutEntryRequest
	resChan chan *putEntryReply
}

type putEntryReply struct {
	*ntpb.PutEntryReply
	putError error
}

type deleteEntryRequest struct {
	adminServerCommand
	*ntpb.DeleteEntryRequest
	errChan chan error
}
