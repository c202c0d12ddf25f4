// Copyright (c) 2019 Suchith J N

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:

// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package server

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	. "github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/common"
	"github.com/su225/networktables/node/datastore"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/rpc"
	"github.com/su225/networktables/node/rpc/ntpb"
	ntserver "github.com/su225/networktables/node/server"
	"github.com/su225/networktables/node/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const rpcServer = "ADMIN-RPC-SERVER"

var rpcServerNotStartedError = &common.ComponentHasNotStartedError{ComponentName: rpcServer}
var rpcServerIsDestroyedError = &common.ComponentIsDestroyedError{ComponentName: rpcServer}

// RealAdminRPCServer serves the entry administration API over gRPC.
// Every request is applied to the data store, so changes reach the
// connected NetworkTables clients like local server changes do.
type RealAdminRPCServer struct {
	// RPCPort is the port on which the admin server listens. It
	// must be different from the NetworkTables and API ports
	RPCPort uint32

	// DataStore holds the entries being administered
	datastore.DataStore

	// commandChannel is used to provide various commands. This
	// is where operations actually happen
	commandChannel chan adminServerCommand
}

// NewRealAdminRPCServer creates a new instance of RealAdminRPCServer.
// But this method does not start the server. In other words, server won't be
// listening to incoming messages at the given port.
func NewRealAdminRPCServer(rpcPort uint32, dataStore datastore.DataStore) *RealAdminRPCServer {
	rpcs := &RealAdminRPCServer{
		RPCPort:        rpcPort,
		DataStore:      dataStore,
		commandChannel: make(chan adminServerCommand),
	}
	go rpcs.loop()
	return rpcs
}

// Start brings up the server so that it listens at the port specified by
// RPCPort and starts accepting connections and incoming protobuf messages.
func (rpcs *RealAdminRPCServer) Start() error {
	startupErrChan := make(chan error)
	rpcs.commandChannel <- &startServer{
		rpcPort: rpcs.RPCPort,
		errChan: startupErrChan,
	}
	return <-startupErrChan
}

// Destroy brings down the server. The component becomes
// non-operational and this function is irreversible.
func (rpcs *RealAdminRPCServer) Destroy() error {
	destroyErrChan := make(chan error)
	rpcs.commandChannel <- &destroyServer{
		errChan: destroyErrChan,
	}
	return <-destroyErrChan
}

// Addr returns the address the server listens on
func (rpcs *RealAdminRPCServer) Addr() (string, error) {
	replyChan := make(chan *getAddressReply)
	rpcs.commandChannel <- &getAddress{replyChan: replyChan}
	reply := <-replyChan
	return reply.address, reply.addrErr
}

// ListEntries returns the entries whose name starts with the
// requested prefix in name order
func (rpcs *RealAdminRPCServer) ListEntries(ctx context.Context, request *ntpb.ListEntriesRequest) (*ntpb.ListEntriesReply, error) {
	resChan := make(chan *listEntriesReply)
	rpcs.commandChannel <- &listEntriesRequest{
		ListEntriesRequest: request,
		resChan:            resChan,
	}
	result := <-resChan
	return result.ListEntriesReply, toStatusError(result.listError)
}

// PutEntry creates the entry if its name is not taken. Otherwise the
// value and the flags of the existing entry are replaced.
func (rpcs *RealAdminRPCServer) PutEntry(ctx context.Context, request *ntpb.PutEntryRequest) (*ntpb.PutEntryReply, error) {
	resChan := make(chan *putEntryReply)
	rpcs.commandChannel <- &putEntryRequest{
		PutEntryRequest: request,
		resChan:         resChan,
	}
	result := <-resChan
	return result.PutEntryReply, toStatusError(result.putError)
}

// DeleteEntry removes one entry, or all of them when requested
func (rpcs *RealAdminRPCServer) DeleteEntry(ctx context.Context, request *ntpb.DeleteEntryRequest) (*ntpb.DeleteEntryReply, error) {
	errChan := make(chan error)
	rpcs.commandChannel <- &deleteEntryRequest{
		DeleteEntryRequest: request,
		errChan:            errChan,
	}
	if deleteErr := <-errChan; deleteErr != nil {
		return nil, toStatusError(deleteErr)
	}
	return &ntpb.DeleteEntryReply{}, nil
}

// CallProcedure runs a procedure registered on the server. It does
// not go through the loop since procedures may take a while.
func (rpcs *RealAdminRPCServer) CallProcedure(ctx context.Context, request *ntpb.CallProcedureRequest) (*ntpb.CallProcedureReply, error) {
	errChan := make(chan error)
	rpcs.commandChannel <- &checkStatus{errChan: errChan}
	if statusErr := <-errChan; statusErr != nil {
		return nil, toStatusError(statusErr)
	}
	if request.GetId() > 0xFFFF {
		return nil, toStatusError(&rpc.FieldOutOfRangeError{})
	}
	result, callErr := rpcs.DataStore.CallProcedure(ctx, uint16(request.GetId()), request.GetParameter())
	if callErr != nil {
		return nil, toStatusError(callErr)
	}
	return &ntpb.CallProcedureReply{Result: result}, nil
}

type adminServerState struct {
	isStarted   bool
	isDestroyed bool
	server      *grpc.Server
	listener    net.Listener
}

// loop listens to various commands and returns results if necessary. If the component
// is destroyed then all commands are no-op
func (rpcs *RealAdminRPCServer) loop() {
	state := &adminServerState{
		isStarted:   false,
		isDestroyed: false,
		server:      nil,
	}
	for {
		cmd := <-rpcs.commandChannel
		switch serverCmd := cmd.(type) {
		case *startServer:
			serverCmd.errChan <- rpcs.handleStartServer(state, serverCmd)
		case *destroyServer:
			serverCmd.errChan <- rpcs.handleDestroyServer(state, serverCmd)
		case *getAddress:
			serverCmd.replyChan <- rpcs.handleGetAddress(state, serverCmd)
		case *checkStatus:
			serverCmd.errChan <- rpcs.checkOperationalStatus(state)
		case *listEntriesRequest:
			serverCmd.resChan <- rpcs.handleListEntries(state, serverCmd)
		case *putEntryRequest:
			serverCmd.resChan <- rpcs.handlePutEntry(state, serverCmd)
		case *deleteEntryRequest:
			serverCmd.errChan <- rpcs.handleDeleteEntry(state, serverCmd)
		}
	}
}

// handleStartServer starts the server if it not destroyed or already started. If there is an error while
// starting then it is returned. Otherwise nil is returned. This operation is idempotent.
func (rpcs *RealAdminRPCServer) handleStartServer(state *adminServerState, cmd *startServer) error {
	if state.isDestroyed {
		return rpcServerIsDestroyedError
	}
	if state.isStarted {
		return nil
	}

	rpcServerAddress := fmt.Sprintf(":%d", cmd.rpcPort)
	rpcListener, rpcListenerErr := net.Listen("tcp", rpcServerAddress)
	if rpcListenerErr != nil {
		return rpcListenerErr
	}

	state.server = grpc.NewServer()
	ntpb.RegisterEntryAdminServer(state.server, rpcs)
	state.listener = rpcListener
	go state.server.Serve(rpcListener)

	state.isStarted = true
	logrus.WithFields(logrus.Fields{
		Component: rpcServer,
		Event:     "START",
	}).Infof("starting admin RPC server at %s", rpcListener.Addr().String())
	return nil
}

// handleDestroyServer gracefully shuts down the RPC server if it is not already destroyed.
// If it is already destroyed then this is a no-op. This operation is idempotent
func (rpcs *RealAdminRPCServer) handleDestroyServer(state *adminServerState, cmd *destroyServer) error {
	if state.isDestroyed {
		return nil
	}
	state.isDestroyed = true
	if state.server != nil {
		// Requests blocked on the loop would keep GracefulStop waiting
		go state.server.GracefulStop()
	}
	logrus.WithFields(logrus.Fields{
		Component: rpcServer,
		Event:     "DESTROY",
	}).Infof("destroyed admin RPC server")
	return nil
}

func (rpcs *RealAdminRPCServer) handleGetAddress(state *adminServerState, cmd *getAddress) *getAddressReply {
	if statusErr := rpcs.checkOperationalStatus(state); statusErr != nil {
		return &getAddressReply{addrErr: statusErr}
	}
	return &getAddressReply{address: state.listener.Addr().String()}
}

func (rpcs *RealAdminRPCServer) handleListEntries(state *adminServerState, cmd *listEntriesRequest) *listEntriesReply {
	if statusErr := rpcs.checkOperationalStatus(state); statusErr != nil {
		return &listEntriesReply{listError: statusErr}
	}
	entries, listErr := rpcs.DataStore.ListEntries(cmd.GetPrefix())
	if listErr != nil {
		return &listEntriesReply{listError: listErr}
	}
	reply := &ntpb.ListEntriesReply{Entries: make([]*ntpb.Entry, 0, len(entries))}
	for _, e := range entries {
		pbEntry, convErr := rpc.ConvertEntryToProtobuf(e)
		if convErr != nil {
			return &listEntriesReply{listError: convErr}
		}
		reply.Entries = append(reply.Entries, pbEntry)
	}
	logrus.WithFields(logrus.Fields{
		Component: rpcServer,
		Event:     "LIST-ENTRIES",
	}).Debugf("listed %d entries with prefix %q", len(entries), cmd.GetPrefix())
	return &listEntriesReply{ListEntriesReply: reply}
}

func (rpcs *RealAdminRPCServer) handlePutEntry(state *adminServerState, cmd *putEntryRequest) *putEntryReply {
	if statusErr := rpcs.checkOperationalStatus(state); statusErr != nil {
		return &putEntryReply{putError: statusErr}
	}
	requested, convErr := rpc.ConvertProtobufToEntry(cmd.GetEntry())
	if convErr != nil {
		return &putEntryReply{putError: convErr}
	}
	existing, lookupErr := rpcs.DataStore.GetEntryByName(requested.Name)
	if lookupErr != nil {
		if _, notFound := errors.Cause(lookupErr).(*entry.EntryNotFoundError); !notFound {
			return &putEntryReply{putError: lookupErr}
		}
		id, createErr := rpcs.DataStore.CreateEntry(requested.EntryData)
		if createErr != nil {
			return &putEntryReply{putError: createErr}
		}
		logrus.WithFields(logrus.Fields{
			Component: rpcServer,
			Event:     "PUT-ENTRY",
			EntryName: requested.Name,
			EntryID:   id,
		}).Debugf("created entry")
		return &putEntryReply{PutEntryReply: &ntpb.PutEntryReply{Id: uint32(id), Created: true}}
	}

	if existing.EntryType() != requested.EntryType() {
		return &putEntryReply{putError: &entry.TypeMismatchError{
			ID:       existing.ID,
			Expected: existing.EntryType(),
			Actual:   requested.EntryType(),
		}}
	}
	if !existing.Value.Equal(requested.Value) {
		if _, updateErr := rpcs.DataStore.UpdateEntry(existing.ID, requested.Value); updateErr != nil {
			return &putEntryReply{putError: updateErr}
		}
	}
	if existing.Flags != requested.Flags {
		if _, flagsErr := rpcs.DataStore.UpdateEntryFlags(existing.ID, requested.Flags); flagsErr != nil {
			return &putEntryReply{putError: flagsErr}
		}
	}
	return &putEntryReply{PutEntryReply: &ntpb.PutEntryReply{Id: uint32(existing.ID), Created: false}}
}

func (rpcs *RealAdminRPCServer) handleDeleteEntry(state *adminServerState, cmd *deleteEntryRequest) error {
	if statusErr := rpcs.checkOperationalStatus(state); statusErr != nil {
		return statusErr
	}
	if cmd.GetAll() {
		return rpcs.DataStore.ClearEntries()
	}
	if cmd.GetId() > 0xFFFF {
		return &entry.EntryNotFoundError{}
	}
	return rpcs.DataStore.DeleteEntry(uint16(cmd.GetId()))
}

func (rpcs *RealAdminRPCServer) checkOperationalStatus(state *adminServerState) error {
	if state.isDestroyed {
		return rpcServerIsDestroyedError
	}
	if !state.isStarted {
		return rpcServerNotStartedError
	}
	return nil
}

// toStatusError maps errors of the data store onto gRPC status codes
func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch errors.Cause(err).(type) {
	case *entry.EntryNotFoundError, *ntserver.ProcedureNotFoundError:
		code = codes.NotFound
	case *entry.EntryAlreadyExistsError:
		code = codes.AlreadyExists
	case *entry.TypeMismatchError, *entry.InvalidEntryTypeError, *entry.InvalidValueError,
		*datastore.InvalidEntryDataError, *rpc.FieldOutOfRangeError,
		*rpc.TrailingValueBytesError, *rpc.MissingEntryError,
		*wire.InvalidEntryTypeError, *wire.InvalidRPCDefinitionError,
		*wire.LengthTooLargeError, *wire.Uleb128OverflowError:
		code = codes.InvalidArgument
	case *entry.TableFullError:
		code = codes.ResourceExhausted
	case *common.ComponentHasNotStartedError:
		code = codes.FailedPrecondition
	case *common.ComponentIsDestroyedError:
		code = codes.Unavailable
	default:
		switch errors.Cause(err) {
		case context.DeadlineExceeded:
			code = codes.DeadlineExceeded
		case context.Canceled:
			code = codes.Canceled
		case io.ErrUnexpectedEOF:
			code = codes.InvalidArgument
		default:
			code = codes.Internal
		}
	}
	return status.Error(code, err.Error())
}
