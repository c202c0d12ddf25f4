package rpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/common"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/rpc/ntpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

var adminRPCClient = "ADMIN-RPC-CLIENT"

var adminRPCClientIsNotStartedError = &common.ComponentHasNotStartedError{ComponentName: adminRPCClient}
var adminRPCClientIsDestroyedError = &common.ComponentIsDestroyedError{ComponentName: adminRPCClient}

// RealAdminRPCClient talks to the admin RPC service of a running
// server. The connection is established lazily on the first call
// and re-established after the server became unavailable.
type RealAdminRPCClient struct {
	// ServerAddress is host:port of the admin RPC server
	ServerAddress string

	// MaxConnectionRetryAttempts specify the maximum number of
	// times the client tries to connect to the server before
	// giving up.
	MaxConnectionRetryAttempts uint32

	// RPCTimeoutInMillis specifies RPC-timeout in milliseconds
	RPCTimeoutInMillis uint64

	commandChannel chan adminClientCommand
}

// NewRealAdminRPCClient creates a new admin client. It does not
// connect until the first call.
func NewRealAdminRPCClient(
	serverAddress string,
	maxConnRetryAttempts uint32,
	rpcTimeoutInMillis uint64,
) *RealAdminRPCClient {
	if maxConnRetryAttempts == 0 {
		maxConnRetryAttempts = 1
	}
	c := &RealAdminRPCClient{
		ServerAddress:              serverAddress,
		MaxConnectionRetryAttempts: maxConnRetryAttempts,
		RPCTimeoutInMillis:         rpcTimeoutInMillis,
		commandChannel:             make(chan adminClientCommand),
	}
	go c.loop()
	return c
}

// Start makes the client operational. This operation is idempotent.
func (c *RealAdminRPCClient) Start() error {
	errChan := make(chan error)
	c.commandChannel <- &startClient{errChan: errChan}
	return <-errChan
}

// Destroy closes the connection. The client cannot be used afterwards.
func (c *RealAdminRPCClient) Destroy() error {
	errChan := make(chan error)
	c.commandChannel <- &destroyClient{errChan: errChan}
	return <-errChan
}

// ListEntries returns the entries whose name starts with prefix
func (c *RealAdminRPCClient) ListEntries(prefix string) ([]entry.Entry, error) {
	replyChan := make(chan *clientListEntriesReply)
	c.commandChannel <- &clientListEntries{prefix: prefix, replyChan: replyChan}
	reply := <-replyChan
	if reply.listErr != nil {
		return nil, reply.listErr
	}
	entries := make([]entry.Entry, 0, len(reply.entries))
	for _, pbEntry := range reply.entries {
		e, convErr := ConvertProtobufToEntry(pbEntry)
		if convErr != nil {
			return nil, convErr
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// PutEntry creates the entry or, if the name exists, updates its
// value and flags. It returns the ID and whether it was created.
func (c *RealAdminRPCClient) PutEntry(data entry.EntryData) (uint16, bool, error) {
	pbEntry, convErr := ConvertEntryToProtobuf(entry.Entry{ID: entry.NewEntryID, EntryData: data})
	if convErr != nil {
		return 0, false, convErr
	}
	replyChan := make(chan *clientPutEntryReply)
	c.commandChannel <- &clientPutEntry{entry: pbEntry, replyChan: replyChan}
	reply := <-replyChan
	return reply.id, reply.created, reply.putErr
}

// DeleteEntry removes the entry with the given ID
func (c *RealAdminRPCClient) DeleteEntry(id uint16) error {
	errChan := make(chan error)
	c.commandChannel <- &clientDeleteEntry{id: id, errChan: errChan}
	return <-errChan
}

// ClearEntries removes every entry
func (c *RealAdminRPCClient) ClearEntries() error {
	errChan := make(chan error)
	c.commandChannel <- &clientDeleteEntry{all: true, errChan: errChan}
	return <-errChan
}

// CallProcedure runs the procedure behind an rpc entry
func (c *RealAdminRPCClient) CallProcedure(id uint16, parameter []byte) ([]byte, error) {
	replyChan := make(chan *clientCallProcedureReply)
	c.commandChannel <- &clientCallProcedure{id: id, parameter: parameter, replyChan: replyChan}
	reply := <-replyChan
	return reply.result, reply.callErr
}

// Reconnect drops the cached connection and dials again
func (c *RealAdminRPCClient) Reconnect() error {
	errChan := make(chan error)
	c.commandChannel <- &clientReconnect{errChan: errChan}
	return <-errChan
}

type adminRPCClientState struct {
	isStarted, isDestroyed bool
	*grpc.ClientConn
}

// loop handles the commands one at a time so that the cached
// connection is only touched by this goroutine
func (c *RealAdminRPCClient) loop() {
	state := &adminRPCClientState{
		isStarted:   false,
		isDestroyed: false,
		ClientConn:  nil,
	}
	for {
		cmd := <-c.commandChannel
		switch cc := cmd.(type) {
		case *startClient:
			cc.errChan <- c.handleStartClient(state, cc)
		case *destroyClient:
			cc.errChan <- c.handleDestroyClient(state, cc)
		case *clientListEntries:
			cc.replyChan <- c.handleListEntries(state, cc)
		case *clientPutEntry:
			cc.replyChan <- c.handlePutEntry(state, cc)
		case *clientDeleteEntry:
			cc.errChan <- c.handleDeleteEntry(state, cc)
		case *clientCallProcedure:
			cc.replyChan <- c.handleCallProcedure(state, cc)
		case *clientReconnect:
			cc.errChan <- c.handleReconnect(state, cc)
		}
	}
}

func (c *RealAdminRPCClient) handleStartClient(state *adminRPCClientState, cmd *startClient) error {
	if state.isDestroyed {
		return adminRPCClientIsDestroyedError
	}
	state.isStarted = true
	return nil
}

func (c *RealAdminRPCClient) handleDestroyClient(state *adminRPCClientState, cmd *destroyClient) error {
	if state.isDestroyed {
		return nil
	}
	state.isDestroyed = true
	if state.ClientConn != nil {
		return state.ClientConn.Close()
	}
	return nil
}

func (c *RealAdminRPCClient) handleListEntries(state *adminRPCClientState, cmd *clientListEntries) *clientListEntriesReply {
	rpcClient, clientErr := c.getRPCClient(state)
	if clientErr != nil {
		return &clientListEntriesReply{listErr: clientErr}
	}
	rpcContext, rpcCancelFunc := c.getRPCCallContext()
	defer rpcCancelFunc()
	reply, rpcErr := rpcClient.ListEntries(rpcContext, &ntpb.ListEntriesRequest{Prefix: cmd.prefix})
	if rpcErr != nil {
		return &clientListEntriesReply{listErr: c.checkRPCError(state, rpcErr)}
	}
	return &clientListEntriesReply{entries: reply.GetEntries()}
}

func (c *RealAdminRPCClient) handlePutEntry(state *adminRPCClientState, cmd *clientPutEntry) *clientPutEntryReply {
	rpcClient, clientErr := c.getRPCClient(state)
	if clientErr != nil {
		return &clientPutEntryReply{putErr: clientErr}
	}
	rpcContext, rpcCancelFunc := c.getRPCCallContext()
	defer rpcCancelFunc()
	reply, rpcErr := rpcClient.PutEntry(rpcContext, &ntpb.PutEntryRequest{Entry: cmd.entry})
	if rpcErr != nil {
		return &clientPutEntryReply{putErr: c.checkRPCError(state, rpcErr)}
	}
	return &clientPutEntryReply{id: uint16(reply.GetId()), created: reply.GetCreated()}
}

func (c *RealAdminRPCClient) handleDeleteEntry(state *adminRPCClientState, cmd *clientDeleteEntry) error {
	rpcClient, clientErr := c.getRPCClient(state)
	if clientErr != nil {
		return clientErr
	}
	rpcContext, rpcCancelFunc := c.getRPCCallContext()
	defer rpcCancelFunc()
	_, rpcErr := rpcClient.DeleteEntry(rpcContext, &ntpb.DeleteEntryRequest{Id: uint32(cmd.id), All: cmd.all})
	if rpcErr != nil {
		return c.checkRPCError(state, rpcErr)
	}
	return nil
}

func (c *RealAdminRPCClient) handleCallProcedure(state *adminRPCClientState, cmd *clientCallProcedure) *clientCallProcedureReply {
	rpcClient, clientErr := c.getRPCClient(state)
	if clientErr != nil {
		return &clientCallProcedureReply{callErr: clientErr}
	}
	rpcContext, rpcCancelFunc := c.getRPCCallContext()
	defer rpcCancelFunc()
	reply, rpcErr := rpcClient.CallProcedure(rpcContext, &ntpb.CallProcedureRequest{
		Id:        uint32(cmd.id),
		Parameter: cmd.parameter,
	})
	if rpcErr != nil {
		return &clientCallProcedureReply{callErr: c.checkRPCError(state, rpcErr)}
	}
	return &clientCallProcedureReply{result: reply.GetResult()}
}

// handleReconnect attempts to reobtain the connection to the server
func (c *RealAdminRPCClient) handleReconnect(state *adminRPCClientState, cmd *clientReconnect) error {
	if statusErr := c.checkOperationalStatus(state); statusErr != nil {
		return statusErr
	}
	logrus.WithFields(logrus.Fields{
		logfield.Component: adminRPCClient,
		logfield.Event:     "RECONNECT",
	}).Infof("attempting to reconnect to %s", c.ServerAddress)
	c.dropConnection(state)
	_, connErr := c.getConnection(state)
	return connErr
}

// checkRPCError drops the cached connection when the server is
// unavailable so that the next call dials again
func (c *RealAdminRPCClient) checkRPCError(state *adminRPCClientState, rpcErr error) error {
	if status.Code(rpcErr) == codes.Unavailable {
		c.dropConnection(state)
	}
	return rpcErr
}

func (c *RealAdminRPCClient) dropConnection(state *adminRPCClientState) {
	if state.ClientConn != nil {
		state.ClientConn.Close()
		state.ClientConn = nil
	}
}

// getRPCClient returns a new client RPC stub.
func (c *RealAdminRPCClient) getRPCClient(state *adminRPCClientState) (ntpb.EntryAdminClient, error) {
	if statusErr := c.checkOperationalStatus(state); statusErr != nil {
		return nil, statusErr
	}
	conn, err := c.getConnection(state)
	if err != nil {
		return nil, err
	}
	return ntpb.NewEntryAdminClient(conn), nil
}

// getConnection tries to obtain connection to the server if it does not exist and caches it.
// If the connection is already there in the cache then it is returned
func (c *RealAdminRPCClient) getConnection(state *adminRPCClientState) (*grpc.ClientConn, error) {
	if state.ClientConn != nil {
		return state.ClientConn, nil
	}
	var (
		connErr  error
		grpcConn *grpc.ClientConn
	)
	for attempt := uint32(1); attempt <= c.MaxConnectionRetryAttempts; attempt++ {
		dialContext, dialCancelFunc := c.getRPCCallContext()
		grpcConn, connErr = grpc.DialContext(dialContext, c.ServerAddress,
			grpc.WithInsecure(),
			grpc.WithBlock(),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
		)
		dialCancelFunc()
		if connErr == nil {
			break
		}
		logrus.WithFields(logrus.Fields{
			logfield.Component: adminRPCClient,
			logfield.Event:     "GET-CONN-DIAL",
		}).Warnf("attempt #%d to obtain connection to %s failed", attempt, c.ServerAddress)
		if attempt < c.MaxConnectionRetryAttempts {
			<-time.After(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	if connErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: connErr.Error(),
			logfield.Component:   adminRPCClient,
			logfield.Event:       "GET-CONN",
		}).Errorf("cannot obtain connection to %s", c.ServerAddress)
		return nil, connErr
	}
	state.ClientConn = grpcConn
	return state.ClientConn, nil
}

// getRPCCallContext returns the context for the RPC call containing cancellation,
// deadline and other information needed to make RPC call.
func (c *RealAdminRPCClient) getRPCCallContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(c.RPCTimeoutInMillis)*time.Millisecond)
}

// checkOperationalStatus returns an error if the client is not
// started or is already destroyed
func (c *RealAdminRPCClient) checkOperationalStatus(state *adminRPCClientState) error {
	if state.isDestroyed {
		return adminRPCClientIsDestroyedError
	}
	if !state.isStarted {
		return adminRPCClientIsNotStartedError
	}
	return nil
}
