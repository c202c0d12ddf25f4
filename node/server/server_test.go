package server

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/su225/networktables/node/callback"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/persist"
	"github.com/su225/networktables/node/transport"
	"github.com/su225/networktables/node/wire"
)

const testTimeout = 2 * time.Second

func startTestServer(t *testing.T, entryPersistence persist.EntryPersistence) (*RealServer, string) {
	srv := NewRealServer("127.0.0.1:0", "test-server", 0, 0, 20*time.Millisecond, entryPersistence)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Destroy() })
	addr, err := srv.Addr()
	require.NoError(t, err)
	return srv, addr
}

type rawClient struct {
	t    *testing.T
	conn transport.PacketConn
}

func dialRaw(t *testing.T, target string) *rawClient {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	conn, err := transport.Dial(ctx, target, testTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &rawClient{t: t, conn: conn}
}

func (c *rawClient) send(packets ...wire.Packet) {
	require.NoError(c.t, c.conn.WritePackets(packets...))
}

func (c *rawClient) next() wire.Packet {
	c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	packet, err := c.conn.ReadPacket()
	require.NoError(c.t, err)
	return packet
}

// handshake completes the client side of the handshake and returns
// the server hello and the announced entries
func (c *rawClient) handshake(name string) (*wire.ServerHello, []*wire.EntryAssignment) {
	c.send(&wire.ClientHello{Revision: wire.ProtocolRevision, Name: name})
	hello, isHello := c.next().(*wire.ServerHello)
	require.True(c.t, isHello)
	var assignments []*wire.EntryAssignment
	for {
		packet := c.next()
		if _, done := packet.(*wire.ServerHelloComplete); done {
			break
		}
		assignment, isAssignment := packet.(*wire.EntryAssignment)
		require.True(c.t, isAssignment, "unexpected packet %T during handshake", packet)
		assignments = append(assignments, assignment)
	}
	c.send(&wire.ClientHelloComplete{})
	return hello, assignments
}

func connectedClients(srv *RealServer, count int) func() bool {
	return func() bool {
		clients, err := srv.Clients()
		if err != nil || len(clients) != count {
			return false
		}
		for _, client := range clients {
			if !client.Handshaken {
				return false
			}
		}
		return true
	}
}

func TestOperationsBeforeStartFail(t *testing.T) {
	srv := NewRealServer("127.0.0.1:0", "test-server", 0, 0, 0, nil)
	_, err := srv.CreateEntry(entry.NewEntryData("/a", 0, entry.BooleanValue(true)))
	assert.Equal(t, serverNotStartedError, err)
	require.NoError(t, srv.Destroy())
	assert.Equal(t, serverIsDestroyedError, srv.Start())
}

func TestHandshakeSendsTableInNameOrder(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	_, err := srv.CreateEntry(entry.NewEntryData("/b", 0, entry.DoubleValue(2)))
	require.NoError(t, err)
	_, err = srv.CreateEntry(entry.NewEntryData("/a", entry.FlagPersistent, entry.StringValue("x")))
	require.NoError(t, err)

	client := dialRaw(t, addr)
	hello, assignments := client.handshake("robot")
	assert.Equal(t, "test-server", hello.Name)
	assert.Zero(t, hello.Flags&wire.ServerHelloFlagClientSeen)
	require.Len(t, assignments, 2)
	assert.Equal(t, "/a", assignments[0].Name)
	assert.Equal(t, entry.FlagPersistent, assignments[0].Flags)
	assert.Equal(t, "/b", assignments[1].Name)
	assert.Equal(t, entry.DoubleValue(2), assignments[1].Value)
	require.Eventually(t, connectedClients(srv, 1), testTimeout, 10*time.Millisecond)
}

func TestReturningClientIsFlaggedAsSeen(t *testing.T) {
	_, addr := startTestServer(t, nil)
	first := dialRaw(t, addr)
	first.handshake("robot")
	first.conn.Close()

	second := dialRaw(t, "ws://"+addr)
	hello, _ := second.handshake("robot")
	assert.NotZero(t, hello.Flags&wire.ServerHelloFlagClientSeen)
}

func TestWrongRevisionIsRejected(t *testing.T) {
	_, addr := startTestServer(t, nil)
	client := dialRaw(t, addr)
	client.send(&wire.ClientHello{Revision: 0x0200, Name: "old"})
	unsupported, isUnsupported := client.next().(*wire.ProtocolVersionUnsupported)
	require.True(t, isUnsupported)
	assert.Equal(t, wire.ProtocolRevision, unsupported.Revision)

	client.conn.SetReadDeadline(time.Now().Add(testTimeout))
	_, err := client.conn.ReadPacket()
	assert.Error(t, err)
}

func TestPacketBeforeHelloClosesConnection(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	client := dialRaw(t, addr)
	client.send(&wire.EntryDelete{ID: 1})
	client.conn.SetReadDeadline(time.Now().Add(testTimeout))
	_, err := client.conn.ReadPacket()
	assert.Error(t, err)
	require.Eventually(t, connectedClients(srv, 0), testTimeout, 10*time.Millisecond)
}

func TestClientCreationIsBroadcastToEveryone(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	creator := dialRaw(t, addr)
	creator.handshake("creator")
	observer := dialRaw(t, "ws://"+addr)
	observer.handshake("observer")

	creator.send(&wire.EntryAssignment{
		Name:   "/ws_test",
		ID:     entry.NewEntryID,
		Seqnum: 1,
		Value:  entry.DoubleValue(1.0),
	})
	for _, client := range []*rawClient{creator, observer} {
		assignment, isAssignment := client.next().(*wire.EntryAssignment)
		require.True(t, isAssignment)
		assert.Equal(t, "/ws_test", assignment.Name)
		assert.Equal(t, uint16(0), assignment.ID)
		assert.Equal(t, entry.DoubleValue(1.0), assignment.Value)
	}

	stored, err := srv.LookupEntry("/ws_test")
	require.NoError(t, err)
	assert.Equal(t, uint16(0), stored.ID)
}

func TestDuplicateCreationResolvesToExistingEntry(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	id, err := srv.CreateEntry(entry.NewEntryData("/speed", 0, entry.DoubleValue(1)))
	require.NoError(t, err)

	client := dialRaw(t, addr)
	client.handshake("robot")
	client.send(&wire.EntryAssignment{Name: "/speed", ID: entry.NewEntryID, Seqnum: 1, Value: entry.DoubleValue(5)})
	assignment, isAssignment := client.next().(*wire.EntryAssignment)
	require.True(t, isAssignment)
	assert.Equal(t, id, assignment.ID)
	assert.Equal(t, entry.DoubleValue(5), assignment.Value)
	assert.Equal(t, uint16(2), assignment.Seqnum)
}

func TestUpdatesAreForwardedExceptToTheSender(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	id, err := srv.CreateEntry(entry.NewEntryData("/speed", 0, entry.DoubleValue(1)))
	require.NoError(t, err)

	sender := dialRaw(t, addr)
	sender.handshake("sender")
	receiver := dialRaw(t, addr)
	receiver.handshake("receiver")
	require.Eventually(t, connectedClients(srv, 2), testTimeout, 10*time.Millisecond)

	sender.send(&wire.EntryUpdate{ID: id, Seqnum: 2, Value: entry.DoubleValue(3)})
	update, isUpdate := receiver.next().(*wire.EntryUpdate)
	require.True(t, isUpdate)
	assert.Equal(t, uint16(2), update.Seqnum)
	assert.Equal(t, entry.DoubleValue(3), update.Value)

	// stale and mistyped updates are dropped
	sender.send(
		&wire.EntryUpdate{ID: id, Seqnum: 2, Value: entry.DoubleValue(4)},
		&wire.EntryUpdate{ID: id, Seqnum: 3, Value: entry.StringValue("fast")},
		&wire.EntryFlagsUpdate{ID: id, Flags: entry.FlagPersistent},
	)
	flags, isFlags := receiver.next().(*wire.EntryFlagsUpdate)
	require.True(t, isFlags)
	assert.Equal(t, entry.FlagPersistent, flags.Flags)

	stored, err := srv.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, entry.DoubleValue(3), stored.Value)
	assert.True(t, stored.IsPersistent())
}

func TestLocalChangesReachClients(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	client := dialRaw(t, addr)
	client.handshake("robot")
	require.Eventually(t, connectedClients(srv, 1), testTimeout, 10*time.Millisecond)

	id, err := srv.CreateEntry(entry.NewEntryData("/names", 0, entry.StringArrayValue([]string{"a"})))
	require.NoError(t, err)
	_, isAssignment := client.next().(*wire.EntryAssignment)
	require.True(t, isAssignment)

	updated, err := srv.UpdateEntry(id, entry.StringArrayValue([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, uint16(2), updated.Seqnum)
	update, isUpdate := client.next().(*wire.EntryUpdate)
	require.True(t, isUpdate)
	assert.Equal(t, []string{"a", "b"}, update.Value.StringArray)

	_, err = srv.UpdateEntry(id, entry.BooleanValue(true))
	assert.IsType(t, &entry.TypeMismatchError{}, err)

	require.NoError(t, srv.DeleteEntry(id))
	deleted, isDelete := client.next().(*wire.EntryDelete)
	require.True(t, isDelete)
	assert.Equal(t, id, deleted.ID)

	assert.IsType(t, &entry.EntryNotFoundError{}, srv.DeleteEntry(id))
}

func TestClearAllRequiresMagic(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	_, err := srv.CreateEntry(entry.NewEntryData("/a", 0, entry.BooleanValue(true)))
	require.NoError(t, err)
	client := dialRaw(t, addr)
	client.handshake("robot")

	client.send(&wire.ClearAllEntries{Magic: 1234})
	require.Never(t, func() bool {
		entries, _ := srv.Entries()
		return len(entries) == 0
	}, 100*time.Millisecond, 10*time.Millisecond)

	client.send(wire.NewClearAllEntries())
	require.Eventually(t, func() bool {
		entries, _ := srv.Entries()
		return len(entries) == 0
	}, testTimeout, 10*time.Millisecond)
}

func TestRPCExecution(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	echoID, err := srv.CreateRPC("/rpc/echo", func(parameter []byte) []byte {
		return bytes.ToUpper(parameter)
	})
	require.NoError(t, err)
	panicID, err := srv.CreateRPC("/rpc/panic", func(parameter []byte) []byte {
		panic("boom")
	})
	require.NoError(t, err)

	client := dialRaw(t, addr)
	_, assignments := client.handshake("robot")
	require.Len(t, assignments, 2)
	assert.Equal(t, entry.TypeRPC, assignments[0].Value.Type)

	client.send(&wire.RPCExecute{ID: echoID, UniqueID: 7, Parameter: []byte("hi")})
	response, isResponse := client.next().(*wire.RPCResponse)
	require.True(t, isResponse)
	assert.Equal(t, uint16(7), response.UniqueID)
	assert.Equal(t, []byte("HI"), response.Result)

	client.send(&wire.RPCExecute{ID: panicID, UniqueID: 8})
	response, isResponse = client.next().(*wire.RPCResponse)
	require.True(t, isResponse)
	assert.Equal(t, uint16(8), response.UniqueID)
	assert.Empty(t, response.Result)

	result, err := srv.CallProcedure(context.Background(), echoID, []byte("local"))
	require.NoError(t, err)
	assert.Equal(t, []byte("LOCAL"), result)

	plainID, err := srv.CreateEntry(entry.NewEntryData("/plain", 0, entry.BooleanValue(false)))
	require.NoError(t, err)
	_, err = srv.CallProcedure(context.Background(), plainID, nil)
	assert.IsType(t, &ProcedureNotFoundError{}, err)
}

func TestPersistentEntriesAreFlushedAndRestored(t *testing.T) {
	persistence := persist.NewInMemoryEntryPersistence(true, nil)
	srv, _ := startTestServer(t, persistence)
	_, err := srv.CreateEntry(entry.NewEntryData("/volatile", 0, entry.BooleanValue(true)))
	require.NoError(t, err)
	id, err := srv.CreateEntry(entry.NewEntryData("/kept", entry.FlagPersistent, entry.DoubleValue(9)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, _ := persistence.RetrieveEntries()
		return len(stored) == 1
	}, testTimeout, 10*time.Millisecond)
	stored, _ := persistence.RetrieveEntries()
	assert.Equal(t, "/kept", stored[0].Name)

	require.NoError(t, srv.Destroy())
	restarted, _ := startTestServer(t, persistence)
	restored, err := restarted.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, entry.DoubleValue(9), restored.Value)
	_, err = restarted.LookupEntry("/volatile")
	assert.IsType(t, &entry.EntryNotFoundError{}, err)
}

func TestStartFailsWhenPersistedEntriesCannotBeRead(t *testing.T) {
	persistence := persist.NewInMemoryEntryPersistence(false, nil)
	srv := NewRealServer("127.0.0.1:0", "test-server", 0, 0, 20*time.Millisecond, persistence)
	assert.Error(t, srv.Start())
	srv.Destroy()
}

func TestCallbacksObserveClientsAndEntries(t *testing.T) {
	srv, addr := startTestServer(t, nil)
	var mutex sync.Mutex
	var events []string
	record := func(event string) {
		mutex.Lock()
		defer mutex.Unlock()
		events = append(events, event)
	}
	srv.AddConnectionCallback(callback.ClientConnected, func(net.Addr) { record("connected") })
	srv.AddConnectionCallback(callback.ClientDisconnected, func(net.Addr) { record("disconnected") })
	srv.AddCallback(callback.Add, func(e entry.Entry) { record("add " + e.Name) })
	srv.AddCallback(callback.Delete, func(e entry.Entry) { record("delete " + e.Name) })

	client := dialRaw(t, addr)
	client.handshake("robot")
	client.send(&wire.EntryAssignment{Name: "/x", ID: entry.NewEntryID, Seqnum: 1, Value: entry.RawValue([]byte{1})})
	client.next()
	client.send(wire.NewClearAllEntries())
	require.Eventually(t, func() bool {
		entries, _ := srv.Entries()
		return len(entries) == 0
	}, testTimeout, 10*time.Millisecond)
	client.conn.Close()

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(events) == 4
	}, testTimeout, 10*time.Millisecond)
	assert.Equal(t, []string{"connected", "add /x", "delete /x", "disconnected"}, events)
}

func TestIdleClientsAreDropped(t *testing.T) {
	srv := NewRealServer("127.0.0.1:0", "test-server", 0, 50*time.Millisecond, 0, nil)
	require.NoError(t, srv.Start())
	defer srv.Destroy()
	addr, err := srv.Addr()
	require.NoError(t, err)

	client := dialRaw(t, addr)
	client.handshake("sleepy")
	require.Eventually(t, connectedClients(srv, 0), testTimeout, 10*time.Millisecond)
}

func TestClearWithReentrantDeleteCallbackDoesNotDeadlock(t *testing.T) {
	srv := NewRealServer("127.0.0.1:0", "test-server", 0, 0, 20*time.Millisecond, nil)
	require.NoError(t, srv.Start())
	for i := 0; i < 300; i++ {
		_, err := srv.CreateEntry(entry.NewEntryData("/bulk/"+strconv.Itoa(i), 0, entry.DoubleValue(float64(i))))
		require.NoError(t, err)
	}
	var mutex sync.Mutex
	deletes := 0
	srv.AddCallback(callback.Delete, func(entry.Entry) {
		srv.Entries()
		mutex.Lock()
		defer mutex.Unlock()
		deletes++
	})

	finished := make(chan error, 1)
	go func() {
		if err := srv.ClearEntries(); err != nil {
			finished <- err
			return
		}
		finished <- srv.Destroy()
	}()
	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("clear and destroy did not return")
	}
	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, 300, deletes)
}
