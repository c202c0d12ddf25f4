package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/su225/networktables/node/callback"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/server"
	"github.com/su225/networktables/node/transport"
	"github.com/su225/networktables/node/wire"
)

const testTimeout = 2 * time.Second

func startServer(t *testing.T) (*server.RealServer, string) {
	srv := server.NewRealServer("127.0.0.1:0", "test-server", 0, 0, 0, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Destroy() })
	addr, err := srv.Addr()
	require.NoError(t, err)
	return srv, addr
}

func connect(t *testing.T, url string) *RealClient {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	c, err := Connect(ctx, url, "test-client", WithKeepAliveInterval(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

type eventRecorder struct {
	mutex  sync.Mutex
	events []string
}

func (r *eventRecorder) record(event string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) snapshot() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string{}, r.events...)
}

func TestConnectMirrorsExistingEntries(t *testing.T) {
	srv, addr := startServer(t)
	id, err := srv.CreateEntry(entry.NewEntryData("/SmartDashboard/speed", 0, entry.DoubleValue(4.5)))
	require.NoError(t, err)

	for _, url := range []string{"ws://" + addr, "tcp://" + addr, addr} {
		c := connect(t, url)
		assert.Equal(t, Connected, c.State())
		assert.Equal(t, "test-server", c.ServerName())
		entries := c.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, "/SmartDashboard/speed", entries[id].Name)
		assert.Equal(t, entry.DoubleValue(4.5), entries[id].Value)
	}
}

func TestCreateEntryWaitsForServerAssignment(t *testing.T) {
	srv, addr := startServer(t)
	c := connect(t, "ws://"+addr)

	id, err := c.CreateEntry(testContext(t), entry.NewEntryData("/ws_test", 0, entry.DoubleValue(1.0)))
	require.NoError(t, err)
	assert.Equal(t, "/ws_test", c.Entries()[id].Name)
	stored, err := srv.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, entry.DoubleValue(1.0), stored.Value)

	again, err := c.CreateEntry(testContext(t), entry.NewEntryData("/ws_test", 0, entry.DoubleValue(2.0)))
	require.NoError(t, err)
	assert.Equal(t, id, again)
	require.Eventually(t, func() bool {
		stored, _ := srv.Entry(id)
		return stored.Value.Equal(entry.DoubleValue(2.0))
	}, testTimeout, 10*time.Millisecond)
}

func TestCreateEntryRejectsInvalidType(t *testing.T) {
	_, addr := startServer(t)
	c := connect(t, addr)
	_, err := c.CreateEntry(testContext(t), entry.EntryData{Name: "/bad", Value: entry.EntryValue{Type: 0x42}})
	assert.IsType(t, &entry.InvalidEntryTypeError{}, err)
}

func TestLocalChangesReachTheServer(t *testing.T) {
	srv, addr := startServer(t)
	c := connect(t, addr)
	id, err := c.CreateEntry(testContext(t), entry.NewEntryData("/arm/angle", 0, entry.DoubleValue(0)))
	require.NoError(t, err)

	handle := c.GetEntry(id)
	require.NotNil(t, handle)
	require.NoError(t, handle.SetValue(entry.DoubleValue(90)))
	require.NoError(t, handle.SetPersistent(true))
	value, err := handle.Value()
	require.NoError(t, err)
	assert.Equal(t, entry.DoubleValue(90), value)

	require.Eventually(t, func() bool {
		stored, _ := srv.Entry(id)
		return stored.Value.Equal(entry.DoubleValue(90)) && stored.IsPersistent()
	}, testTimeout, 10*time.Millisecond)

	assert.IsType(t, &entry.TypeMismatchError{}, handle.SetValue(entry.BooleanValue(true)))

	require.NoError(t, handle.Delete())
	require.Eventually(t, func() bool {
		_, err := srv.Entry(id)
		return err != nil
	}, testTimeout, 10*time.Millisecond)
	_, err = handle.Data()
	assert.IsType(t, &entry.EntryNotFoundError{}, err)
	assert.Nil(t, c.GetEntry(id))
}

func TestRemoteChangesFireCallbacks(t *testing.T) {
	srv, addr := startServer(t)
	c := connect(t, addr)
	recorder := &eventRecorder{}
	c.AddCallback(callback.Add, func(e entry.Entry) { recorder.record("add " + e.Name) })
	c.AddCallback(callback.Update, func(e entry.Entry) { recorder.record("update " + e.Value.String()) })
	c.AddCallback(callback.Delete, func(e entry.Entry) { recorder.record("delete " + e.Name) })

	id, err := srv.CreateEntry(entry.NewEntryData("/mode", 0, entry.StringValue("auto")))
	require.NoError(t, err)
	_, err = srv.UpdateEntry(id, entry.StringValue("teleop"))
	require.NoError(t, err)
	_, err = srv.CreateEntry(entry.NewEntryData("/enabled", 0, entry.BooleanValue(true)))
	require.NoError(t, err)
	require.NoError(t, srv.ClearEntries())

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 5
	}, testTimeout, 10*time.Millisecond)
	assert.Equal(t, []string{
		"add /mode",
		"update " + entry.StringValue("teleop").String(),
		"add /enabled",
		"delete /enabled",
		"delete /mode",
	}, recorder.snapshot())
	assert.Empty(t, c.Entries())
}

func TestCallRPC(t *testing.T) {
	srv, addr := startServer(t)
	rpcID, err := srv.CreateRPC("/rpc/double", func(parameter []byte) []byte {
		return append(parameter, parameter...)
	})
	require.NoError(t, err)
	plainID, err := srv.CreateEntry(entry.NewEntryData("/plain", 0, entry.RawValue([]byte{1})))
	require.NoError(t, err)

	c := connect(t, "ws://"+addr)
	result, err := c.CallRPC(testContext(t), rpcID, []byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abab"), result)

	_, err = c.CallRPC(testContext(t), plainID, nil)
	assert.IsType(t, &entry.TypeMismatchError{}, err)
	_, err = c.CallRPC(testContext(t), 999, nil)
	assert.IsType(t, &entry.EntryNotFoundError{}, err)
}

func TestServerShutdownDisconnectsClient(t *testing.T) {
	srv, addr := startServer(t)
	c := connect(t, addr)
	recorder := &eventRecorder{}
	c.AddConnectionCallback(callback.ClientDisconnected, func(net.Addr) { recorder.record("disconnected") })

	require.NoError(t, srv.Destroy())
	require.Eventually(t, func() bool {
		return c.State() == Idle
	}, testTimeout, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, testTimeout, 10*time.Millisecond)
	assert.Empty(t, c.Entries())

	err := c.UpdateEntry(0, entry.BooleanValue(true))
	assert.IsType(t, &NotConnectedError{}, err)
	assert.Error(t, c.Reconnect(testContext(t)))
	assert.Equal(t, Idle, c.State())
}

func TestReconnectResynchronizes(t *testing.T) {
	srv, addr := startServer(t)
	c := connect(t, addr)
	_, err := srv.CreateEntry(entry.NewEntryData("/late", 0, entry.BooleanArrayValue([]bool{true})))
	require.NoError(t, err)

	require.NoError(t, c.Reconnect(testContext(t)))
	assert.Equal(t, Connected, c.State())
	_, found := c.LookupEntry("/late")
	assert.True(t, found)
	assert.IsType(t, &AlreadyConnectedError{}, c.connect(testContext(t)))
}

func TestClosedClientRefusesOperations(t *testing.T) {
	_, addr := startServer(t)
	c := connect(t, addr)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.IsType(t, &ClientClosedError{}, c.ClearEntries())
	assert.IsType(t, &ClientClosedError{}, c.Reconnect(testContext(t)))
}

func TestUnsupportedRevisionIsReported(t *testing.T) {
	listener, err := transport.Listen("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := conn.ReadPacket(); err != nil {
			return
		}
		conn.WritePackets(&wire.ProtocolVersionUnsupported{Revision: 0x0200})
	}()

	_, err = Connect(testContext(t), listener.Addr().String(), "test-client")
	require.IsType(t, &ProtocolVersionUnsupportedError{}, err)
	assert.Equal(t, uint16(0x0200), err.(*ProtocolVersionUnsupportedError).ServerRevision)
}

func TestKeepAlivesHoldIdleConnectionsOpen(t *testing.T) {
	srv := server.NewRealServer("127.0.0.1:0", "test-server", 0, 100*time.Millisecond, 0, nil)
	require.NoError(t, srv.Start())
	defer srv.Destroy()
	addr, err := srv.Addr()
	require.NoError(t, err)

	c := connect(t, addr)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, Connected, c.State())
	clients, err := srv.Clients()
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "test-client", clients[0].Name)
}

func TestCallIDsSkipPendingCallsAcrossWrapAround(t *testing.T) {
	c := &RealClient{pendingCalls: make(map[uint16]chan []byte), nextCallID: 0xFFFE}
	for _, inFlight := range []uint16{0xFFFE, 0xFFFF, 0} {
		c.pendingCalls[inFlight] = make(chan []byte, 1)
	}
	id, err := c.allocateCallID()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)

	next, err := c.allocateCallID()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), next)
}

func TestCallIDsExhausted(t *testing.T) {
	c := &RealClient{pendingCalls: make(map[uint16]chan []byte)}
	for id := 0; id <= 0xFFFF; id++ {
		c.pendingCalls[uint16(id)] = make(chan []byte, 1)
	}
	_, err := c.allocateCallID()
	require.Error(t, err)
	_, ok := err.(*TooManyPendingCallsError)
	assert.True(t, ok)
}
