package main

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/su225/networktables/node/datastore"
	"github.com/su225/networktables/node/entry"
	adminserver "github.com/su225/networktables/node/rpc/server"
	"github.com/su225/networktables/node/server"
)

func startServer(t *testing.T) (*server.RealServer, string) {
	srv := server.NewRealServer("127.0.0.1:0", "test-server", 0, 0, 0, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Destroy() })
	addr, err := srv.Addr()
	require.NoError(t, err)
	return srv, addr
}

func ntctl(t *testing.T, args ...string) (string, error) {
	out := new(bytes.Buffer)
	err := run(args, out)
	return out.String(), err
}

func TestEntryCommands(t *testing.T) {
	srv, addr := startServer(t)
	url := "-url=ws://" + addr

	out, err := ntctl(t, url, "-persistent", "create", "/SmartDashboard/speed", "double", "4.5")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
	_, err = ntctl(t, url, "create", "/Vision/names", "string[]", `["cone","cube"]`)
	require.NoError(t, err)

	out, err = ntctl(t, url, "entries", "/SmartDashboard/")
	require.NoError(t, err)
	assert.Equal(t, "0\t/SmartDashboard/speed\tdouble\t4.5 persistent\n", out)

	_, err = ntctl(t, url, "update", "/SmartDashboard/speed", "6")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		stored, _ := srv.LookupEntry("/SmartDashboard/speed")
		return stored.Value.Equal(entry.DoubleValue(6))
	}, 2*time.Second, 10*time.Millisecond)

	_, err = ntctl(t, url, "update", "/SmartDashboard/speed", `"fast"`)
	assert.Error(t, err)

	_, err = ntctl(t, url, "delete", "/Vision/names")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, lookupErr := srv.LookupEntry("/Vision/names")
		return lookupErr != nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err = ntctl(t, url, "clear")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		entries, _ := srv.Entries()
		return len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCallCommand(t *testing.T) {
	srv, addr := startServer(t)
	_, err := srv.CreateRPC("/rpc/upper", func(parameter []byte) []byte {
		return []byte(strings.ToUpper(string(parameter)))
	})
	require.NoError(t, err)

	out, err := ntctl(t, "-url=tcp://"+addr, "call", "/rpc/upper", "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", out)

	_, err = ntctl(t, "-url=tcp://"+addr, "call", "/rpc/missing", "hello")
	assert.IsType(t, &entry.EntryNotFoundError{}, err)
}

func TestAdminEntriesCommand(t *testing.T) {
	srv, _ := startServer(t)
	_, err := srv.CreateEntry(entry.NewEntryData("/mode", 0, entry.StringValue("auto")))
	require.NoError(t, err)

	adminServer := adminserver.NewRealAdminRPCServer(0, datastore.NewNetworkTablesStore(srv, time.Second))
	require.NoError(t, adminServer.Start())
	defer adminServer.Destroy()
	adminAddr, err := adminServer.Addr()
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(adminAddr)
	require.NoError(t, err)

	out, err := ntctl(t, "-admin=127.0.0.1:"+port, "admin-entries")
	require.NoError(t, err)
	assert.Equal(t, "0\t/mode\tstring\t\"auto\"\n", out)
}

func TestUsageErrors(t *testing.T) {
	_, err := ntctl(t)
	assert.Error(t, err)
	_, err = ntctl(t, "frobnicate")
	assert.Error(t, err)
}
