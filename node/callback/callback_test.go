package callback

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/su225/networktables/node/entry"
)

func TestNotificationsAreDeliveredInOrder(t *testing.T) {
	registry := NewRegistry()
	var mutex sync.Mutex
	var seen []string
	record := func(prefix string) EntryAction {
		return func(e entry.Entry) {
			mutex.Lock()
			defer mutex.Unlock()
			seen = append(seen, prefix+e.Name)
		}
	}
	registry.AddCallback(Add, record("add:"))
	registry.AddCallback(Delete, record("delete:"))

	registry.NotifyEntry(Add, entry.Entry{ID: 1, EntryData: entry.NewEntryData("/a", 0, entry.DoubleValue(1))})
	registry.NotifyEntry(Update, entry.Entry{ID: 1, EntryData: entry.NewEntryData("/a", 0, entry.DoubleValue(2))})
	registry.NotifyEntry(Delete, entry.Entry{ID: 1, EntryData: entry.NewEntryData("/a", 0, entry.DoubleValue(2))})
	registry.Close()

	assert.Equal(t, []string{"add:/a", "delete:/a"}, seen)
}

func TestConnectionCallbacksReceiveAddress(t *testing.T) {
	registry := NewRegistry()
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1735}
	received := make(chan net.Addr, 1)
	registry.AddConnectionCallback(ClientDisconnected, func(a net.Addr) { received <- a })

	registry.NotifyConnection(ClientConnected, addr)
	registry.NotifyConnection(ClientDisconnected, addr)
	registry.Close()

	assert.Equal(t, addr, <-received)
}

func TestPanickingCallbackDoesNotStopDispatcher(t *testing.T) {
	registry := NewRegistry()
	calls := 0
	registry.AddCallback(Add, func(entry.Entry) { panic("boom") })
	registry.AddCallback(Add, func(entry.Entry) { calls++ })

	registry.NotifyEntry(Add, entry.Entry{})
	registry.NotifyEntry(Add, entry.Entry{})
	registry.Close()

	assert.Equal(t, 2, calls)
}

func TestNotifyAfterCloseIsDropped(t *testing.T) {
	registry := NewRegistry()
	registry.Close()
	registry.Close()
	registry.NotifyEntry(Add, entry.Entry{})
}

func TestNotifyDoesNotBlockOnSlowCallback(t *testing.T) {
	registry := NewRegistry()
	release := make(chan struct{})
	var mutex sync.Mutex
	delivered := 0
	registry.AddCallback(Delete, func(entry.Entry) {
		<-release
		mutex.Lock()
		defer mutex.Unlock()
		delivered++
	})

	queued := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			registry.NotifyEntry(Delete, entry.Entry{ID: uint16(i)})
		}
		close(queued)
	}()
	select {
	case <-queued:
	case <-time.After(5 * time.Second):
		t.Fatalf("producer blocked behind a slow callback")
	}
	close(release)
	registry.Close()

	assert.Equal(t, 1000, delivered)
}
