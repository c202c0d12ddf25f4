package callback

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/entry"
)

const callbackRegistry = "CALLBACK-REGISTRY"

// CallbackType selects which entry changes a callback is interested in
type CallbackType uint8

const (
	// Add fires when an entry appears
	Add CallbackType = iota
	// Update fires when the value or the flags of an entry change
	Update
	// Delete fires when an entry goes away, including clear-all
	Delete
)

// ConnectionCallbackType selects connection events
type ConnectionCallbackType uint8

const (
	ClientConnected ConnectionCallbackType = iota
	ClientDisconnected
)

func (t CallbackType) String() string {
	switch t {
	case Add:
		return "add"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

func (t ConnectionCallbackType) String() string {
	switch t {
	case ClientConnected:
		return "client-connected"
	case ClientDisconnected:
		return "client-disconnected"
	}
	return "unknown"
}

// EntryAction is invoked with a snapshot of the entry that changed
type EntryAction func(e entry.Entry)

// ConnectionAction is invoked with the address of the peer
type ConnectionAction func(addr net.Addr)

type notification struct {
	entryEvent CallbackType
	entry      entry.Entry
	connEvent  ConnectionCallbackType
	addr       net.Addr
	isConn     bool
}

// Registry keeps callbacks and delivers notifications to them in
// the order they were raised, on a single dispatcher goroutine.
// Producers never run callbacks themselves and never wait for the
// dispatcher, so a callback may call back into the component that
// raised the notification.
type Registry struct {
	mutex        sync.RWMutex
	entryActions map[CallbackType][]EntryAction
	connActions  map[ConnectionCallbackType][]ConnectionAction

	queueMutex      sync.Mutex
	queueCond       *sync.Cond
	queue           []notification
	closed          bool
	dispatcherGroup sync.WaitGroup
}

// NewRegistry creates a registry and starts its dispatcher
func NewRegistry() *Registry {
	r := &Registry{
		entryActions: make(map[CallbackType][]EntryAction),
		connActions:  make(map[ConnectionCallbackType][]ConnectionAction),
	}
	r.queueCond = sync.NewCond(&r.queueMutex)
	r.dispatcherGroup.Add(1)
	go r.dispatch()
	return r
}

// AddCallback registers an action for the given entry event
func (r *Registry) AddCallback(t CallbackType, action EntryAction) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entryActions[t] = append(r.entryActions[t], action)
}

// AddConnectionCallback registers an action for the given connection event
func (r *Registry) AddConnectionCallback(t ConnectionCallbackType, action ConnectionAction) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.connActions[t] = append(r.connActions[t], action)
}

// NotifyEntry queues an entry event. It is dropped once the
// registry is closed.
func (r *Registry) NotifyEntry(t CallbackType, e entry.Entry) {
	r.enqueue(notification{entryEvent: t, entry: e})
}

// NotifyConnection queues a connection event
func (r *Registry) NotifyConnection(t ConnectionCallbackType, addr net.Addr) {
	r.enqueue(notification{connEvent: t, addr: addr, isConn: true})
}

func (r *Registry) enqueue(n notification) {
	r.queueMutex.Lock()
	defer r.queueMutex.Unlock()
	if r.closed {
		return
	}
	r.queue = append(r.queue, n)
	r.queueCond.Signal()
}

// Close stops the dispatcher after the queued notifications
// have been delivered. It is safe to call more than once.
func (r *Registry) Close() {
	r.queueMutex.Lock()
	r.closed = true
	r.queueCond.Broadcast()
	r.queueMutex.Unlock()
	r.dispatcherGroup.Wait()
}

func (r *Registry) dispatch() {
	defer r.dispatcherGroup.Done()
	for {
		r.queueMutex.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.queueCond.Wait()
		}
		if len(r.queue) == 0 {
			r.queueMutex.Unlock()
			return
		}
		pending := r.queue
		r.queue = nil
		r.queueMutex.Unlock()

		for _, n := range pending {
			r.deliver(n)
		}
	}
}

func (r *Registry) deliver(n notification) {
	r.mutex.RLock()
	var entryActions []EntryAction
	var connActions []ConnectionAction
	if n.isConn {
		connActions = append(connActions, r.connActions[n.connEvent]...)
	} else {
		entryActions = append(entryActions, r.entryActions[n.entryEvent]...)
	}
	r.mutex.RUnlock()

	for _, action := range entryActions {
		r.run(func() { action(n.entry) })
	}
	for _, action := range connActions {
		r.run(func() { action(n.addr) })
	}
}

// run shields the dispatcher from panicking callbacks
func (r *Registry) run(f func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logrus.WithFields(logrus.Fields{
				logfield.Component: callbackRegistry,
				logfield.Event:     "CALLBACK-PANIC",
			}).Errorf("callback panicked: %v", recovered)
		}
	}()
	f()
}
