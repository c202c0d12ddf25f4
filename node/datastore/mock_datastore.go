package datastore

import (
	"context"
	"errors"
	"sync"

	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/server"
)

var errMockDataStore = errors.New("mock data store error")

// MockDataStore keeps entries in a local table without any server.
// It is meant for tests of the API layers. When ShouldSucceed is
// false every operation fails with a generic error.
type MockDataStore struct {
	mutex         sync.Mutex
	ShouldSucceed bool
	table         *entry.Table
	procedures    map[uint16]server.Procedure
	clients       []server.ClientInfo
}

// NewMockDataStore creates a mock data store holding the given
// entries and reporting the given clients
func NewMockDataStore(shouldSucceed bool, entries []entry.Entry, clients []server.ClientInfo) *MockDataStore {
	table := entry.NewTable()
	for _, e := range entries {
		table.Put(e.ID, e.EntryData)
	}
	return &MockDataStore{
		ShouldSucceed: shouldSucceed,
		table:         table,
		procedures:    make(map[uint16]server.Procedure),
		clients:       clients,
	}
}

// RegisterProcedure creates an rpc entry served by procedure
func (m *MockDataStore) RegisterProcedure(name string, procedure server.Procedure) uint16 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	id, _ := m.table.Insert(entry.NewEntryData(name, 0, entry.RPCValue()))
	m.procedures[id] = procedure
	return id
}

func (m *MockDataStore) ListEntries(prefix string) ([]entry.Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return nil, errMockDataStore
	}
	entries := make([]entry.Entry, 0)
	m.table.Ascend(prefix, func(e entry.Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries, nil
}

func (m *MockDataStore) GetEntry(id uint16) (entry.Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return entry.Entry{}, errMockDataStore
	}
	data, exists := m.table.Get(id)
	if !exists {
		return entry.Entry{}, &entry.EntryNotFoundError{ID: id}
	}
	return entry.Entry{ID: id, EntryData: data}, nil
}

func (m *MockDataStore) GetEntryByName(name string) (entry.Entry, error) {
	m.mutex.Lock()
	id, exists := m.table.Lookup(name)
	m.mutex.Unlock()
	if !exists {
		if !m.ShouldSucceed {
			return entry.Entry{}, errMockDataStore
		}
		return entry.Entry{}, &entry.EntryNotFoundError{Name: name}
	}
	return m.GetEntry(id)
}

func (m *MockDataStore) CreateEntry(data entry.EntryData) (uint16, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return 0, errMockDataStore
	}
	return m.table.Insert(data)
}

func (m *MockDataStore) UpdateEntry(id uint16, value entry.EntryValue) (entry.Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return entry.Entry{}, errMockDataStore
	}
	current, exists := m.table.Get(id)
	if !exists {
		return entry.Entry{}, &entry.EntryNotFoundError{ID: id}
	}
	updated, err := m.table.Update(id, value, current.Seqnum+1)
	return entry.Entry{ID: id, EntryData: updated}, err
}

func (m *MockDataStore) UpdateEntryFlags(id uint16, flags uint8) (entry.Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return entry.Entry{}, errMockDataStore
	}
	updated, err := m.table.SetFlags(id, flags)
	return entry.Entry{ID: id, EntryData: updated}, err
}

func (m *MockDataStore) DeleteEntry(id uint16) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return errMockDataStore
	}
	if _, exists := m.table.Delete(id); !exists {
		return &entry.EntryNotFoundError{ID: id}
	}
	delete(m.procedures, id)
	return nil
}

func (m *MockDataStore) ClearEntries() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return errMockDataStore
	}
	m.table.Clear()
	m.procedures = make(map[uint16]server.Procedure)
	return nil
}

func (m *MockDataStore) CallProcedure(ctx context.Context, id uint16, parameter []byte) ([]byte, error) {
	m.mutex.Lock()
	if !m.ShouldSucceed {
		m.mutex.Unlock()
		return nil, errMockDataStore
	}
	if _, exists := m.table.Get(id); !exists {
		m.mutex.Unlock()
		return nil, &entry.EntryNotFoundError{ID: id}
	}
	procedure, registered := m.procedures[id]
	m.mutex.Unlock()
	if !registered {
		return nil, &server.ProcedureNotFoundError{ID: id}
	}
	return procedure(parameter), nil
}

func (m *MockDataStore) Clients() ([]server.ClientInfo, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.ShouldSucceed {
		return nil, errMockDataStore
	}
	return append([]server.ClientInfo{}, m.clients...), nil
}
