package datastore

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/server"
)

const dataStore = "DS"

// DataStore defines the operations on the entry table that are
// exposed to operators through the REST and admin RPC APIs.
type DataStore interface {
	ListEntries(prefix string) ([]entry.Entry, error)
	GetEntry(id uint16) (entry.Entry, error)
	GetEntryByName(name string) (entry.Entry, error)
	CreateEntry(data entry.EntryData) (uint16, error)
	UpdateEntry(id uint16, value entry.EntryValue) (entry.Entry, error)
	UpdateEntryFlags(id uint16, flags uint8) (entry.Entry, error)
	DeleteEntry(id uint16) error
	ClearEntries() error
	CallProcedure(ctx context.Context, id uint16, parameter []byte) ([]byte, error)
	Clients() ([]server.ClientInfo, error)
}

// NetworkTablesStore is the implementation of DataStore on top
// of the NetworkTables server. Changes made through it reach every
// connected client like local changes on the server do.
type NetworkTablesStore struct {
	server.Server

	// ProcedureTimeout bounds procedure calls whose context
	// carries no deadline
	ProcedureTimeout time.Duration
}

// NewNetworkTablesStore creates a new data store backed by the
// given server
func NewNetworkTablesStore(ntServer server.Server, procedureTimeout time.Duration) *NetworkTablesStore {
	return &NetworkTablesStore{
		Server:           ntServer,
		ProcedureTimeout: procedureTimeout,
	}
}

// ListEntries returns the entries whose name starts with prefix
// in name order. An empty prefix lists everything.
func (ds *NetworkTablesStore) ListEntries(prefix string) ([]entry.Entry, error) {
	return ds.Server.EntriesWithPrefix(prefix)
}

// GetEntry returns the entry with the given ID
func (ds *NetworkTablesStore) GetEntry(id uint16) (entry.Entry, error) {
	return ds.Server.Entry(id)
}

// GetEntryByName returns the entry with the given name
func (ds *NetworkTablesStore) GetEntryByName(name string) (entry.Entry, error) {
	return ds.Server.LookupEntry(name)
}

// CreateEntry validates and creates the entry. The sequence number
// of a new entry always starts at 1.
func (ds *NetworkTablesStore) CreateEntry(data entry.EntryData) (uint16, error) {
	if data.Name == "" {
		return 0, &InvalidEntryDataError{Reason: "entry name is empty"}
	}
	if !data.Value.Type.Valid() {
		return 0, &entry.InvalidEntryTypeError{Type: data.Value.Type}
	}
	if data.Value.Type == entry.TypeRPC {
		return 0, &InvalidEntryDataError{Reason: "rpc entries are registered by the server only"}
	}
	id, createErr := ds.Server.CreateEntry(entry.NewEntryData(data.Name, data.Flags, data.Value))
	if createErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: createErr.Error(),
			logfield.Component:   dataStore,
			logfield.Event:       "CREATE-ENTRY",
			logfield.EntryName:   data.Name,
		}).Debugf("error while creating entry")
	}
	return id, createErr
}

// UpdateEntry sets a new value of the entry's type
func (ds *NetworkTablesStore) UpdateEntry(id uint16, value entry.EntryValue) (entry.Entry, error) {
	return ds.Server.UpdateEntry(id, value)
}

// UpdateEntryFlags replaces the flags of the entry
func (ds *NetworkTablesStore) UpdateEntryFlags(id uint16, flags uint8) (entry.Entry, error) {
	return ds.Server.UpdateEntryFlags(id, flags)
}

// CallProcedure runs the procedure behind an rpc entry. Without
// a deadline on ctx, ProcedureTimeout applies.
func (ds *NetworkTablesStore) CallProcedure(ctx context.Context, id uint16, parameter []byte) ([]byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && ds.ProcedureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ds.ProcedureTimeout)
		defer cancel()
	}
	return ds.Server.CallProcedure(ctx, id, parameter)
}
