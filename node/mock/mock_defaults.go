package mock

import (
	"time"

	"github.com/su225/networktables/node/datastore"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/server"
)

// GetSampleEntries returns three entries with IDs 0 to 2. The mode
// entry is persistent. This is ONLY FOR TESTING PURPOSES
func GetSampleEntries() []entry.Entry {
	return []entry.Entry{
		{ID: 0, EntryData: entry.NewEntryData(SampleSpeedEntryName, 0, entry.DoubleValue(4.5))},
		{ID: 1, EntryData: entry.NewEntryData(SampleModeEntryName, entry.FlagPersistent, entry.StringValue("auto"))},
		{ID: 2, EntryData: entry.NewEntryData(SampleTargetsEntryName, 0, entry.DoubleArrayValue([]float64{1, 2}))},
	}
}

// GetSampleClients returns one handshaken client and one that is
// still in the handshake. This is ONLY FOR TESTING PURPOSES
func GetSampleClients() []server.ClientInfo {
	return []server.ClientInfo{
		{Name: SampleClientName0, RemoteAddress: SampleClientAddress0, Handshaken: true, ConnectedAt: time.Unix(0, 0)},
		{Name: SampleClientName1, RemoteAddress: SampleClientAddress1, Handshaken: false, ConnectedAt: time.Unix(60, 0)},
	}
}

// GetDefaultMockDataStore returns the mock data store holding the sample
// entries and clients. This is ONLY FOR TESTING PURPOSES
func GetDefaultMockDataStore(succeeds bool) *datastore.MockDataStore {
	return datastore.NewMockDataStore(succeeds, GetSampleEntries(), GetSampleClients())
}
