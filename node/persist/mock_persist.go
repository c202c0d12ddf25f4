package persist

import (
	"errors"
	"sync"

	"github.com/su225/networktables/node/entry"
)

var errEntryPersistence = errors.New("entry persistence error")

// InMemoryEntryPersistence keeps entries in memory. It is meant
// for tests which want to check what the server persisted or
// make persistence fail
type InMemoryEntryPersistence struct {
	mutex         sync.Mutex
	ShouldSucceed bool
	entries       []entry.Entry
	persistCount  int
}

// NewInMemoryEntryPersistence creates a new in-memory persistence
// preloaded with the given entries
func NewInMemoryEntryPersistence(shouldSucceed bool, entries []entry.Entry) *InMemoryEntryPersistence {
	return &InMemoryEntryPersistence{
		ShouldSucceed: shouldSucceed,
		entries:       entries,
	}
}

// PersistEntries stores the given entries if calls are supposed to
// be successful. Otherwise a generic persistence error is returned
func (p *InMemoryEntryPersistence) PersistEntries(entries []entry.Entry) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.ShouldSucceed {
		return errEntryPersistence
	}
	p.entries = append([]entry.Entry{}, entries...)
	p.persistCount++
	return nil
}

// RetrieveEntries returns the stored entries if calls are supposed to
// be successful. Otherwise a generic persistence error is returned
func (p *InMemoryEntryPersistence) RetrieveEntries() ([]entry.Entry, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.ShouldSucceed {
		return nil, errEntryPersistence
	}
	return append([]entry.Entry{}, p.entries...), nil
}

// PersistCount returns how many times entries were persisted
func (p *InMemoryEntryPersistence) PersistCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.persistCount
}
