package entry

import (
	"strings"

	"github.com/tidwall/btree"
)

// NewEntryID is the ID a client uses when it asks the
// server to create an entry. It is never assigned.
const NewEntryID uint16 = 0xFFFF

type nameIndexItem struct {
	name string
	id   uint16
}

func byName(a, b interface{}) bool {
	return a.(*nameIndexItem).name < b.(*nameIndexItem).name
}

// Table holds entries by ID and keeps a name index ordered
// lexicographically so that prefix listings are cheap. It is
// not safe for concurrent use; owners serialize access.
type Table struct {
	byID   map[uint16]*EntryData
	byName *btree.BTree
	nextID uint16
}

// NewTable creates an empty entry table
func NewTable() *Table {
	return &Table{
		byID:   make(map[uint16]*EntryData),
		byName: btree.NewNonConcurrent(byName),
	}
}

// Insert adds a new entry and allocates an ID for it. IDs are
// handed out in increasing order, wrapping around and skipping
// the ones in use.
func (t *Table) Insert(data EntryData) (uint16, error) {
	if existingID, exists := t.Lookup(data.Name); exists {
		return existingID, &EntryAlreadyExistsError{Name: data.Name, ID: existingID}
	}
	if len(t.byID) >= int(NewEntryID) {
		return 0, &TableFullError{}
	}
	id := t.nextID
	for {
		if _, taken := t.byID[id]; !taken && id != NewEntryID {
			break
		}
		id++
	}
	t.nextID = id + 1
	t.store(id, data)
	return id, nil
}

// Put places an entry under an ID chosen elsewhere, replacing
// whatever was stored under that ID or that name before. It
// returns true if an entry with that ID existed.
func (t *Table) Put(id uint16, data EntryData) bool {
	previous, replaced := t.byID[id]
	if replaced {
		t.byName.Delete(&nameIndexItem{name: previous.Name})
	}
	if otherID, exists := t.Lookup(data.Name); exists && otherID != id {
		delete(t.byID, otherID)
	}
	t.store(id, data)
	return replaced
}

func (t *Table) store(id uint16, data EntryData) {
	stored := data.Clone()
	t.byID[id] = &stored
	t.byName.Set(&nameIndexItem{name: data.Name, id: id})
}

// Get returns a copy of the entry with the given ID
func (t *Table) Get(id uint16) (EntryData, bool) {
	data, exists := t.byID[id]
	if !exists {
		return EntryData{}, false
	}
	return data.Clone(), true
}

// Lookup returns the ID of the entry with the given name
func (t *Table) Lookup(name string) (uint16, bool) {
	item := t.byName.Get(&nameIndexItem{name: name})
	if item == nil {
		return 0, false
	}
	return item.(*nameIndexItem).id, true
}

// Update replaces the value of an entry. The value must have the
// type of the entry and the sequence number must be newer than the
// stored one. The updated entry is returned.
func (t *Table) Update(id uint16, value EntryValue, seqnum uint16) (EntryData, error) {
	data, exists := t.byID[id]
	if !exists {
		return EntryData{}, &EntryNotFoundError{ID: id}
	}
	if data.Value.Type != value.Type {
		return EntryData{}, &TypeMismatchError{ID: id, Expected: data.Value.Type, Actual: value.Type}
	}
	if !SeqnumNewer(seqnum, data.Seqnum) {
		return EntryData{}, &StaleSequenceNumberError{ID: id, Current: data.Seqnum, Received: seqnum}
	}
	data.Value = EntryData{Value: value}.Clone().Value
	data.Seqnum = seqnum
	return data.Clone(), nil
}

// SetFlags replaces the flags of an entry
func (t *Table) SetFlags(id uint16, flags uint8) (EntryData, error) {
	data, exists := t.byID[id]
	if !exists {
		return EntryData{}, &EntryNotFoundError{ID: id}
	}
	data.Flags = flags
	return data.Clone(), nil
}

// Delete removes the entry with the given ID and returns it
func (t *Table) Delete(id uint16) (EntryData, bool) {
	data, exists := t.byID[id]
	if !exists {
		return EntryData{}, false
	}
	delete(t.byID, id)
	t.byName.Delete(&nameIndexItem{name: data.Name})
	return *data, true
}

// Clear removes all entries and returns them in name order
func (t *Table) Clear() []Entry {
	removed := make([]Entry, 0, len(t.byID))
	t.Ascend("", func(e Entry) bool {
		removed = append(removed, e)
		return true
	})
	t.byID = make(map[uint16]*EntryData)
	t.byName = btree.NewNonConcurrent(byName)
	return removed
}

// Len returns the number of entries in the table
func (t *Table) Len() int {
	return len(t.byID)
}

// Entries returns copies of all entries keyed by ID
func (t *Table) Entries() map[uint16]EntryData {
	entries := make(map[uint16]EntryData, len(t.byID))
	for id, data := range t.byID {
		entries[id] = data.Clone()
	}
	return entries
}

// Ascend calls fn for every entry whose name starts with prefix,
// in name order, until fn returns false.
func (t *Table) Ascend(prefix string, fn func(Entry) bool) {
	t.byName.Ascend(&nameIndexItem{name: prefix}, func(item interface{}) bool {
		indexed := item.(*nameIndexItem)
		if !strings.HasPrefix(indexed.name, prefix) {
			return false
		}
		return fn(Entry{ID: indexed.id, EntryData: t.byID[indexed.id].Clone()})
	})
}
