package client

import "github.com/su225/networktables/node/entry"

// EntryHandle refers to one entry of a client's mirror by ID. It
// stays valid across value changes; once the entry is deleted its
// methods report EntryNotFoundError.
type EntryHandle struct {
	client *RealClient
	id     uint16
}

// ID returns the server-assigned ID of the entry
func (h *EntryHandle) ID() uint16 {
	return h.id
}

// Data returns a copy of the entry as currently mirrored
func (h *EntryHandle) Data() (entry.EntryData, error) {
	h.client.mutex.Lock()
	defer h.client.mutex.Unlock()
	data, exists := h.client.table.Get(h.id)
	if !exists {
		return entry.EntryData{}, &entry.EntryNotFoundError{ID: h.id}
	}
	return data, nil
}

// Value returns the current value of the entry
func (h *EntryHandle) Value() (entry.EntryValue, error) {
	data, err := h.Data()
	return data.Value, err
}

// SetValue updates the value of the entry
func (h *EntryHandle) SetValue(value entry.EntryValue) error {
	return h.client.UpdateEntry(h.id, value)
}

// SetFlags replaces the flags of the entry
func (h *EntryHandle) SetFlags(flags uint8) error {
	return h.client.UpdateEntryFlags(h.id, flags)
}

// SetPersistent toggles the persistent flag and keeps the others
func (h *EntryHandle) SetPersistent(persistent bool) error {
	data, err := h.Data()
	if err != nil {
		return err
	}
	flags := data.Flags &^ entry.FlagPersistent
	if persistent {
		flags |= entry.FlagPersistent
	}
	return h.SetFlags(flags)
}

// Delete removes the entry
func (h *EntryHandle) Delete() error {
	return h.client.DeleteEntry(h.id)
}
