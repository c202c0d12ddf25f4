package server

import (
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/callback"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/wire"
)

func (s *RealServer) handleCreateEntry(state *serverState, cmd *createEntry) *entryReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &entryReply{err: statusErr}
	}
	created, createErr := s.applyCreate(state, cmd.data)
	if createErr != nil {
		return &entryReply{entry: created, err: createErr}
	}
	if cmd.procedure != nil {
		state.procedures[created.ID] = cmd.procedure
	}
	return &entryReply{entry: created}
}

func (s *RealServer) handleUpdateEntry(state *serverState, cmd *updateEntry) *entryReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &entryReply{err: statusErr}
	}
	current, exists := state.table.Get(cmd.id)
	if !exists {
		return &entryReply{err: &entry.EntryNotFoundError{ID: cmd.id}}
	}
	updated, updateErr := s.applyUpdate(state, nil, cmd.id, cmd.value, current.Seqnum+1)
	return &entryReply{entry: updated, err: updateErr}
}

func (s *RealServer) handleUpdateEntryFlags(state *serverState, cmd *updateEntryFlags) *entryReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &entryReply{err: statusErr}
	}
	updated, flagsErr := s.applyFlags(state, nil, cmd.id, cmd.flags)
	return &entryReply{entry: updated, err: flagsErr}
}

func (s *RealServer) handleDeleteEntry(state *serverState, cmd *deleteEntry) *entryReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &entryReply{err: statusErr}
	}
	removed, deleteErr := s.applyDelete(state, nil, cmd.id)
	return &entryReply{entry: removed, err: deleteErr}
}

func (s *RealServer) handleClearEntries(state *serverState, cmd *clearEntries) error {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return statusErr
	}
	s.applyClear(state, nil)
	return nil
}

func (s *RealServer) handleGetProcedure(state *serverState, cmd *getProcedure) *getProcedureReply {
	if statusErr := s.checkOperationalStatus(state); statusErr != nil {
		return &getProcedureReply{err: statusErr}
	}
	if _, exists := state.table.Get(cmd.id); !exists {
		return &getProcedureReply{err: &entry.EntryNotFoundError{ID: cmd.id}}
	}
	procedure, registered := state.procedures[cmd.id]
	if !registered {
		return &getProcedureReply{err: &ProcedureNotFoundError{ID: cmd.id}}
	}
	return &getProcedureReply{procedure: procedure}
}

// applyCreate inserts an entry and announces it to every client,
// including the one that asked for it
func (s *RealServer) applyCreate(state *serverState, data entry.EntryData) (entry.Entry, error) {
	if !data.Value.Type.Valid() {
		return entry.Entry{}, &entry.InvalidEntryTypeError{Type: data.Value.Type}
	}
	id, insertErr := state.table.Insert(data)
	if insertErr != nil {
		return entry.Entry{ID: id}, insertErr
	}
	stored, _ := state.table.Get(id)
	created := entry.Entry{ID: id, EntryData: stored}
	s.broadcast(state, nil, assignmentOf(created))
	s.callbacks.NotifyEntry(callback.Add, created)
	s.markDirtyIf(state, created.IsPersistent())

	logrus.WithFields(logrus.Fields{
		logfield.Component: ntServer,
		logfield.Event:     "ENTRY-CREATE",
		logfield.EntryName: created.Name,
		logfield.EntryID:   id,
	}).Debugf("created %s entry", created.EntryType())
	return created, nil
}

// applyUpdate stores a newer value and forwards it to every client
// except origin
func (s *RealServer) applyUpdate(state *serverState, origin *clientSession, id uint16, value entry.EntryValue, seqnum uint16) (entry.Entry, error) {
	updated, updateErr := state.table.Update(id, value, seqnum)
	if updateErr != nil {
		return entry.Entry{}, updateErr
	}
	changed := entry.Entry{ID: id, EntryData: updated}
	s.broadcast(state, origin, &wire.EntryUpdate{ID: id, Seqnum: updated.Seqnum, Value: updated.Value})
	s.callbacks.NotifyEntry(callback.Update, changed)
	s.markDirtyIf(state, changed.IsPersistent())
	return changed, nil
}

func (s *RealServer) applyFlags(state *serverState, origin *clientSession, id uint16, flags uint8) (entry.Entry, error) {
	before, exists := state.table.Get(id)
	if !exists {
		return entry.Entry{}, &entry.EntryNotFoundError{ID: id}
	}
	updated, flagsErr := state.table.SetFlags(id, flags)
	if flagsErr != nil {
		return entry.Entry{}, flagsErr
	}
	changed := entry.Entry{ID: id, EntryData: updated}
	s.broadcast(state, origin, &wire.EntryFlagsUpdate{ID: id, Flags: flags})
	s.callbacks.NotifyEntry(callback.Update, changed)
	s.markDirtyIf(state, before.IsPersistent() || changed.IsPersistent())
	return changed, nil
}

func (s *RealServer) applyDelete(state *serverState, origin *clientSession, id uint16) (entry.Entry, error) {
	removedData, exists := state.table.Delete(id)
	if !exists {
		return entry.Entry{}, &entry.EntryNotFoundError{ID: id}
	}
	delete(state.procedures, id)
	removed := entry.Entry{ID: id, EntryData: removedData}
	s.broadcast(state, origin, &wire.EntryDelete{ID: id})
	s.callbacks.NotifyEntry(callback.Delete, removed)
	s.markDirtyIf(state, removed.IsPersistent())
	return removed, nil
}

func (s *RealServer) applyClear(state *serverState, origin *clientSession) {
	removed := state.table.Clear()
	state.procedures = make(map[uint16]Procedure)
	s.broadcast(state, origin, wire.NewClearAllEntries())
	for _, e := range removed {
		s.callbacks.NotifyEntry(callback.Delete, e)
		s.markDirtyIf(state, e.IsPersistent())
	}
}

func (s *RealServer) markDirtyIf(state *serverState, persistent bool) {
	if persistent {
		state.persistDirty = true
	}
}

// broadcast queues packets to every handshaken client but except.
// Clients whose queue is full are dropped.
func (s *RealServer) broadcast(state *serverState, except *clientSession, packets ...wire.Packet) {
	for _, session := range state.sessions {
		if session == except || !session.handshaken() {
			continue
		}
		if !session.send(packets...) {
			logrus.WithFields(logrus.Fields{
				logfield.Component:     ntServer,
				logfield.Event:         "SLOW-CLIENT",
				logfield.RemoteAddress: session.remoteAddr().String(),
				logfield.ClientName:    session.name,
			}).Warnf("dropping client that does not keep up")
			s.dropSession(state, session)
		}
	}
}

func assignmentOf(e entry.Entry) *wire.EntryAssignment {
	return &wire.EntryAssignment{
		Name:   e.Name,
		ID:     e.ID,
		Seqnum: e.Seqnum,
		Flags:  e.Flags,
		Value:  e.Value,
	}
}
