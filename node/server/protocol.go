package server

import (
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/callback"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/wire"
)

// handlePacketReceived applies a packet sent by a client
func (s *RealServer) handlePacketReceived(state *serverState, cmd *packetReceived) {
	session, exists := state.sessions[cmd.sessionID]
	if !exists || state.isDestroyed {
		return
	}
	if _, isKeepAlive := cmd.packet.(*wire.KeepAlive); isKeepAlive {
		return
	}
	if hello, isHello := cmd.packet.(*wire.ClientHello); isHello {
		s.handleClientHello(state, session, hello)
		return
	}
	if !session.handshaken() {
		logrus.WithFields(logrus.Fields{
			logfield.Component:     ntServer,
			logfield.Event:         "PROTOCOL-VIOLATION",
			logfield.RemoteAddress: session.remoteAddr().String(),
		}).Warnf("packet 0x%02x before ClientHello, closing", byte(cmd.packet.PacketID()))
		s.dropSession(state, session)
		return
	}

	switch p := cmd.packet.(type) {
	case *wire.ClientHelloComplete:
		s.handleClientHelloComplete(state, session)
	case *wire.EntryAssignment:
		s.handleEntryAssignment(state, session, p)
	case *wire.EntryUpdate:
		if _, err := s.applyUpdate(state, session, p.ID, p.Value, p.Seqnum); err != nil {
			s.logIgnored(session, "ENTRY-UPDATE", err)
		}
	case *wire.EntryFlagsUpdate:
		if _, err := s.applyFlags(state, session, p.ID, p.Flags); err != nil {
			s.logIgnored(session, "ENTRY-FLAGS-UPDATE", err)
		}
	case *wire.EntryDelete:
		if _, err := s.applyDelete(state, session, p.ID); err != nil {
			s.logIgnored(session, "ENTRY-DELETE", err)
		}
	case *wire.ClearAllEntries:
		if !p.IsValid() {
			s.logIgnored(session, "CLEAR-ALL", nil)
			return
		}
		s.applyClear(state, session)
	case *wire.RPCExecute:
		s.handleRPCExecute(state, session, p)
	default:
		logrus.WithFields(logrus.Fields{
			logfield.Component:     ntServer,
			logfield.Event:         "UNEXPECTED-PACKET",
			logfield.RemoteAddress: session.remoteAddr().String(),
		}).Debugf("ignoring packet 0x%02x from client", byte(cmd.packet.PacketID()))
	}
}

// handleClientHello answers with the server hello, the whole entry
// table and the end of the server's handshake in one batch
func (s *RealServer) handleClientHello(state *serverState, session *clientSession, hello *wire.ClientHello) {
	if session.handshaken() {
		s.logIgnored(session, "CLIENT-HELLO", nil)
		return
	}
	if hello.Revision != wire.ProtocolRevision {
		logrus.WithFields(logrus.Fields{
			logfield.Component:     ntServer,
			logfield.Event:         "PROTOCOL-UNSUPPORTED",
			logfield.RemoteAddress: session.remoteAddr().String(),
			logfield.ClientName:    hello.Name,
		}).Warnf("client speaks revision 0x%04x", hello.Revision)
		delete(state.sessions, session.id)
		session.sendAndClose(&wire.ProtocolVersionUnsupported{Revision: wire.ProtocolRevision})
		return
	}

	var flags uint8
	if state.seenClients[hello.Name] {
		flags |= wire.ServerHelloFlagClientSeen
	}
	state.seenClients[hello.Name] = true
	session.name = hello.Name
	session.phase = awaitingClientHelloComplete

	packets := make([]wire.Packet, 0, state.table.Len()+2)
	packets = append(packets, &wire.ServerHello{Flags: flags, Name: s.ServerName})
	state.table.Ascend("", func(e entry.Entry) bool {
		packets = append(packets, assignmentOf(e))
		return true
	})
	packets = append(packets, &wire.ServerHelloComplete{})
	if !session.send(packets...) {
		s.dropSession(state, session)
	}
}

func (s *RealServer) handleClientHelloComplete(state *serverState, session *clientSession) {
	if session.phase != awaitingClientHelloComplete {
		return
	}
	session.phase = sessionActive
	s.callbacks.NotifyConnection(callback.ClientConnected, session.remoteAddr())
	logrus.WithFields(logrus.Fields{
		logfield.Component:     ntServer,
		logfield.Event:         "CLIENT-CONNECTED",
		logfield.RemoteAddress: session.remoteAddr().String(),
		logfield.ClientName:    session.name,
	}).Infof("client finished handshake")
}

// handleEntryAssignment creates an entry on behalf of a client. When the
// name is taken the client is told about the existing entry instead,
// and its value is applied as an update if the types agree.
func (s *RealServer) handleEntryAssignment(state *serverState, session *clientSession, assignment *wire.EntryAssignment) {
	if assignment.ID != entry.NewEntryID {
		s.logIgnored(session, "ENTRY-ASSIGNMENT", nil)
		return
	}
	data := entry.EntryData{
		Name:   assignment.Name,
		Flags:  assignment.Flags,
		Value:  assignment.Value,
		Seqnum: assignment.Seqnum,
	}
	_, createErr := s.applyCreate(state, data)
	if createErr == nil {
		return
	}
	alreadyExists, isAlreadyExists := createErr.(*entry.EntryAlreadyExistsError)
	if !isAlreadyExists {
		s.logIgnored(session, "ENTRY-ASSIGNMENT", createErr)
		return
	}
	existingData, _ := state.table.Get(alreadyExists.ID)
	existing := entry.Entry{ID: alreadyExists.ID, EntryData: existingData}
	if existing.EntryType() == assignment.Value.Type && !existing.Value.Equal(assignment.Value) {
		if updated, updateErr := s.applyUpdate(state, session, existing.ID, assignment.Value, existing.Seqnum+1); updateErr == nil {
			existing = updated
		}
	}
	if !session.send(assignmentOf(existing)) {
		s.dropSession(state, session)
	}
}

// handleRPCExecute runs the procedure off the loop and answers the
// caller. Missing procedures answer with an empty result.
func (s *RealServer) handleRPCExecute(state *serverState, session *clientSession, call *wire.RPCExecute) {
	procedure := state.procedures[call.ID]
	go func() {
		result := runProcedure(call.ID, procedure, call.Parameter)
		session.send(&wire.RPCResponse{ID: call.ID, UniqueID: call.UniqueID, Result: result})
	}()
}

func (s *RealServer) logIgnored(session *clientSession, event string, reason error) {
	fields := logrus.Fields{
		logfield.Component:     ntServer,
		logfield.Event:         event,
		logfield.RemoteAddress: session.remoteAddr().String(),
		logfield.ClientName:    session.name,
	}
	if reason != nil {
		fields[logfield.ErrorReason] = reason.Error()
	}
	logrus.WithFields(fields).Debugf("ignoring packet from client")
}
