package wire

import (
	"github.com/su225/networktables/node/entry"
)

// PacketID is the first byte of every packet
type PacketID byte

const (
	KeepAliveID                  PacketID = 0x00
	ClientHelloID                PacketID = 0x01
	ProtocolVersionUnsupportedID PacketID = 0x02
	ServerHelloCompleteID        PacketID = 0x03
	ServerHelloID                PacketID = 0x04
	ClientHelloCompleteID        PacketID = 0x05
	EntryAssignmentID            PacketID = 0x10
	EntryUpdateID                PacketID = 0x11
	EntryFlagsUpdateID           PacketID = 0x12
	EntryDeleteID                PacketID = 0x13
	ClearAllEntriesID            PacketID = 0x14
	RPCExecuteID                 PacketID = 0x20
	RPCResponseID                PacketID = 0x21
)

const (
	// ProtocolRevision is the only protocol revision spoken (3.0)
	ProtocolRevision uint16 = 0x0300

	// ClearAllMagic must accompany a clear-all request
	ClearAllMagic uint32 = 0xD06CB27A

	// ServerHelloFlagClientSeen is set in ServerHello when the
	// server has seen a client with the same name before
	ServerHelloFlagClientSeen uint8 = 0x01

	// MaxLength bounds the length of strings and raw values and the
	// number of array elements accepted while decoding
	MaxLength = 1 << 24
)

// Packet is implemented by every protocol message
type Packet interface {
	PacketID() PacketID
}

// KeepAlive keeps an idle connection open
type KeepAlive struct{}

// ClientHello starts the handshake
type ClientHello struct {
	Revision uint16
	Name     string
}

// ProtocolVersionUnsupported is the server's answer to a
// ClientHello with a revision it does not speak
type ProtocolVersionUnsupported struct {
	Revision uint16
}

// ServerHelloComplete ends the server's part of the handshake
type ServerHelloComplete struct{}

// ServerHello answers ClientHello
type ServerHello struct {
	Flags uint8
	Name  string
}

// ClientHelloComplete ends the handshake
type ClientHelloComplete struct{}

// EntryAssignment announces an entry. Clients send it with
// entry.NewEntryID to ask the server to create the entry.
type EntryAssignment struct {
	Name   string
	ID     uint16
	Seqnum uint16
	Flags  uint8
	Value  entry.EntryValue
}

// EntryUpdate carries a new value of an entry
type EntryUpdate struct {
	ID     uint16
	Seqnum uint16
	Value  entry.EntryValue
}

// EntryFlagsUpdate carries new flags of an entry
type EntryFlagsUpdate struct {
	ID    uint16
	Flags uint8
}

// EntryDelete removes an entry
type EntryDelete struct {
	ID uint16
}

// ClearAllEntries removes every entry. It is ignored unless
// Magic is ClearAllMagic.
type ClearAllEntries struct {
	Magic uint32
}

// RPCExecute invokes the procedure behind an rpc entry
type RPCExecute struct {
	ID        uint16
	UniqueID  uint16
	Parameter []byte
}

// RPCResponse returns the result of an RPCExecute with the same UniqueID
type RPCResponse struct {
	ID       uint16
	UniqueID uint16
	Result   []byte
}

// NewClearAllEntries returns a clear-all request carrying the magic
func NewClearAllEntries() *ClearAllEntries {
	return &ClearAllEntries{Magic: ClearAllMagic}
}

// IsValid tells if the request carries the right magic
func (p *ClearAllEntries) IsValid() bool {
	return p.Magic == ClearAllMagic
}

func (*KeepAlive) PacketID() PacketID                  { return KeepAliveID }
func (*ClientHello) PacketID() PacketID                { return ClientHelloID }
func (*ProtocolVersionUnsupported) PacketID() PacketID { return ProtocolVersionUnsupportedID }
func (*ServerHelloComplete) PacketID() PacketID        { return ServerHelloCompleteID }
func (*ServerHello) PacketID() PacketID                { return ServerHelloID }
func (*ClientHelloComplete) PacketID() PacketID        { return ClientHelloCompleteID }
func (*EntryAssignment) PacketID() PacketID            { return EntryAssignmentID }
func (*EntryUpdate) PacketID() PacketID                { return EntryUpdateID }
func (*EntryFlagsUpdate) PacketID() PacketID           { return EntryFlagsUpdateID }
func (*EntryDelete) PacketID() PacketID                { return EntryDeleteID }
func (*ClearAllEntries) PacketID() PacketID            { return ClearAllEntriesID }
func (*RPCExecute) PacketID() PacketID                 { return RPCExecuteID }
func (*RPCResponse) PacketID() PacketID                { return RPCResponseID }
