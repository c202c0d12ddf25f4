package wire

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/su225/networktables/node/entry"
)

// Marshal encodes the packets back to back
func Marshal(packets ...Packet) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range packets {
		if err := Encode(&buf, p); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Encode appends the encoding of the packet to buf
func Encode(buf *bytes.Buffer, p Packet) error {
	buf.WriteByte(byte(p.PacketID()))
	switch packet := p.(type) {
	case *KeepAlive, *ServerHelloComplete, *ClientHelloComplete:
	case *ClientHello:
		writeU16(buf, packet.Revision)
		writeString(buf, packet.Name)
	case *ProtocolVersionUnsupported:
		writeU16(buf, packet.Revision)
	case *ServerHello:
		buf.WriteByte(packet.Flags)
		writeString(buf, packet.Name)
	case *EntryAssignment:
		writeString(buf, packet.Name)
		buf.WriteByte(byte(packet.Value.Type))
		writeU16(buf, packet.ID)
		writeU16(buf, packet.Seqnum)
		buf.WriteByte(packet.Flags)
		return errors.Wrapf(EncodeValue(buf, packet.Value), "entry %q", packet.Name)
	case *EntryUpdate:
		writeU16(buf, packet.ID)
		writeU16(buf, packet.Seqnum)
		buf.WriteByte(byte(packet.Value.Type))
		return errors.Wrapf(EncodeValue(buf, packet.Value), "entry %d", packet.ID)
	case *EntryFlagsUpdate:
		writeU16(buf, packet.ID)
		buf.WriteByte(packet.Flags)
	case *EntryDelete:
		writeU16(buf, packet.ID)
	case *ClearAllEntries:
		writeU32(buf, packet.Magic)
	case *RPCExecute:
		writeU16(buf, packet.ID)
		writeU16(buf, packet.UniqueID)
		writeBytes(buf, packet.Parameter)
	case *RPCResponse:
		writeU16(buf, packet.ID)
		writeU16(buf, packet.UniqueID)
		writeBytes(buf, packet.Result)
	default:
		return &UnknownPacketError{ID: byte(p.PacketID())}
	}
	return nil
}

// EncodeValue appends the payload of the value, without its type byte
func EncodeValue(buf *bytes.Buffer, v entry.EntryValue) error {
	switch v.Type {
	case entry.TypeBoolean:
		writeBool(buf, v.Boolean)
	case entry.TypeDouble:
		writeDouble(buf, v.Double)
	case entry.TypeString:
		writeString(buf, v.Text)
	case entry.TypeRaw:
		writeBytes(buf, v.Raw)
	case entry.TypeBooleanArray:
		writeLength(buf, len(v.BooleanArray))
		for _, b := range v.BooleanArray {
			writeBool(buf, b)
		}
	case entry.TypeDoubleArray:
		writeLength(buf, len(v.DoubleArray))
		for _, d := range v.DoubleArray {
			writeDouble(buf, d)
		}
	case entry.TypeStringArray:
		writeLength(buf, len(v.StringArray))
		for _, s := range v.StringArray {
			writeString(buf, s)
		}
	case entry.TypeRPC:
		if v.RPC.Version != 0 {
			return &InvalidRPCDefinitionError{Length: 1, Version: v.RPC.Version}
		}
		writeLength(buf, 1)
		buf.WriteByte(0)
	default:
		return &InvalidEntryTypeError{Type: v.Type}
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], v)
	buf.Write(scratch[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], v)
	buf.Write(scratch[:])
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
		return
	}
	buf.WriteByte(0)
}

func writeDouble(buf *bytes.Buffer, d float64) {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], math.Float64bits(d))
	buf.Write(scratch[:])
}

func writeLength(buf *bytes.Buffer, n int) {
	var scratch [10]byte
	buf.Write(AppendUleb128(scratch[:0], uint64(n)))
}

func writeString(buf *bytes.Buffer, s string) {
	writeLength(buf, len(s))
	buf.WriteString(s)
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeLength(buf, len(b))
	buf.Write(b)
}
