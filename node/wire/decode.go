package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/su225/networktables/node/entry"
)

// Reader is what the decoder reads packets from. Both
// bufio.Reader and bytes.Reader satisfy it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// ReadPacket decodes one packet. io.EOF is returned only when the
// input ends cleanly between packets; a packet cut short yields
// io.ErrUnexpectedEOF.
func ReadPacket(r Reader) (Packet, error) {
	id, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	packet, err := readPacketBody(r, PacketID(id))
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return packet, err
}

func readPacketBody(r Reader, id PacketID) (Packet, error) {
	switch id {
	case KeepAliveID:
		return &KeepAlive{}, nil
	case ServerHelloCompleteID:
		return &ServerHelloComplete{}, nil
	case ClientHelloCompleteID:
		return &ClientHelloComplete{}, nil
	case ClientHelloID:
		revision, err := readU16(r)
		if err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		return &ClientHello{Revision: revision, Name: name}, nil
	case ProtocolVersionUnsupportedID:
		revision, err := readU16(r)
		if err != nil {
			return nil, err
		}
		return &ProtocolVersionUnsupported{Revision: revision}, nil
	case ServerHelloID:
		flags, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		return &ServerHello{Flags: flags, Name: name}, nil
	case EntryAssignmentID:
		return readEntryAssignment(r)
	case EntryUpdateID:
		return readEntryUpdate(r)
	case EntryFlagsUpdateID:
		entryID, err := readU16(r)
		if err != nil {
			return nil, err
		}
		flags, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return &EntryFlagsUpdate{ID: entryID, Flags: flags}, nil
	case EntryDeleteID:
		entryID, err := readU16(r)
		if err != nil {
			return nil, err
		}
		return &EntryDelete{ID: entryID}, nil
	case ClearAllEntriesID:
		magic, err := readU32(r)
		if err != nil {
			return nil, err
		}
		return &ClearAllEntries{Magic: magic}, nil
	case RPCExecuteID, RPCResponseID:
		entryID, err := readU16(r)
		if err != nil {
			return nil, err
		}
		uniqueID, err := readU16(r)
		if err != nil {
			return nil, err
		}
		payload, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		if id == RPCExecuteID {
			return &RPCExecute{ID: entryID, UniqueID: uniqueID, Parameter: payload}, nil
		}
		return &RPCResponse{ID: entryID, UniqueID: uniqueID, Result: payload}, nil
	}
	return nil, &UnknownPacketError{ID: byte(id)}
}

func readEntryAssignment(r Reader) (*EntryAssignment, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	typeByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	entryID, err := readU16(r)
	if err != nil {
		return nil, err
	}
	seqnum, err := readU16(r)
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	value, err := DecodeValue(r, entry.EntryType(typeByte))
	if err != nil {
		return nil, err
	}
	return &EntryAssignment{Name: name, ID: entryID, Seqnum: seqnum, Flags: flags, Value: value}, nil
}

func readEntryUpdate(r Reader) (*EntryUpdate, error) {
	entryID, err := readU16(r)
	if err != nil {
		return nil, err
	}
	seqnum, err := readU16(r)
	if err != nil {
		return nil, err
	}
	typeByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	value, err := DecodeValue(r, entry.EntryType(typeByte))
	if err != nil {
		return nil, err
	}
	return &EntryUpdate{ID: entryID, Seqnum: seqnum, Value: value}, nil
}

// DecodeValue reads the payload of a value of the given type
func DecodeValue(r Reader, t entry.EntryType) (entry.EntryValue, error) {
	switch t {
	case entry.TypeBoolean:
		b, err := readBool(r)
		return entry.BooleanValue(b), err
	case entry.TypeDouble:
		d, err := readDouble(r)
		return entry.DoubleValue(d), err
	case entry.TypeString:
		s, err := readString(r)
		return entry.StringValue(s), err
	case entry.TypeRaw:
		b, err := readBytes(r)
		return entry.RawValue(b), err
	case entry.TypeBooleanArray:
		n, err := readLength(r)
		if err != nil {
			return entry.EntryValue{}, err
		}
		booleans := make([]bool, 0, capHint(n))
		for i := uint64(0); i < n; i++ {
			b, err := readBool(r)
			if err != nil {
				return entry.EntryValue{}, err
			}
			booleans = append(booleans, b)
		}
		return entry.BooleanArrayValue(booleans), nil
	case entry.TypeDoubleArray:
		n, err := readLength(r)
		if err != nil {
			return entry.EntryValue{}, err
		}
		doubles := make([]float64, 0, capHint(n))
		for i := uint64(0); i < n; i++ {
			d, err := readDouble(r)
			if err != nil {
				return entry.EntryValue{}, err
			}
			doubles = append(doubles, d)
		}
		return entry.DoubleArrayValue(doubles), nil
	case entry.TypeStringArray:
		n, err := readLength(r)
		if err != nil {
			return entry.EntryValue{}, err
		}
		strs := make([]string, 0, capHint(n))
		for i := uint64(0); i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return entry.EntryValue{}, err
			}
			strs = append(strs, s)
		}
		return entry.StringArrayValue(strs), nil
	case entry.TypeRPC:
		n, err := readLength(r)
		if err != nil {
			return entry.EntryValue{}, err
		}
		if n != 1 {
			return entry.EntryValue{}, &InvalidRPCDefinitionError{Length: n}
		}
		version, err := r.ReadByte()
		if err != nil {
			return entry.EntryValue{}, err
		}
		if version != 0 {
			return entry.EntryValue{}, &InvalidRPCDefinitionError{Length: n, Version: version}
		}
		return entry.RPCValue(), nil
	}
	return entry.EntryValue{}, &InvalidEntryTypeError{Type: t}
}

// capHint keeps a hostile length from causing a large up-front allocation
func capHint(n uint64) int {
	if n > 1024 {
		return 1024
	}
	return int(n)
}

func readU16(r Reader) (uint16, error) {
	var scratch [2]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(scratch[:]), nil
}

func readU32(r Reader) (uint32, error) {
	var scratch [4]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(scratch[:]), nil
}

func readBool(r Reader) (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func readDouble(r Reader) (float64, error) {
	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(scratch[:])), nil
}

func readLength(r Reader) (uint64, error) {
	n, err := ReadUleb128(r)
	if err != nil {
		return 0, err
	}
	if n > MaxLength {
		return 0, &LengthTooLargeError{Length: n}
	}
	return n, nil
}

func readBytes(r Reader) ([]byte, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}
