package rpc

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/rpc/ntpb"
	"github.com/su225/networktables/node/wire"
)

// ConvertEntryToProtobuf converts the entry from in-memory format
// to the format as defined in protocol-buffer. The value is carried
// in its NetworkTables encoding.
func ConvertEntryToProtobuf(e entry.Entry) (*ntpb.Entry, error) {
	var value bytes.Buffer
	if encodeErr := wire.EncodeValue(&value, e.Value); encodeErr != nil {
		return nil, errors.Wrapf(encodeErr, "encoding value of %s", e.Name)
	}
	return &ntpb.Entry{
		Name:   e.Name,
		Id:     uint32(e.ID),
		Seqnum: uint32(e.Seqnum),
		Flags:  uint32(e.Flags),
		Type:   uint32(e.Value.Type),
		Value:  value.Bytes(),
	}, nil
}

// ConvertProtobufToEntry is the inverse of ConvertEntryToProtobuf.
// Values with trailing bytes are rejected.
func ConvertProtobufToEntry(pbEntry *ntpb.Entry) (entry.Entry, error) {
	if pbEntry == nil {
		return entry.Entry{}, &MissingEntryError{}
	}
	if pbEntry.GetId() > 0xFFFF || pbEntry.GetSeqnum() > 0xFFFF || pbEntry.GetFlags() > 0xFF || pbEntry.GetType() > 0xFF {
		return entry.Entry{}, &FieldOutOfRangeError{Entry: pbEntry.GetName()}
	}
	entryType := entry.EntryType(pbEntry.GetType())
	reader := bytes.NewReader(pbEntry.GetValue())
	value, decodeErr := wire.DecodeValue(reader, entryType)
	if decodeErr == io.EOF {
		decodeErr = io.ErrUnexpectedEOF
	}
	if decodeErr != nil {
		return entry.Entry{}, errors.Wrapf(decodeErr, "decoding value of %s", pbEntry.GetName())
	}
	if reader.Len() != 0 {
		return entry.Entry{}, &TrailingValueBytesError{Entry: pbEntry.GetName(), Count: reader.Len()}
	}
	return entry.Entry{
		ID: uint16(pbEntry.GetId()),
		EntryData: entry.EntryData{
			Name:   pbEntry.GetName(),
			Flags:  uint8(pbEntry.GetFlags()),
			Value:  value,
			Seqnum: uint16(pbEntry.GetSeqnum()),
		},
	}, nil
}
