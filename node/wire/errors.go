package wire

import (
	"fmt"

	"github.com/su225/networktables/node/entry"
)

// UnknownPacketError is returned when the packet ID byte is not
// part of protocol revision 3.0
type UnknownPacketError struct {
	ID byte
}

// InvalidEntryTypeError is returned when a type byte is unknown
type InvalidEntryTypeError struct {
	Type entry.EntryType
}

// InvalidRPCDefinitionError is returned for procedure definitions
// other than version 0
type InvalidRPCDefinitionError struct {
	Length  uint64
	Version byte
}

// LengthTooLargeError is returned when a string, raw value or array
// announces more elements than MaxLength
type LengthTooLargeError struct {
	Length uint64
}

// Uleb128OverflowError is returned when a LEB128 number does not fit 64 bits
type Uleb128OverflowError struct{}

func (e *UnknownPacketError) Error() string {
	return fmt.Sprintf("unknown packet id 0x%02x", e.ID)
}

func (e *InvalidEntryTypeError) Error() string {
	return fmt.Sprintf("invalid entry type 0x%02x", uint8(e.Type))
}

func (e *InvalidRPCDefinitionError) Error() string {
	return fmt.Sprintf("unsupported rpc definition (length=%d, version=%d)", e.Length, e.Version)
}

func (e *LengthTooLargeError) Error() string {
	return fmt.Sprintf("length %d exceeds maximum of %d", e.Length, MaxLength)
}

func (e *Uleb128OverflowError) Error() string {
	return "uleb128 value overflows 64 bits"
}
