package entry

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// EntryType is the type tag of an entry value. The numeric
// values are the ones used on the wire.
type EntryType uint8

const (
	TypeBoolean      EntryType = 0x00
	TypeDouble       EntryType = 0x01
	TypeString       EntryType = 0x02
	TypeRaw          EntryType = 0x03
	TypeBooleanArray EntryType = 0x10
	TypeDoubleArray  EntryType = 0x11
	TypeStringArray  EntryType = 0x12
	TypeRPC          EntryType = 0x20
)

var entryTypeNames = map[EntryType]string{
	TypeBoolean:      "boolean",
	TypeDouble:       "double",
	TypeString:       "string",
	TypeRaw:          "raw",
	TypeBooleanArray: "boolean[]",
	TypeDoubleArray:  "double[]",
	TypeStringArray:  "string[]",
	TypeRPC:          "rpc",
}

// Valid returns true if the type is one of the known entry types
func (t EntryType) Valid() bool {
	_, known := entryTypeNames[t]
	return known
}

func (t EntryType) String() string {
	if name, known := entryTypeNames[t]; known {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(t))
}

// ParseEntryType returns the entry type with the given name.
// Names are matched case-insensitively.
func ParseEntryType(name string) (EntryType, error) {
	for t, n := range entryTypeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return 0, &InvalidEntryTypeError{Name: name}
}

// RPCDefinition describes a remote procedure. Only version 0
// definitions, which carry no further metadata, are supported.
type RPCDefinition struct {
	Version uint8 `json:"version"`
}

// EntryValue is a typed value. Only the field matching Type
// is meaningful; use the constructors to build values.
type EntryValue struct {
	Type         EntryType
	Boolean      bool
	Double       float64
	Text         string
	Raw          []byte
	BooleanArray []bool
	DoubleArray  []float64
	StringArray  []string
	RPC          RPCDefinition
}

func BooleanValue(b bool) EntryValue {
	return EntryValue{Type: TypeBoolean, Boolean: b}
}

func DoubleValue(d float64) EntryValue {
	return EntryValue{Type: TypeDouble, Double: d}
}

func StringValue(s string) EntryValue {
	return EntryValue{Type: TypeString, Text: s}
}

func RawValue(b []byte) EntryValue {
	return EntryValue{Type: TypeRaw, Raw: b}
}

func BooleanArrayValue(b []bool) EntryValue {
	return EntryValue{Type: TypeBooleanArray, BooleanArray: b}
}

func DoubleArrayValue(d []float64) EntryValue {
	return EntryValue{Type: TypeDoubleArray, DoubleArray: d}
}

func StringArrayValue(s []string) EntryValue {
	return EntryValue{Type: TypeStringArray, StringArray: s}
}

// RPCValue returns the value of a version 0 procedure entry
func RPCValue() EntryValue {
	return EntryValue{Type: TypeRPC, RPC: RPCDefinition{Version: 0}}
}

// Equal reports whether both values have the same type and payload.
// Doubles are compared bit-wise so that NaN equals itself.
func (v EntryValue) Equal(other EntryValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeBoolean:
		return v.Boolean == other.Boolean
	case TypeDouble:
		return math.Float64bits(v.Double) == math.Float64bits(other.Double)
	case TypeString:
		return v.Text == other.Text
	case TypeRaw:
		return bytes.Equal(v.Raw, other.Raw)
	case TypeBooleanArray:
		if len(v.BooleanArray) != len(other.BooleanArray) {
			return false
		}
		for i := range v.BooleanArray {
			if v.BooleanArray[i] != other.BooleanArray[i] {
				return false
			}
		}
		return true
	case TypeDoubleArray:
		if len(v.DoubleArray) != len(other.DoubleArray) {
			return false
		}
		for i := range v.DoubleArray {
			if math.Float64bits(v.DoubleArray[i]) != math.Float64bits(other.DoubleArray[i]) {
				return false
			}
		}
		return true
	case TypeStringArray:
		if len(v.StringArray) != len(other.StringArray) {
			return false
		}
		for i := range v.StringArray {
			if v.StringArray[i] != other.StringArray[i] {
				return false
			}
		}
		return true
	case TypeRPC:
		return v.RPC == other.RPC
	}
	return false
}

func (v EntryValue) String() string {
	switch v.Type {
	case TypeBoolean:
		return fmt.Sprintf("%t", v.Boolean)
	case TypeDouble:
		return fmt.Sprintf("%g", v.Double)
	case TypeString:
		return fmt.Sprintf("%q", v.Text)
	case TypeRaw:
		return fmt.Sprintf("raw(%d bytes)", len(v.Raw))
	case TypeBooleanArray:
		return fmt.Sprintf("%v", v.BooleanArray)
	case TypeDoubleArray:
		return fmt.Sprintf("%v", v.DoubleArray)
	case TypeStringArray:
		return fmt.Sprintf("%q", v.StringArray)
	case TypeRPC:
		return fmt.Sprintf("rpc(v%d)", v.RPC.Version)
	}
	return v.Type.String()
}
