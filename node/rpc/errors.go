package rpc

import "fmt"

// MissingEntryError is returned when a message that must carry
// an entry does not
type MissingEntryError struct{}

// FieldOutOfRangeError is returned when a numeric field of an
// entry does not fit the NetworkTables representation
type FieldOutOfRangeError struct {
	Entry string
}

// TrailingValueBytesError is returned when an encoded value is
// followed by unexpected bytes
type TrailingValueBytesError struct {
	Entry string
	Count int
}

func (e *MissingEntryError) Error() string {
	return "entry is missing"
}

func (e *FieldOutOfRangeError) Error() string {
	return fmt.Sprintf("a field of entry %q is out of range", e.Entry)
}

func (e *TrailingValueBytesError) Error() string {
	return fmt.Sprintf("value of entry %q is followed by %d unexpected bytes", e.Entry, e.Count)
}
