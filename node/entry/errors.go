package entry

import "fmt"

// InvalidEntryTypeError is returned when a type byte or type
// name does not denote any known entry type
type InvalidEntryTypeError struct {
	Type EntryType
	Name string
}

// InvalidValueError is returned when a value cannot be built
// for the given type out of the supplied representation
type InvalidValueError struct {
	Type   EntryType
	Reason string
}

// EntryNotFoundError is returned when there is no entry with
// the given ID (or name, when looked up by name)
type EntryNotFoundError struct {
	ID   uint16
	Name string
}

// EntryAlreadyExistsError is returned when an entry is created
// with a name that is already taken. ID is the existing entry
type EntryAlreadyExistsError struct {
	Name string
	ID   uint16
}

// TypeMismatchError is returned when an update carries a value
// whose type differs from the type the entry was created with
type TypeMismatchError struct {
	ID       uint16
	Expected EntryType
	Actual   EntryType
}

// StaleSequenceNumberError is returned when an update is not
// newer than what is already stored
type StaleSequenceNumberError struct {
	ID       uint16
	Current  uint16
	Received uint16
}

// TableFullError is returned when all entry IDs are in use
type TableFullError struct{}

func (e *InvalidEntryTypeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown entry type %q", e.Name)
	}
	return fmt.Sprintf("unknown entry type 0x%02x", uint8(e.Type))
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s value: %s", e.Type, e.Reason)
}

func (e *EntryNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("entry %q does not exist", e.Name)
	}
	return fmt.Sprintf("entry with id %d does not exist", e.ID)
}

func (e *EntryAlreadyExistsError) Error() string {
	return fmt.Sprintf("entry %q already exists with id %d", e.Name, e.ID)
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("entry %d has type %s, got %s", e.ID, e.Expected, e.Actual)
}

func (e *StaleSequenceNumberError) Error() string {
	return fmt.Sprintf("entry %d: sequence number %d is not newer than %d", e.ID, e.Received, e.Current)
}

func (e *TableFullError) Error() string {
	return "no free entry id left"
}
