package datastore

import "fmt"

// InvalidEntryDataError is returned when an entry
// cannot be created out of the given data
type InvalidEntryDataError struct {
	Reason string
}

func (e *InvalidEntryDataError) Error() string {
	return fmt.Sprintf("invalid entry: %s", e.Reason)
}
