package entry

// FlagPersistent marks an entry that the server keeps across restarts
const FlagPersistent uint8 = 0x01

// EntryData is everything known about an entry apart from its ID.
type EntryData struct {
	Name   string     `json:"name"`
	Flags  uint8      `json:"flags"`
	Value  EntryValue `json:"value"`
	Seqnum uint16     `json:"seqnum"`
}

// NewEntryData returns entry data with the initial sequence number 1
func NewEntryData(name string, flags uint8, value EntryValue) EntryData {
	return EntryData{
		Name:   name,
		Flags:  flags,
		Value:  value,
		Seqnum: 1,
	}
}

// EntryType returns the type of the value held by the entry
func (d EntryData) EntryType() EntryType {
	return d.Value.Type
}

// IsPersistent tells if the persistent flag is set
func (d EntryData) IsPersistent() bool {
	return d.Flags&FlagPersistent != 0
}

// Clone returns a deep copy so that the slices of array values
// are not shared with the table the data came from. Nil slices
// stay nil.
func (d EntryData) Clone() EntryData {
	cloned := d
	if d.Value.Raw != nil {
		cloned.Value.Raw = append([]byte{}, d.Value.Raw...)
	}
	if d.Value.BooleanArray != nil {
		cloned.Value.BooleanArray = append([]bool{}, d.Value.BooleanArray...)
	}
	if d.Value.DoubleArray != nil {
		cloned.Value.DoubleArray = append([]float64{}, d.Value.DoubleArray...)
	}
	if d.Value.StringArray != nil {
		cloned.Value.StringArray = append([]string{}, d.Value.StringArray...)
	}
	return cloned
}

// Entry is a snapshot of an entry together with its ID
type Entry struct {
	ID uint16 `json:"id"`
	EntryData
}

// SeqnumNewer reports whether sequence number a is newer than b.
// Sequence numbers wrap around, so they are compared using serial
// number arithmetic (RFC 1982) on 16 bits.
func SeqnumNewer(a, b uint16) bool {
	return a != b && uint16(a-b) < 0x8000
}
