package persist

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/su225/networktables/node/entry"
)

// EntryPersistence defines the operations that must be supported
// by implementations wishing to keep persistent entries across
// restarts of the server
type EntryPersistence interface {
	// PersistEntries replaces whatever was stored before with
	// the given entries. If there is an error it is returned
	PersistEntries(entries []entry.Entry) error

	// RetrieveEntries returns the stored entries. Nothing
	// stored yet is not an error
	RetrieveEntries() ([]entry.Entry, error)
}

type persistedFile struct {
	Checksum uint64          `json:"checksum"`
	Entries  json.RawMessage `json:"entries"`
}

// FileBasedEntryPersistence keeps entries in a JSON file together
// with the xxhash of the serialized entries so that a truncated or
// hand-edited file is detected on load
type FileBasedEntryPersistence struct {
	FilePath string
}

// NewFileBasedEntryPersistence creates a new instance of file-based
// entry persistence writing to filePath
func NewFileBasedEntryPersistence(filePath string) *FileBasedEntryPersistence {
	return &FileBasedEntryPersistence{FilePath: filePath}
}

// PersistEntries writes to a temporary file first and renames it over
// the previous one so that a crash never leaves a partial file behind
func (p *FileBasedEntryPersistence) PersistEntries(entries []entry.Entry) error {
	if entries == nil {
		entries = []entry.Entry{}
	}
	entriesBytes, marshalErr := json.Marshal(entries)
	if marshalErr != nil {
		return errors.Wrap(marshalErr, "marshal entries")
	}
	fileBytes, marshalErr := json.Marshal(&persistedFile{
		Checksum: xxhash.Sum64(entriesBytes),
		Entries:  entriesBytes,
	})
	if marshalErr != nil {
		return errors.Wrap(marshalErr, "marshal persisted file")
	}
	tempFile, tempErr := ioutil.TempFile(filepath.Dir(p.FilePath), filepath.Base(p.FilePath)+".tmp")
	if tempErr != nil {
		return errors.Wrap(tempErr, "create temporary file")
	}
	tempPath := tempFile.Name()
	_, writeErr := tempFile.Write(fileBytes)
	closeErr := tempFile.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Chmod(tempPath, 0600)
	}
	if writeErr != nil {
		os.Remove(tempPath)
		return errors.Wrap(writeErr, "write temporary file")
	}
	return errors.Wrap(os.Rename(tempPath, p.FilePath), "replace persisted file")
}

// RetrieveEntries reads the entries back. A missing file yields no
// entries; a checksum mismatch yields ChecksumMismatchError
func (p *FileBasedEntryPersistence) RetrieveEntries() ([]entry.Entry, error) {
	fileBytes, readErr := ioutil.ReadFile(p.FilePath)
	if os.IsNotExist(readErr) {
		return []entry.Entry{}, nil
	}
	if readErr != nil {
		return nil, errors.Wrap(readErr, "read persisted file")
	}
	var persisted persistedFile
	if unmarshalErr := json.Unmarshal(fileBytes, &persisted); unmarshalErr != nil {
		return nil, errors.Wrap(unmarshalErr, "unmarshal persisted file")
	}
	if actual := xxhash.Sum64(persisted.Entries); actual != persisted.Checksum {
		return nil, &ChecksumMismatchError{
			FilePath: p.FilePath,
			Expected: persisted.Checksum,
			Actual:   actual,
		}
	}
	var entries []entry.Entry
	if unmarshalErr := json.Unmarshal(persisted.Entries, &entries); unmarshalErr != nil {
		return nil, errors.Wrap(unmarshalErr, "unmarshal entries")
	}
	return entries, nil
}
