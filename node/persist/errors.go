package persist

import "fmt"

// ChecksumMismatchError occurs when the stored checksum does not
// match the stored entries
type ChecksumMismatchError struct {
	FilePath string
	Expected uint64
	Actual   uint64
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch in %s: expected %x, got %x", e.FilePath, e.Expected, e.Actual)
}
