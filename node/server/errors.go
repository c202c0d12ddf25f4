package server

import "fmt"

// ProcedureNotFoundError occurs when a procedure call targets an
// entry that no local procedure serves
type ProcedureNotFoundError struct {
	ID uint16
}

func (e *ProcedureNotFoundError) Error() string {
	return fmt.Sprintf("no procedure registered for entry %d", e.ID)
}
