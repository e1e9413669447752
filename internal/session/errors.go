package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a top-level operation is invoked while another
	// ingest, add-image or save is still in flight on the same session.
	ErrBusy = errors.New("session busy")

	// ErrNoPagesToSave is returned by Save when the ledger is empty.
	ErrNoPagesToSave = errors.New("no pages to save")
)

// IngestionError reports a failed file during an ingest batch. Files that
// completed before the failing one stay committed.
type IngestionError struct {
	File string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.File, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// AssemblyError reports a failed page copy or serialization during save.
// No partial output is produced.
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble output document: %v", e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }
