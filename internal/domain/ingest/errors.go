package ingest

import (
	"errors"
	"fmt"
)

// ErrStorage is the kind matched by every StorageError.
var ErrStorage = errors.New("ingest storage failure")

// Operations named by StorageError.
const (
	opInsertRaw = "ingest.insert_raw"
	opUpdateRaw = "ingest.update_raw"
	opFindUser  = "ingest.find_user"
	opIncrement = "ingest.increment_performance"
)

// StorageError reports a persistence failure that aborted a batch.
// Records handled before the failure stay committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) hold for any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
