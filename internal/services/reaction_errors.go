package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

var (
	ErrTargetNotFound = errors.New("reaction target not found")
	ErrUnknownTarget  = errors.New("unknown reaction target")
	ErrTxClosed       = errors.New("transaction is not active")
	// ErrCounterDrift means a counter update would have gone negative: the
	// cached counters no longer match the reaction rows. Reconcile repairs it.
	ErrCounterDrift = errors.New("reaction counters out of sync with reaction rows")
)

// ValidationError rejects caller input before any transaction starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageError wraps a failed database operation on reaction rows or counters.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TxStage is a step of a reaction transaction.
type TxStage string

const (
	StageBegin           TxStage = "begin"
	StageLockRead        TxStage = "lock_read"
	StageMutateRow       TxStage = "mutate_row"
	StageProjectCounters TxStage = "project_counters"
	StageCommit          TxStage = "commit"
)

// ReactionTxError reports a reaction transaction that failed at Stage. The
// transaction has already been rolled back when this error is returned.
type ReactionTxError struct {
	Target models.TargetKind
	Op     string
	Stage  TxStage
	Err    error
}

func (e *ReactionTxError) Error() string {
	return fmt.Sprintf("%s %s reaction failed at %s: %v", e.Op, e.Target, e.Stage, e.Err)
}

func (e *ReactionTxError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func validateIDs(userID, targetID int64) error {
	if userID <= 0 {
		return &ValidationError{Field: "user_id", Message: "must be a positive integer"}
	}
	if targetID <= 0 {
		return &ValidationError{Field: "target_id", Message: "must be a positive integer"}
	}
	return nil
}

// IsRetryable reports whether err is a transient conflict (lock timeout,
// deadlock, statement timeout) that the caller may retry unchanged.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch pgErrorCode(err) {
	case pgLockNotAvailable, pgDeadlockDetected, pgQueryCanceled:
		return true
	}
	return false
}
