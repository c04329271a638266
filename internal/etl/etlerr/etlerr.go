package etlerr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// TransientError marks a storage failure worth retrying at the batch-commit
// boundary (connectivity, timeouts). The batch is re-attempted from its start.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: transient: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// IntegrityError marks a storage constraint violation on dimension resolve or
// fact insert. Never retried automatically.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string { return fmt.Sprintf("%s: integrity: %v", e.Op, e.Err) }
func (e *IntegrityError) Unwrap() error { return e.Err }

// ValidationError marks a malformed row. The row is rejected and the job
// continues.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Reason, e.Detail)
}

// GateError marks a quality-gate threshold breach. The batch is rolled back.
type GateError struct {
	BatchSeq    int64
	FailedRules []string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("quality gate failed for batch %d: %s", e.BatchSeq, strings.Join(e.FailedRules, ", "))
}

// FatalError aborts the run. The checkpoint is left at the last good state so
// the job can be resumed manually.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsIntegrity(err error) bool {
	var t *IntegrityError
	return errors.As(err, &t)
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

func IsGateFailure(err error) bool {
	var t *GateError
	return errors.As(err, &t)
}

func IsFatal(err error) bool {
	var t *FatalError
	return errors.As(err, &t)
}

// ClassifyStorage maps a raw storage error into the taxonomy. SQLSTATE class
// 23 (constraint violations) and gorm duplicate-key become IntegrityError;
// class 08 (connection), 53 (insufficient resources), query_canceled and
// context timeouts become TransientError. Anything else passes through
// untouched so the caller can decide.
func ClassifyStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return &IntegrityError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Op: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		case strings.HasPrefix(code, "23"):
			return &IntegrityError{Op: op, Err: err}
		case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), code == "57014":
			return &TransientError{Op: op, Err: err}
		}
	}
	if pgconn.Timeout(err) {
		return &TransientError{Op: op, Err: err}
	}
	return err
}
