package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/lingo-api/internal/store"
)

// SQLSTATE codes the task store distinguishes.
const (
	uniqueViolationCode      = "23505"
	checkViolationCode       = "23514"
	notNullViolationCode     = "23502"
	invalidTextCode          = "22P02"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// MapError translates driver errors into store sentinels, keeping the
// original error in the chain for logs. Unknown errors pass through.
//
// Constraint violations become ErrInvalidEntity: the check constraints on
// translation_tasks mirror domain validation, so hitting one means a record
// bypassed it. Serialization failures and deadlocks are lost races and map
// to ErrConflict like a failed compare-and-set.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case checkViolationCode:
		return fmt.Errorf("%w: constraint %s: %v", store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case notNullViolationCode:
		return fmt.Errorf("%w: column %s is required: %v", store.ErrInvalidEntity, pgErr.ColumnName, err)
	case invalidTextCode:
		return fmt.Errorf("%w: malformed value: %v", store.ErrInvalidEntity, err)
	case serializationFailureCode, deadlockDetectedCode:
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	default:
		return err
	}
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// which for translation_tasks means the task id is already taken.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
