package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when a unique constraint rejects a write. The wrapping error
// names the constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrReferenced is returned when a delete is blocked by rows that still point at the record.
var ErrReferenced = errors.New("record is still referenced")

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	case foreignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReferenced, pgErr.ConstraintName)
	}
	return err
}
