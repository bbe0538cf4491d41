package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/gurkanbulca/taskboard/internal/remote"
)

// SQLSTATE codes shared by both drivers.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeCheckViolation      = "23514"
)

// wrap converts driver errors into remote errors carrying a SQLSTATE code.
func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %w", op, &remote.Error{
			Message: pqErr.Message,
			Code:    string(pqErr.Code),
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
		})
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return fmt.Errorf("%s: %w", op, &remote.Error{
			Message: liteErr.Error(),
			Code:    sqliteCode(liteErr),
		})
	}

	return fmt.Errorf("%s: %w", op, err)
}

func sqliteCode(err sqlite3.Error) string {
	switch err.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return CodeUniqueViolation
	case sqlite3.ErrConstraintForeignKey:
		return CodeForeignKeyViolation
	case sqlite3.ErrConstraintNotNull:
		return CodeNotNullViolation
	case sqlite3.ErrConstraintCheck:
		return CodeCheckViolation
	}
	return fmt.Sprintf("SQLITE_%d", int(err.ExtendedCode))
}
