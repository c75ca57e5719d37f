package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a duplicate key failure from any
// supported driver. A non-empty constraint narrows the match to that
// constraint or index.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	name, ok := uniqueViolation(err)
	if !ok {
		return false
	}
	return constraint == "" || name == constraint || strings.Contains(err.Error(), constraint)
}

func uniqueViolation(err error) (constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.ConstraintName, pgxErr.Code == pgUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint, string(pqErr.Code) == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	// sqlite only reports text, e.g. "UNIQUE constraint failed: t.col".
	msg := err.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed: "); i >= 0 {
		return strings.TrimPrefix(msg[i:], "UNIQUE constraint failed: "), true
	}
	return "", strings.Contains(msg, "duplicate key value")
}
