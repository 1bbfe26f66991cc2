package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hotelchat/internal/pkg/errs"
)

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
// The violated constraint name is returned alongside.
func IsUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// internal wraps a driver failure into ErrUnknown, keeping it as cause.
func internal(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errs.As(err); ok {
		return err
	}
	return errs.NewError(errs.ErrUnknown, err)
}
