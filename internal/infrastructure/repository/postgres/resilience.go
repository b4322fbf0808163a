package postgres

import (
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/procurement-intake/internal/infrastructure/resilience"
)

var classifyPostgresError = resilience.TransientClassifier(isTransientPostgresError)

// isTransientPostgresError covers connection loss, serialization conflicts and
// server shutdown; constraint or syntax errors are permanent.
func isTransientPostgresError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "53300", "57P01", "57P02", "57P03":
		return true
	}
	return strings.HasPrefix(pgErr.Code, "08")
}
