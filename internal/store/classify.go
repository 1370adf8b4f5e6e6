package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Classify maps a database or transport error onto one of the store error kinds.
// Errors that already carry a kind keep it; anything unrecognised is treated
// as a transient outage.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if kind := KindOf(err); kind != nil {
		return kind
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, driver.ErrBadConn):
		return ErrUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501", strings.HasPrefix(pgErr.Code, "28"):
			// insufficient_privilege, invalid authorization
			return ErrPermissionDenied
		case pgErr.Code == "57014":
			// query_canceled, raised for statement timeouts
			return ErrTimeout
		default:
			return ErrUnavailable
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrUnavailable
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrAuth:
			return ErrPermissionDenied
		default:
			return ErrUnavailable
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	return ErrUnavailable
}
