package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrTransient means the store could not answer now; retrying later may work.
	ErrTransient = errors.New("business store unavailable")
	// ErrInvalid means the query itself is wrong; retrying will not help.
	ErrInvalid = errors.New("invalid business query")
)

// MySQL server errors that say nothing about the query itself.
var transientCodes = map[uint16]struct{}{
	1040: {}, // too many connections
	1053: {}, // server shutdown in progress
	1159: {}, // net read timeout
	1161: {}, // net write timeout
	1205: {}, // lock wait timeout
	1213: {}, // deadlock
	1317: {}, // query interrupted
	2006: {}, // server has gone away
	2013: {}, // lost connection during query
	3024: {}, // max_execution_time exceeded
}

// classify wraps a driver error in ErrTransient or ErrInvalid. Unrecognized
// errors are Invalid: a scan or conversion failure is a programming error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		_, ok := transientCodes[me.Number]
		return ok
	}
	var ne net.Error
	return errors.As(err, &ne)
}
