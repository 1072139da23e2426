// Package db owns one worker's database session: a single pinned
// connection with per-statement timeouts.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
)

// DB is a session on one pinned connection. Session state such as the
// current database survives across statements. It is not safe for
// concurrent use.
type DB struct {
	Driver  string
	DSN     string
	Timeout time.Duration
	// Validate, when set, checks a statement before it is sent.
	Validate func(query string) error
	// Observe, when set, sees every executed statement.
	Observe func(query string, elapsed time.Duration, err error)

	pool *sql.DB
	conn *sql.Conn
	init []string
}

// Open connects with the named driver ("mysql" or "sqlite3").
func Open(driverName, dsn string) (*DB, error) {
	pool, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open %s", driverName)
	}
	pool.SetMaxOpenConns(2)
	pool.SetMaxIdleConns(1)
	return &DB{Driver: driverName, DSN: dsn, pool: pool}, nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	conn, err := d.connection(ctx)
	if err != nil {
		return err
	}
	return pkgerrors.Wrap(conn.PingContext(ctx), "ping")
}

// Close releases the session and the pool.
func (d *DB) Close() error {
	var errs []error
	if d.conn != nil {
		errs = append(errs, d.conn.Close())
		d.conn = nil
	}
	errs = append(errs, d.pool.Close())
	return errors.Join(errs...)
}

func (d *DB) connection(ctx context.Context) (*sql.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}
	conn, err := d.pool.Conn(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "acquire connection")
	}
	for _, stmt := range d.init {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, pkgerrors.Wrapf(err, "session init %q", stmt)
		}
	}
	d.conn = conn
	return conn, nil
}

// reset drops a broken connection so the next call pins a fresh one.
func (d *DB) reset() {
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.Timeout)
}

// ExecContext runs a statement that returns no rows.
func (d *DB) ExecContext(ctx context.Context, query string) (int64, error) {
	if err := d.validate(query); err != nil {
		return 0, err
	}
	var affected int64
	err := d.do(ctx, query, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, query)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

// Query runs a statement and returns every row as driver text.
func (d *DB) Query(ctx context.Context, query string) (*compare.ResultSet, error) {
	if err := d.validate(query); err != nil {
		return nil, err
	}
	var rs *compare.ResultSet
	err := d.do(ctx, query, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		rs, err = readRows(rows)
		return err
	})
	return rs, err
}

// do runs fn on the pinned connection with the statement timeout. A bad
// connection is replaced once; database/sql guarantees the statement did
// not run in that case.
func (d *DB) do(ctx context.Context, query string, fn func(context.Context, *sql.Conn) error) error {
	start := time.Now()
	err := d.try(ctx, fn)
	if errors.Is(err, driver.ErrBadConn) {
		d.reset()
		err = d.try(ctx, fn)
	}
	if d.Observe != nil {
		d.Observe(query, time.Since(start), err)
	}
	if err != nil {
		return wrapError(query, err)
	}
	return nil
}

func (d *DB) try(ctx context.Context, fn func(context.Context, *sql.Conn) error) error {
	conn, err := d.connection(ctx)
	if err != nil {
		return err
	}
	qctx, cancel := d.withTimeout(ctx)
	defer cancel()
	err = fn(qctx, conn)
	if err != nil && qctx.Err() != nil && ctx.Err() == nil {
		// the driver may report cancellation in its own words
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		d.reset()
	}
	return err
}

func (d *DB) validate(query string) error {
	if d.Validate == nil {
		return nil
	}
	if err := d.Validate(query); err != nil {
		return &ValidationError{Query: query, Err: err}
	}
	return nil
}

func readRows(rows *sql.Rows) (*compare.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &compare.ResultSet{Columns: cols}
	cells := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(compare.Row, len(cols))
		for i, c := range cells {
			row[i] = compare.Value{S: c.String, Null: !c.Valid}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, rows.Err()
}

// DatabaseError is a statement failure with the driver's error number
// when one is known.
type DatabaseError struct {
	Query string
	Code  int
	Err   error
}

func (e *DatabaseError) Error() string { return e.Err.Error() }

func (e *DatabaseError) Unwrap() error { return e.Err }

// ErrorCode returns the driver error number.
func (e *DatabaseError) ErrorCode() (int, bool) { return e.Code, e.Code != 0 }

// ValidationError is a statement the syntax pre-check refused.
type ValidationError struct {
	Query string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{experr.ErrRejected, e.Err} }

func wrapError(query string, err error) error {
	out := &DatabaseError{Query: query, Err: err}
	var mysqlErr *mysql.MySQLError
	var sqliteErr sqlite3.Error
	switch {
	case errors.As(err, &mysqlErr):
		out.Code = int(mysqlErr.Number)
	case errors.As(err, &sqliteErr):
		out.Code = int(sqliteErr.Code)
	}
	return out
}
