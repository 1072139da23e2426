package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sqlancer/internal/experr"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	d, err := Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestQueryReturnsDriverText(t *testing.T) {
	d := openMemory(t)
	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE t0 (id BIGINT NOT NULL, c0 BOOLEAN, c1 TEXT, c2 DOUBLE)",
		"INSERT INTO t0 VALUES (1, TRUE, 'a', 1.5), (2, NULL, NULL, NULL)",
	} {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	rs, err := d.Query(ctx, "SELECT id, c0, c1, c2 FROM t0 ORDER BY id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rs.Len() != 2 || len(rs.Columns) != 4 {
		t.Fatalf("expected 2x4 result, got %d rows %v", rs.Len(), rs.Columns)
	}
	if got := rs.Rows[0].String(); got != "1\ttrue\ta\t1.5" {
		t.Fatalf("unexpected first row %q", got)
	}
	for i, v := range rs.Rows[1][1:] {
		if !v.Null {
			t.Fatalf("expected NULL in column %d, got %q", i+1, v.S)
		}
	}
}

func TestErrorsCarryCodes(t *testing.T) {
	d := openMemory(t)
	_, err := d.Query(context.Background(), "SELECT * FROM missing_table")
	if err == nil {
		t.Fatalf("expected error")
	}
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected DatabaseError, got %T", err)
	}
	if code, ok := experr.Code(err); !ok || code == 0 {
		t.Fatalf("expected a driver code, got %d %v", code, ok)
	}
	if dbErr.Query != "SELECT * FROM missing_table" {
		t.Fatalf("unexpected query %q", dbErr.Query)
	}
}

func TestValidateRejectsBeforeExecution(t *testing.T) {
	d := openMemory(t)
	executed := false
	d.Validate = func(q string) error {
		if strings.Contains(q, "FORM") {
			return errors.New("syntax error")
		}
		return nil
	}
	d.Observe = func(string, time.Duration, error) { executed = true }
	_, err := d.Query(context.Background(), "SELECT 1 FORM t0")
	if !errors.Is(err, experr.ErrRejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if executed {
		t.Fatalf("rejected statement reached the database")
	}
	if got := (experr.Set{}).ClassifyError(err); got != experr.Expected {
		t.Fatalf("expected rejection to classify as expected, got %s", got)
	}
}

func TestStatementTimeout(t *testing.T) {
	d := openMemory(t)
	d.Timeout = 20 * time.Millisecond
	query := "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c) SELECT COUNT(*) FROM c"
	_, err := d.Query(context.Background(), query)
	if err == nil {
		t.Fatalf("expected timeout")
	}
	if got := (experr.Set{}).ClassifyError(err); got != experr.Timeout {
		t.Fatalf("expected timeout classification, got %s (%v)", got, err)
	}
	d.Timeout = 0
	if _, err := d.Query(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("session unusable after timeout: %v", err)
	}
}

func TestEnsureDatabaseKeepsSession(t *testing.T) {
	d := openMemory(t)
	ctx := context.Background()
	if err := d.EnsureDatabase(ctx, []string{"CREATE TABLE marker (x INT)", "PRAGMA foreign_keys = ON"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	d.reset()
	rs, err := d.Query(ctx, "PRAGMA foreign_keys")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rs.Len() != 1 || rs.Rows[0][0].S != "1" {
		t.Fatalf("session init not replayed: %v", rs.Rows)
	}
}
