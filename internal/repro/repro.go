// Package repro replays a case directory written by the reporter.
package repro

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/db"
	"sqlancer/internal/dialect"
	"sqlancer/internal/report"
	"sqlancer/internal/util"
)

// Options configures a reproduction run.
type Options struct {
	CaseDir string
	// Dialect defaults to the one recorded in summary.json.
	Dialect  string
	DSN      string
	Database string
	Timeout  time.Duration
	// UseMin prefers min/repro.sql when it exists.
	UseMin bool
	Out    io.Writer
}

// Run applies schema.sql and inserts.sql, then runs case.sql and prints
// every result. Failures in case.sql are printed rather than returned,
// since an error may be exactly what the case reproduces.
func Run(ctx context.Context, opts Options) error {
	if opts.CaseDir == "" {
		return pkgerrors.New("case dir is required")
	}
	if opts.DSN == "" {
		return pkgerrors.New("dsn is required")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Dialect == "" {
		if summary, err := report.ReadSummary(opts.CaseDir); err == nil {
			opts.Dialect = summary.Dialect
		}
	}
	d, err := dialect.ByName(opts.Dialect)
	if err != nil {
		return err
	}
	if opts.Database == "" {
		opts.Database = "sqlancer_repro"
	}

	exec, err := db.Open(d.Driver, opts.DSN)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(exec, "repro db")
	exec.Timeout = opts.Timeout
	if d.SetupDatabase != nil {
		if err := exec.EnsureDatabase(ctx, d.SetupDatabase(opts.Database)); err != nil {
			return err
		}
	}
	fmt.Fprintf(opts.Out, "dialect=%s database=%s\n", d.Name, opts.Database)

	for _, name := range []string{report.SchemaFile, report.InsertsFile} {
		if err := execFile(ctx, exec, filepath.Join(opts.CaseDir, name), opts.Out); err != nil {
			return pkgerrors.Wrap(err, name)
		}
	}
	path := pickCaseSQL(opts.CaseDir, opts.UseMin)
	stmts, err := readStatements(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.Out, "case_file=%s statements=%d\n", path, len(stmts))
	for i, stmt := range stmts {
		fmt.Fprintf(opts.Out, "-- [%d] %s\n", i+1, stmt)
		rs, err := exec.Query(ctx, stmt)
		if err != nil {
			fmt.Fprintf(opts.Out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(opts.Out, "rows=%d\n", rs.Len())
		for _, row := range rs.Rows {
			fmt.Fprintln(opts.Out, row.String())
		}
	}
	return nil
}

func pickCaseSQL(caseDir string, useMin bool) string {
	if useMin {
		minPath := filepath.Join(caseDir, "min", "repro.sql")
		if info, err := os.Stat(minPath); err == nil && !info.IsDir() {
			return minPath
		}
	}
	return filepath.Join(caseDir, report.CaseFile)
}

// execFile runs every statement of path. A missing file is skipped.
func execFile(ctx context.Context, exec *db.DB, path string, out io.Writer) error {
	stmts, err := readStatements(path)
	if os.IsNotExist(pkgerrors.Cause(err)) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exec_file=%s statements=%d\n", path, len(stmts))
	for i, stmt := range stmts {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.Wrapf(err, "stmt=%d sql=%s", i+1, stmt)
		}
	}
	return nil
}

func readStatements(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	return splitSQL(string(content)), nil
}

// splitSQL cuts a script at semicolons outside quotes and comments.
// Quotes are doubled to escape, which is how every dialect printer writes
// them.
func splitSQL(input string) []string {
	var out []string
	var buf strings.Builder
	var quote byte
	flush := func() {
		if stmt := strings.TrimSpace(buf.String()); stmt != "" {
			out = append(out, stmt)
		}
		buf.Reset()
	}
	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
			continue
		case ch == ';':
			flush()
			continue
		}
		buf.WriteByte(ch)
	}
	flush()
	return out
}
