package db

import (
	"context"

	pkgerrors "github.com/pkg/errors"
)

// EnsureDatabase runs the statements that give this session an empty
// database and keeps them so a replacement connection lands in the same
// place. Statements are not validated.
func (d *DB) EnsureDatabase(ctx context.Context, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	conn, err := d.connection(ctx)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.Wrapf(err, "setup %q", stmt)
		}
	}
	// Only the statement that selects the database is needed on reconnect.
	d.init = stmts[len(stmts)-1:]
	return nil
}
