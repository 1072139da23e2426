package runner

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/util"
)

// setup gives the worker an empty database and fills it with random
// tables and rows.
func (r *Runner) setup(ctx context.Context) error {
	if r.dialect.SetupDatabase != nil {
		if err := r.exec.EnsureDatabase(ctx, r.dialect.SetupDatabase(r.cfg.WorkerDatabase(r.worker))); err != nil {
			return err
		}
	} else if err := r.dropExisting(ctx); err != nil {
		return err
	}
	r.tables = nil
	r.ddlLog = nil
	r.insertLog = nil
	r.gen.SetTableSeq(0)
	for i := 0; i < r.cfg.MaxTables; i++ {
		tbl := r.gen.GenerateTable()
		for _, stmt := range r.gen.CreateTableStatements(tbl) {
			if err := r.execSetup(ctx, stmt); err != nil {
				return err
			}
		}
		target := 1 + r.session.Rand.Intn(max(r.cfg.MaxRowsPerTable, 1))
		for tbl.NextID <= int64(target) {
			if err := r.execInsert(ctx, r.gen.InsertSQL(&tbl, r.printer)); err != nil {
				return err
			}
		}
		r.tables = append(r.tables, tbl)
	}
	return nil
}

// dropExisting clears a database the worker cannot recreate, such as a
// SQLite file.
func (r *Runner) dropExisting(ctx context.Context) error {
	state, err := r.provider.Refresh(ctx)
	if err != nil {
		return err
	}
	for _, tbl := range state.Tables {
		if _, err := r.exec.ExecContext(ctx, generator.DropTableSQL(tbl.Name)); err != nil {
			return pkgerrors.Wrapf(err, "drop %s", tbl.Name)
		}
	}
	return nil
}

func (r *Runner) execSetup(ctx context.Context, stmt string) error {
	if _, err := r.exec.ExecContext(ctx, stmt); err != nil {
		return pkgerrors.Wrapf(err, "setup %q", stmt)
	}
	r.ddlLog = append(r.ddlLog, stmt)
	return nil
}

// execInsert runs an INSERT. Value errors the dialect expects are logged
// and tolerated; the ids the statement consumed are simply skipped.
func (r *Runner) execInsert(ctx context.Context, stmt string) error {
	_, err := r.exec.ExecContext(ctx, stmt)
	if err == nil {
		r.insertLog = append(r.insertLog, stmt)
		return nil
	}
	if r.session.Errors.Set(experr.Expression, experr.Cast).ClassifyError(err) == experr.Expected {
		util.Detailf("worker=%d insert rejected err=%v", r.worker, err)
		return nil
	}
	return pkgerrors.Wrapf(err, "insert %q", stmt)
}

// mutate adds rows or an index to a random table, then refreshes the
// schema so the oracles see it.
func (r *Runner) mutate(ctx context.Context) {
	if len(r.tables) == 0 {
		return
	}
	tbl := &r.tables[r.session.Rand.Intn(len(r.tables))]
	if util.Chance(r.session.Rand, 30) {
		if stmt, ok := r.gen.CreateIndexSQL(tbl); ok {
			if _, err := r.exec.ExecContext(ctx, stmt); err != nil {
				util.Detailf("worker=%d create index failed err=%v", r.worker, err)
			} else {
				r.ddlLog = append(r.ddlLog, stmt)
			}
		}
	} else {
		for i := 0; i < insertsPerRefresh; i++ {
			if err := r.execInsert(ctx, r.gen.InsertSQL(tbl, r.printer)); err != nil {
				util.Warnf("worker=%d insert failed err=%v", r.worker, err)
			}
		}
	}
	if err := r.refresh(ctx); err != nil {
		util.Warnf("worker=%d refresh failed err=%v", r.worker, err)
	}
}

// refresh re-reads the catalog into the session state.
func (r *Runner) refresh(ctx context.Context) error {
	state, err := r.provider.Refresh(ctx)
	if err != nil {
		return pkgerrors.Wrapf(err, "worker %d refresh", r.worker)
	}
	*r.session.State = *state
	return nil
}
