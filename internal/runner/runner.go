// Package runner drives one worker: it builds a random database, then runs
// weighted oracle checks against it and reports findings.
package runner

import (
	"context"
	"math/rand"
	"time"

	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/compare"
	"sqlancer/internal/config"
	"sqlancer/internal/db"
	"sqlancer/internal/dialect"
	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/oracle"
	"sqlancer/internal/report"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/uploader"
	"sqlancer/internal/util"
	"sqlancer/internal/validator"
)

const (
	// mutateProb is the percent chance an iteration first changes the data.
	mutateProb = 5
	// insertsPerRefresh bounds the INSERTs of one mutation.
	insertsPerRefresh = 2
)

// Runner owns one worker's session and everything it generates. It is not
// safe for concurrent use; main starts one Runner per worker.
type Runner struct {
	cfg      config.Config
	worker   int
	dialect  *dialect.Dialect
	exec     *db.DB
	printer  sqlast.Printer
	gen      *generator.Generator
	provider *schema.Provider
	session  *oracle.Session
	reporter *report.Reporter
	uploader uploader.Uploader
	oracles  []oracle.Oracle
	weights  []int
	// tables mirrors the schema with the next free id of every table.
	tables    []schema.Table
	ddlLog    []string
	insertLog []string
	stats     *stats
}

// New wires a runner for worker over an open session. The session's
// Validate and Observe hooks are installed here.
func New(cfg config.Config, worker int, d *dialect.Dialect, exec *db.DB, up uploader.Uploader) *Runner {
	r := rand.New(rand.NewSource(cfg.Seed + int64(worker)))
	printer := d.NewPrinter()
	gen := generator.New(r, d.GeneratorOptions(cfg.MaxExpressionDepth, cfg.MaxColumns))
	canon := compare.CanonOptions{RoundScale: cfg.Oracles.RoundScale, BoolAsInt: d.BoolAsInt || cfg.Oracles.BoolAsInt}
	registry := d.Registry()
	if up == nil {
		up = uploader.NoopUploader{}
	}
	run := &Runner{
		cfg:      cfg,
		worker:   worker,
		dialect:  d,
		exec:     exec,
		printer:  printer,
		gen:      gen,
		provider: &schema.Provider{Exec: exec, Intro: d.Introspection, Printer: printer},
		reporter: report.New(cfg.ReportDir, cfg.MaxDataDumpRows),
		uploader: up,
		stats:    newStats(),
	}
	run.session = &oracle.Session{
		Exec:    exec,
		Compare: &compare.Comparator{Exec: exec, Filter: registry.Set(experr.Expression), Canon: canon},
		Printer: printer,
		Eval:    d.Evaluator(cfg.OnlyKnownTypes),
		Gen:     gen,
		State:   &schema.State{},
		Errors:  registry,
		Rand:    r,
		Opts: oracle.Options{
			MaxJoinTables:         cfg.MaxJoinTables,
			MaxGenerationAttempts: cfg.MaxGenerationAttempts,
			SupportsIsTrue:        d.SupportsIsTrue,
			RandomFunc:            d.RandomFunc,
			AuxWhereProb:          cfg.Oracles.AuxWhereProb,
		},
	}
	byName := cfg.Weights.Oracles.ByName()
	for _, o := range oracle.Builtin() {
		run.oracles = append(run.oracles, o)
		run.weights = append(run.weights, byName[o.Name()])
	}
	if d.ValidateSyntax && cfg.ValidateSQL {
		exec.Validate = validator.New().Validate
	}
	exec.Observe = run.stats.observeSQL
	return run
}

// OpenSession opens the database session of worker with the statement
// timeout applied. Workers of a file-backed dialect get separate stores.
func OpenSession(cfg config.Config, worker int, d *dialect.Dialect) (*db.DB, error) {
	exec, err := db.Open(d.Driver, d.SessionDSN(cfg.DSN, worker, cfg.Workers))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "worker %d connect", worker)
	}
	exec.Timeout = time.Duration(cfg.StatementTimeoutMs) * time.Millisecond
	return exec, nil
}

// Run sets the database up and checks until the iteration budget is spent
// or ctx is cancelled. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context) error {
	stop := r.startStatsLogger()
	defer stop()
	util.Infof("worker=%d start dialect=%s database=%s iterations=%d seed=%d",
		r.worker, r.dialect.Name, r.cfg.WorkerDatabase(r.worker), r.cfg.Iterations, r.cfg.Seed+int64(r.worker))
	if err := r.setup(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return pkgerrors.Wrapf(err, "worker %d setup", r.worker)
	}
	if err := r.refresh(ctx); err != nil {
		return err
	}
	for i := 0; r.cfg.Iterations <= 0 || i < r.cfg.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if util.Chance(r.session.Rand, mutateProb) {
			r.mutate(ctx)
		}
		o := r.oracles[util.PickWeighted(r.session.Rand, r.weights)]
		start := time.Now()
		result := o.Check(ctx, r.session)
		if ctx.Err() != nil {
			// a cancelled check proves nothing
			break
		}
		r.stats.record(result, time.Since(start))
		if result.Kind == oracle.Finding {
			r.handleResult(ctx, result)
		}
	}
	util.Infof("worker=%d done %s", r.worker, r.stats.summary())
	return nil
}

// Stats returns a snapshot of the per-oracle counters.
func (r *Runner) Stats() map[string]Funnel {
	return r.stats.snapshot()
}
