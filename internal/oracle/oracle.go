// Package oracle implements the metamorphic checks: pivoted query synthesis
// and the ternary logic partitioning variants.
package oracle

import (
	"context"
	"math/rand"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
)

// Kind is the verdict of one check.
type Kind int

const (
	Pass Kind = iota
	// Skip means the check was abandoned and proves nothing.
	Skip
	Finding
)

func (k Kind) String() string {
	switch k {
	case Pass:
		return "pass"
	case Skip:
		return "skip"
	default:
		return "finding"
	}
}

// Result is the outcome of one check. Skips are OK with a skip_reason
// detail; findings carry every query needed to reproduce them.
type Result struct {
	OK       bool
	Oracle   string
	Kind     Kind
	SQL      []string
	Expected string
	Actual   string
	Details  map[string]any
	Err      error
}

// SkipReason returns the skip_reason detail, if any.
func (r Result) SkipReason() string {
	if r.Details == nil {
		return ""
	}
	reason, _ := r.Details["skip_reason"].(string)
	return reason
}

// Oracle is a single metamorphic check.
type Oracle interface {
	Name() string
	Check(ctx context.Context, s *Session) Result
}

// Options tunes the oracles for one dialect and run.
type Options struct {
	MaxJoinTables         int
	MaxGenerationAttempts int
	// SupportsIsTrue selects IS TRUE / IS FALSE over bare and NOT forms
	// when rectifying.
	SupportsIsTrue bool
	// RandomFunc orders the pivot sample, e.g. RAND().
	RandomFunc string
	// AuxWhereProb is the percent chance TLP adds an auxiliary WHERE.
	AuxWhereProb int
}

// Session is everything one worker's checks need. It is owned by a single
// goroutine.
type Session struct {
	Exec    compare.Executor
	Compare *compare.Comparator
	Printer sqlast.Printer
	Eval    *ternary.Evaluator
	Gen     *generator.Generator
	State   *schema.State
	Errors  *experr.Registry
	Rand    *rand.Rand
	Opts    Options
}

// Builtin returns every oracle in a stable order.
func Builtin() []Oracle {
	return []Oracle{PQS{}, TLPWhere{}, TLPHaving{}, TLPDistinct{}, TLPAggregate{}}
}

// ByName looks up a built-in oracle.
func ByName(name string) (Oracle, bool) {
	for _, o := range Builtin() {
		if o.Name() == name {
			return o, true
		}
	}
	return nil, false
}

func (s *Session) filter(groups ...experr.Group) experr.Filter {
	return s.Errors.Set(groups...)
}

func (s *Session) attempts() int {
	if s.Opts.MaxGenerationAttempts <= 0 {
		return 100
	}
	return s.Opts.MaxGenerationAttempts
}

func (s *Session) maxJoinTables() int {
	return max(s.Opts.MaxJoinTables, 1)
}

// query executes one statement and maps a failure onto the error taxonomy.
// The rows are returned as the driver rendered them.
func (s *Session) query(ctx context.Context, sql string, filter experr.Filter) (*compare.ResultSet, error) {
	rs, err := s.Exec.Query(ctx, sql)
	if err != nil {
		return nil, dbError([]string{sql}, sql, err, filter.ClassifyError(err))
	}
	return rs, nil
}

// filteredExec runs statements through Session.query so helpers outside
// this package see failures already mapped onto the error taxonomy.
type filteredExec struct {
	s      *Session
	filter experr.Filter
}

func (e filteredExec) Query(ctx context.Context, sql string) (*compare.ResultSet, error) {
	return e.s.query(ctx, sql, e.filter)
}
