package compare

import (
	"context"
	"fmt"

	"sqlancer/internal/experr"
)

// Kind is the verdict of a comparison.
type Kind int

const (
	Equal Kind = iota
	Mismatch
	// Inconclusive means a query hit an expected error or timed out.
	Inconclusive
	// Error means a query failed with an error outside the filter.
	Error
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Mismatch:
		return "mismatch"
	case Inconclusive:
		return "inconclusive"
	default:
		return "error"
	}
}

// Options selects the comparison semantics for one call.
type Options struct {
	OrderSensitive bool
	// Set deduplicates both sides before comparing.
	Set bool
	// Errors overrides the comparator's filter for this call.
	Errors experr.Filter
}

// Outcome describes a comparison. Expected is the primary side, Actual the
// concatenated secondary side, both canonicalized.
type Outcome struct {
	Kind        Kind
	Reason      string
	Expected    *ResultSet
	Actual      *ResultSet
	Missing     []Row
	Extra       []Row
	Queries     []string
	FailedQuery string
	Class       experr.Classification
	Err         error
}

// Comparator executes queries through Exec and compares canonical results.
type Comparator struct {
	Exec   Executor
	Filter experr.Filter
	Canon  CanonOptions
}

// Run executes queries in order and returns their canonical concatenation.
// On failure it returns nil and an outcome of kind Inconclusive or Error.
func (c *Comparator) Run(ctx context.Context, queries []string, filter experr.Filter) (*ResultSet, *Outcome) {
	if filter == nil {
		filter = c.Filter
	}
	var parts []*ResultSet
	for _, q := range queries {
		rs, err := c.Exec.Query(ctx, q)
		if err != nil {
			out := &Outcome{Kind: Error, Queries: append([]string(nil), queries...), FailedQuery: q, Err: err}
			class := experr.Unexpected
			if filter != nil {
				class = filter.ClassifyError(err)
			}
			out.Class = class
			switch class {
			case experr.Expected:
				out.Kind = Inconclusive
				out.Reason = "expected_error"
			case experr.Timeout:
				out.Kind = Inconclusive
				out.Reason = "timeout"
			default:
				out.Reason = "unexpected_error"
			}
			return nil, out
		}
		parts = append(parts, c.Canon.ResultSet(rs))
	}
	return Concat(parts...), nil
}

// Compare runs primary and secondary and compares the concatenated results.
func (c *Comparator) Compare(ctx context.Context, primary, secondary []string, opts Options) Outcome {
	queries := append(append([]string(nil), primary...), secondary...)
	expected, failed := c.Run(ctx, primary, opts.Errors)
	if failed != nil {
		failed.Queries = queries
		return *failed
	}
	actual, failed := c.Run(ctx, secondary, opts.Errors)
	if failed != nil {
		failed.Queries = queries
		return *failed
	}
	return CompareSets(expected, actual, opts, queries)
}

// CompareSets compares two already canonical result sets.
func CompareSets(expected, actual *ResultSet, opts Options, queries []string) Outcome {
	if opts.Set {
		expected = Dedup(expected)
		actual = Dedup(actual)
	}
	out := Outcome{Kind: Equal, Expected: expected, Actual: actual, Queries: queries}
	out.Missing, out.Extra = Diff(expected, actual)
	if len(out.Missing) > 0 || len(out.Extra) > 0 {
		out.Kind = Mismatch
		out.Reason = fmt.Sprintf("rows_differ: %d missing, %d extra", len(out.Missing), len(out.Extra))
		if expected.Len() != actual.Len() {
			out.Reason = fmt.Sprintf("row_count: expected %d, got %d", expected.Len(), actual.Len())
		}
		return out
	}
	if opts.OrderSensitive {
		for i := range expected.Rows {
			if expected.Rows[i].Key() != actual.Rows[i].Key() {
				out.Kind = Mismatch
				out.Reason = fmt.Sprintf("order_differs at row %d", i)
				return out
			}
		}
	}
	return out
}
