package oracle

import (
	"errors"
	"fmt"
	"strings"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/schema"
	"sqlancer/internal/ternary"
)

// ErrTimeout marks a statement that exceeded its timeout.
var ErrTimeout = errors.New("statement timeout")

// ErrNoTables means no table qualified for the check.
var ErrNoTables = errors.New("no usable tables")

// ErrNoAggregateColumn means no column can feed the chosen aggregate.
var ErrNoAggregateColumn = errors.New("no column for aggregate")

// ExpectedDatabaseError is a failure the dialect's filter accepts.
type ExpectedDatabaseError struct {
	Query string
	Err   error
}

func (e *ExpectedDatabaseError) Error() string {
	return fmt.Sprintf("expected error: %v", e.Err)
}

func (e *ExpectedDatabaseError) Unwrap() error { return e.Err }

// UnexpectedDatabaseError is a failure outside the filter. It is a finding.
type UnexpectedDatabaseError struct {
	Queries []string
	Query   string
	Err     error
}

func (e *UnexpectedDatabaseError) Error() string {
	return fmt.Sprintf("unexpected error in %q: %v", e.Query, e.Err)
}

func (e *UnexpectedDatabaseError) Unwrap() error { return e.Err }

// MismatchError reports that two result sets that must agree did not.
type MismatchError struct {
	Queries  []string
	Reason   string
	Expected *compare.ResultSet
	Actual   *compare.ResultSet
}

func (e *MismatchError) Error() string {
	return "result mismatch: " + e.Reason
}

// InvariantError is an internal inconsistency, never a database bug.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

func dbError(queries []string, query string, err error, class experr.Classification) error {
	switch class {
	case experr.Expected:
		return &ExpectedDatabaseError{Query: query, Err: err}
	case experr.Timeout:
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return &UnexpectedDatabaseError{Queries: queries, Query: query, Err: err}
	}
}

// classify decides whether err abandons the check or is a finding.
func classify(err error) Kind {
	var unexpected *UnexpectedDatabaseError
	var mismatch *MismatchError
	switch {
	case err == nil:
		return Pass
	case errors.As(err, &unexpected), errors.As(err, &mismatch):
		return Finding
	default:
		return Skip
	}
}

// abandonReason names why err abandoned a check.
func abandonReason(err error) string {
	var expected *ExpectedDatabaseError
	var invariant *InvariantError
	switch {
	case errors.Is(err, generator.ErrGenerationExhausted):
		return "generation_exhausted"
	case errors.Is(err, ternary.ErrUnsupportedExpression):
		return "unsupported_expression"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, schema.ErrNoRows):
		return "no_rows"
	case errors.Is(err, ErrNoTables):
		return "no_tables"
	case errors.Is(err, ErrNoAggregateColumn):
		return "no_aggregate_column"
	case errors.As(err, &expected):
		return "expected_error"
	case errors.As(err, &invariant):
		return "invariant"
	default:
		return "error"
	}
}

// resultForError turns a failed check into a Skip or a Finding.
func resultForError(oracle string, err error, details map[string]any) Result {
	if details == nil {
		details = map[string]any{}
	}
	var unexpected *UnexpectedDatabaseError
	var mismatch *MismatchError
	switch {
	case errors.As(err, &mismatch):
		details["reason"] = mismatch.Reason
		return Result{
			Oracle:   oracle,
			Kind:     Finding,
			SQL:      mismatch.Queries,
			Expected: formatResultSet(mismatch.Expected),
			Actual:   formatResultSet(mismatch.Actual),
			Details:  details,
			Err:      err,
		}
	case errors.As(err, &unexpected):
		details["failed_query"] = unexpected.Query
		if code, ok := experr.Code(err); ok {
			details["error_code"] = code
		}
		return Result{
			Oracle:   oracle,
			Kind:     Finding,
			SQL:      unexpected.Queries,
			Expected: "no error",
			Actual:   unexpected.Err.Error(),
			Details:  details,
			Err:      err,
		}
	}
	details["skip_reason"] = oracle + ":" + abandonReason(err)
	return Result{OK: true, Oracle: oracle, Kind: Skip, Details: details, Err: err}
}

// resultForOutcome maps a comparator outcome onto a result.
func resultForOutcome(oracle string, out compare.Outcome, details map[string]any) Result {
	switch out.Kind {
	case compare.Equal:
		return Result{OK: true, Oracle: oracle, Kind: Pass, SQL: out.Queries, Details: details}
	case compare.Mismatch:
		if details == nil {
			details = map[string]any{}
		}
		details["missing"] = rowStrings(out.Missing)
		details["extra"] = rowStrings(out.Extra)
		return resultForError(oracle, &MismatchError{
			Queries:  out.Queries,
			Reason:   out.Reason,
			Expected: out.Expected,
			Actual:   out.Actual,
		}, details)
	default:
		return resultForError(oracle, dbError(out.Queries, out.FailedQuery, out.Err, out.Class), details)
	}
}

const maxFormattedRows = 20

func formatResultSet(rs *compare.ResultSet) string {
	if rs == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows", rs.Len())
	for i, row := range rs.Rows {
		if i == maxFormattedRows {
			b.WriteString("\n...")
			break
		}
		b.WriteString("\n")
		b.WriteString(row.String())
	}
	return b.String()
}

func rowStrings(rows []compare.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.String())
	}
	return out
}
