package experr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

type codedErr struct {
	code int
	msg  string
}

func (e codedErr) Error() string           { return e.msg }
func (e codedErr) ErrorCode() (int, bool) { return e.code, true }

func testRegistry() *Registry {
	return NewRegistry(map[Group]Rules{
		Cast:           {Substrings: []string{"Truncated incorrect"}, Codes: []int{1292}},
		DivisionByZero: {Substrings: []string{"division by zero"}},
		Expression:     {Patterns: []string{`value is out of range in '.*'`}},
	})
}

func TestClassifyBySubstringCodeAndPattern(t *testing.T) {
	reg := testRegistry()
	set := reg.Set(Cast, DivisionByZero, Expression)

	cases := []struct {
		err  error
		want Classification
	}{
		{errors.New("ERROR: DIVISION BY ZERO"), Expected},
		{&mysql.MySQLError{Number: 1292, Message: "whatever"}, Expected},
		{fmt.Errorf("wrapped: %w", &mysql.MySQLError{Number: 1105, Message: "internal"}), Unexpected},
		{codedErr{code: 1292, msg: "coded"}, Expected},
		{errors.New("BIGINT value is out of range in '(t0.c0 + 1)'"), Expected},
		{errors.New("unique constraint failed"), Unexpected},
		{context.DeadlineExceeded, Timeout},
		{fmt.Errorf("%w: line 1 column 7 near \"FORM\"", ErrRejected), Expected},
		{errors.New("Error 3024: Query execution was interrupted, maximum statement execution time exceeded"), Timeout},
	}
	for i, tc := range cases {
		if got := set.ClassifyError(tc.err); got != tc.want {
			t.Fatalf("case %d (%v): expected %s, got %s", i, tc.err, tc.want, got)
		}
	}
}

func TestSetsComposeAdditively(t *testing.T) {
	reg := testRegistry()
	narrow := reg.Set(Cast)
	wide := reg.Set(Cast, DivisionByZero)
	msg := "division by zero"
	if narrow.Classify(msg) != Unexpected {
		t.Fatalf("narrow set should not match %q", msg)
	}
	if wide.Classify(msg) != Expected {
		t.Fatalf("wide set should match %q", msg)
	}
	if wide.Len() <= narrow.Len() {
		t.Fatalf("expected merge to grow the set: %d <= %d", wide.Len(), narrow.Len())
	}
	if reg.Set(Join).Len() != 0 {
		t.Fatalf("unknown group should be empty")
	}
}

func TestBuildFreezesSet(t *testing.T) {
	b := NewBuilder().Add("first")
	s := b.Build()
	b.Add("second")
	if s.Classify("second failure") != Unexpected {
		t.Fatalf("frozen set observed later additions")
	}
	if b.Build().Classify("second failure") != Expected {
		t.Fatalf("builder lost additions")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	set := testRegistry().Set(Cast, DivisionByZero, Expression)
	msgs := []string{"Truncated incorrect DOUBLE value: 'a'", "boom", "division by zero", ""}
	for _, m := range msgs {
		first := set.Classify(m)
		for i := 0; i < 50; i++ {
			if got := set.Classify(m); got != first {
				t.Fatalf("classification of %q changed from %s to %s", m, first, got)
			}
		}
	}
}
