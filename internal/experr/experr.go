// Package experr decides whether a database error is one the oracles are
// allowed to provoke. Sets are built additively from per-feature groups and
// frozen before use; classification is pure.
package experr

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Classification is the verdict for one error.
type Classification int

const (
	// Unexpected errors are findings.
	Unexpected Classification = iota
	// Expected errors abandon the check.
	Expected
	// Timeout errors abandon the check and are counted separately.
	Timeout
)

func (c Classification) String() string {
	switch c {
	case Expected:
		return "expected"
	case Timeout:
		return "timeout"
	default:
		return "unexpected"
	}
}

// Filter classifies errors raised while executing oracle queries.
type Filter interface {
	ClassifyError(err error) Classification
}

// ErrRejected marks a statement refused before it reached the database,
// e.g. by a syntax pre-check. It is always expected.
var ErrRejected = errors.New("statement rejected before execution")

// Coded is implemented by errors that carry a driver error number.
type Coded interface {
	ErrorCode() (int, bool)
}

// timeoutMarkers are lower-case fragments engines use for cancelled statements.
var timeoutMarkers = []string{
	"context deadline exceeded",
	"query execution was interrupted",
	"maximum statement execution time exceeded",
	"interrupted",
}

// Set is an immutable collection of expected-error rules.
type Set struct {
	substrings []string
	patterns   []*regexp.Regexp
	codes      map[int]struct{}
}

// Len returns the number of rules in the set.
func (s Set) Len() int {
	return len(s.substrings) + len(s.patterns) + len(s.codes)
}

// Classify matches an error message. It cannot detect driver codes.
func (s Set) Classify(message string) Classification {
	msg := strings.ToLower(message)
	for _, marker := range timeoutMarkers {
		if strings.Contains(msg, marker) {
			return Timeout
		}
	}
	for _, sub := range s.substrings {
		if strings.Contains(msg, sub) {
			return Expected
		}
	}
	for _, re := range s.patterns {
		if re.MatchString(message) {
			return Expected
		}
	}
	return Unexpected
}

// ClassifyError classifies err by context state, driver code, then message.
func (s Set) ClassifyError(err error) Classification {
	if err == nil {
		return Expected
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	if errors.Is(err, ErrRejected) {
		return Expected
	}
	if code, ok := Code(err); ok {
		if _, hit := s.codes[code]; hit {
			return Expected
		}
	}
	return s.Classify(err.Error())
}

// Code extracts a driver error number from err.
func Code(err error) (int, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return int(mysqlErr.Number), true
	}
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return 0, false
}

// Builder accumulates rules. The zero value is ready to use.
type Builder struct {
	substrings map[string]struct{}
	patterns   map[string]*regexp.Regexp
	codes      map[int]struct{}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers case-insensitive substrings.
func (b *Builder) Add(substrings ...string) *Builder {
	if b.substrings == nil {
		b.substrings = make(map[string]struct{})
	}
	for _, s := range substrings {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			b.substrings[s] = struct{}{}
		}
	}
	return b
}

// AddPattern registers a regular expression. It panics on an invalid
// pattern since rules are static dialect data.
func (b *Builder) AddPattern(exprs ...string) *Builder {
	if b.patterns == nil {
		b.patterns = make(map[string]*regexp.Regexp)
	}
	for _, e := range exprs {
		b.patterns[e] = regexp.MustCompile(e)
	}
	return b
}

// AddCodes registers driver error numbers.
func (b *Builder) AddCodes(codes ...int) *Builder {
	if b.codes == nil {
		b.codes = make(map[int]struct{})
	}
	for _, c := range codes {
		b.codes[c] = struct{}{}
	}
	return b
}

// Merge adds every rule of s.
func (b *Builder) Merge(s Set) *Builder {
	b.Add(s.substrings...)
	if b.patterns == nil {
		b.patterns = make(map[string]*regexp.Regexp)
	}
	for _, re := range s.patterns {
		b.patterns[re.String()] = re
	}
	for c := range s.codes {
		b.AddCodes(c)
	}
	return b
}

// Build freezes the accumulated rules. The builder can keep growing
// afterwards without affecting the returned set.
func (b *Builder) Build() Set {
	s := Set{codes: make(map[int]struct{}, len(b.codes))}
	for sub := range b.substrings {
		s.substrings = append(s.substrings, sub)
	}
	sort.Strings(s.substrings)
	keys := make([]string, 0, len(b.patterns))
	for k := range b.patterns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.patterns = append(s.patterns, b.patterns[k])
	}
	for c := range b.codes {
		s.codes[c] = struct{}{}
	}
	return s
}
