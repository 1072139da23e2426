// Package validator rejects generated statements the MySQL grammar cannot
// parse before they reach the server, so a generator slip is never
// mistaken for an engine bug.
package validator

import (
	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver" // Register TiDB parser driver.
	pkgerrors "github.com/pkg/errors"
)

// Validator wraps the TiDB parser. A parser keeps state between calls, so
// each worker owns its own Validator.
type Validator struct {
	parser *parser.Parser
}

// New returns a Validator instance.
func New() *Validator {
	return &Validator{parser: parser.New()}
}

// Validate parses sql and returns the syntax error, if any. Only a single
// statement is accepted.
func (v *Validator) Validate(sql string) error {
	stmts, _, err := v.parser.Parse(sql, "", "")
	if err != nil {
		return err
	}
	if len(stmts) != 1 {
		return pkgerrors.Errorf("expected one statement, parsed %d", len(stmts))
	}
	return nil
}
