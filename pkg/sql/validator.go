// Package sql statically validates generated SQL against a schema. Nothing in
// this package connects to a database.
package sql

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// Options tunes the validator.
type Options struct {
	// ScanLiterals runs libinjection over every string literal and reports
	// literals that look like injected SQL.
	ScanLiterals bool `yaml:"scan_literals" env:"SQL_SCAN_LITERALS" env-default:"false"`
}

// ValidationReport is the outcome of validating one SQL string.
// Errors is never nil; a valid query has an empty list.
type ValidationReport struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// Validator checks SQL against one schema. It holds no per-call state and is
// safe for concurrent use.
type Validator struct {
	index  *schemaIndex
	opts   Options
	logger *zap.Logger
}

// NewValidator indexes the schema for repeated validation.
func NewValidator(schema *models.SchemaModel, opts Options, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		index:  newSchemaIndex(schema),
		opts:   opts,
		logger: logger.Named("sql"),
	}
}

// Validate runs, in order, the syntax, table, column and read-only checks.
// Errors accumulate across checks; only an unrecoverable syntax error stops
// analysis early.
func (v *Validator) Validate(sqlQuery string) ValidationReport {
	a := &analyzer{schema: v.index, errs: newCollector(), opts: v.opts}
	a.statement(sqlQuery)

	errs := a.errs.list()
	if len(errs) > 0 {
		v.logger.Debug("SQL failed validation",
			zap.String("sql", logging.TruncateString(sqlQuery, logging.MaxQueryLogLength)),
			zap.Strings("errors", errs))
	}
	return ValidationReport{IsValid: len(errs) == 0, Errors: errs}
}

// Validate checks sqlQuery against schema with default options.
func Validate(sqlQuery string, schema *models.SchemaModel) ValidationReport {
	return NewValidator(schema, Options{}, nil).Validate(sqlQuery)
}

// Normalize trims whitespace and trailing semicolons (and anything after them
// that is only comments). It returns ErrMultipleStatements when a semicolon
// separates two statements. Semicolons inside literals, quoted identifiers and
// comments are ignored.
func Normalize(sqlQuery string) (string, error) {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return "", nil
	}

	toks, err := tokenize(sqlQuery)
	if err != nil {
		return "", err
	}

	cut := -1
	for i, t := range toks {
		if !t.isPunct(";") {
			continue
		}
		if !onlySemicolonsAfter(toks, i) {
			return "", ErrMultipleStatements
		}
		cut = t.pos
		break
	}
	if cut < 0 {
		return sqlQuery, nil
	}
	return strings.TrimRight(sqlQuery[:cut], " \t\n\r"), nil
}

func onlySemicolonsAfter(toks []token, i int) bool {
	for _, t := range toks[i+1:] {
		if !t.isPunct(";") {
			return false
		}
	}
	return true
}
