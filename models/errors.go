package models

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError indicates required CSV columns are absent.
type SchemaError struct {
	Missing []string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("schema: missing column(s) %s", quoteAll(e.Missing))
}

// ParseError indicates a CSV or markup source could not be decoded.
type ParseError struct {
	Source string
	Err    error
}

func (e ParseError) Error() string {
	return fmt.Errorf("parse %s: %w", e.Source, e.Err).Error()
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// IOError indicates a source could not be read or the destination written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e IOError) Error() string {
	return fmt.Errorf("io: %s %s: %w", e.Op, e.Path, e.Err).Error()
}

func (e IOError) Unwrap() error {
	return e.Err
}

// ErrorKind labels err by its kind for logs and metrics.
func ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	var schema SchemaError
	if errors.As(err, &schema) {
		return "schema"
	}
	var parse ParseError
	if errors.As(err, &parse) {
		return "parse"
	}
	var io IOError
	if errors.As(err, &io) {
		return "io"
	}
	return "other"
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
