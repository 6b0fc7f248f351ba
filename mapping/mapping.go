// Package mapping builds the tone code to article id table from a CSV export.
package mapping

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/go-sku-patch/config"
	"github.com/aluiziolira/go-sku-patch/models"
	"github.com/aluiziolira/go-sku-patch/parser"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RowObserver is notified of every row outcome ("bound", "missing_code",
// "unresolved_id", "overwritten").
type RowObserver interface {
	ObserveRow(outcome string)
}

// Builder reads mapping CSVs according to the configured columns and delimiter.
type Builder struct {
	codeColumn string
	idColumn   string
	comma      rune
	observer   RowObserver
}

// NewBuilder returns a Builder for cfg. observer may be nil.
func NewBuilder(cfg *config.Config, observer RowObserver) *Builder {
	return &Builder{
		codeColumn: cfg.CodeColumn,
		idColumn:   cfg.IDColumn,
		comma:      cfg.Comma,
		observer:   observer,
	}
}

// Build reads r and returns the mapping with row statistics.
func (b *Builder) Build(r io.Reader) (models.Mapping, models.MappingStats, error) {
	var stats models.MappingStats

	raw, err := io.ReadAll(r)
	if err != nil {
		return models.Mapping{}, stats, models.IOError{Op: "read", Path: "csv", Err: err}
	}
	if !utf8.Valid(raw) {
		return models.Mapping{}, stats, models.ParseError{Source: "csv", Err: errors.New("input is not valid UTF-8")}
	}

	reader := csv.NewReader(transform.NewReader(bytes.NewReader(raw), unicode.UTF8BOM.NewDecoder()))
	reader.Comma = b.comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return models.Mapping{}, stats, models.SchemaError{Missing: []string{b.codeColumn, b.idColumn}}
	}
	if err != nil {
		return models.Mapping{}, stats, models.ParseError{Source: "csv header", Err: err}
	}

	codeIdx, idIdx, err := b.columns(header)
	if err != nil {
		return models.Mapping{}, stats, err
	}

	ids := make(map[string]string)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Mapping{}, stats, models.ParseError{Source: "csv", Err: err}
		}
		stats.Rows++

		code, ok := parser.NormalizeCode(cell(record, codeIdx))
		if !ok {
			stats.MissingCode++
			b.observe("missing_code")
			continue
		}
		id, ok := parser.NormalizeID(cell(record, idIdx))
		if !ok {
			stats.UnresolvedID++
			b.observe("unresolved_id")
			continue
		}

		if prev, exists := ids[code]; exists {
			stats.Overwritten++
			b.observe("overwritten")
			slog.Debug("mapping code rebound",
				slog.String("code", code),
				slog.String("previous", prev),
				slog.String("id", id),
			)
		} else {
			stats.Bound++
			b.observe("bound")
		}
		ids[code] = id
	}

	return models.NewMapping(ids), stats, nil
}

func (b *Builder) columns(header []string) (int, int, error) {
	codeIdx, idIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case b.codeColumn:
			codeIdx = i
		case b.idColumn:
			idIdx = i
		}
	}

	var missing []string
	if codeIdx < 0 {
		missing = append(missing, b.codeColumn)
	}
	if idIdx < 0 {
		missing = append(missing, b.idColumn)
	}
	if len(missing) > 0 {
		return 0, 0, models.SchemaError{Missing: missing}
	}
	return codeIdx, idIdx, nil
}

func (b *Builder) observe(outcome string) {
	if b.observer != nil {
		b.observer.ObserveRow(outcome)
	}
}

func cell(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return record[idx]
}
