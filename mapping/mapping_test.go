package mapping

import (
	"errors"
	"strings"
	"testing"

	"github.com/aluiziolira/go-sku-patch/config"
	"github.com/aluiziolira/go-sku-patch/models"
)

type recordingObserver struct {
	outcomes map[string]int
}

func (r *recordingObserver) ObserveRow(outcome string) {
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func build(t *testing.T, csv string) (models.Mapping, models.MappingStats) {
	t.Helper()
	m, stats, err := NewBuilder(config.DefaultConfig(), nil).Build(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m, stats
}

func TestBuildNormalizesIDs(t *testing.T) {
	m, stats := build(t, "Код артикула;ID артикула\n1.0;10915\n 1.10 ;10916.0\n10.02; 77 \n")

	want := map[string]string{"1.0": "10915", "1.10": "10916", "10.02": "77"}
	for code, id := range want {
		if got, ok := m.Lookup(code); !ok || got != id {
			t.Fatalf("Lookup(%q) = %q, %v; want %q", code, got, ok, id)
		}
	}
	if m.Len() != 3 || stats.Rows != 3 || stats.Bound != 3 {
		t.Fatalf("len=%d stats=%+v", m.Len(), stats)
	}
}

func TestBuildSkipsUnresolvedRows(t *testing.T) {
	csv := "Код артикула;ID артикула\n" +
		"1.0;abc\n" +
		"2.0;\n" +
		";500\n" +
		"NA;501\n" +
		"3.0;12.5\n" +
		"4.0;4\n"
	m, stats := build(t, csv)

	if m.Len() != 1 {
		t.Fatalf("expected only 4.0 bound, got %v", m.Codes())
	}
	if id, _ := m.Lookup("4.0"); id != "4" {
		t.Fatalf("Lookup(4.0) = %q", id)
	}
	if stats.MissingCode != 2 || stats.UnresolvedID != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestBuildLastRowWins(t *testing.T) {
	obs := &recordingObserver{}
	m, stats, err := NewBuilder(config.DefaultConfig(), obs).Build(strings.NewReader(
		"Код артикула;ID артикула\n1.0;1\n1.0;2\n 1.0;3\n"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if id, _ := m.Lookup("1.0"); id != "3" {
		t.Fatalf("Lookup(1.0) = %q, want 3", id)
	}
	if stats.Overwritten != 2 || obs.outcomes["overwritten"] != 2 || obs.outcomes["bound"] != 1 {
		t.Fatalf("stats=%+v observed=%v", stats, obs.outcomes)
	}
}

func TestBuildIgnoresExtraColumnsAndBOM(t *testing.T) {
	csv := "\ufeffНазвание;ID артикула;Цена;Код артикула\nКраска;10915;100;1.0\nКороткая\n"
	m, stats := build(t, csv)
	if id, ok := m.Lookup("1.0"); !ok || id != "10915" {
		t.Fatalf("Lookup(1.0) = %q, %v", id, ok)
	}
	if stats.Rows != 2 || stats.MissingCode != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestBuildSchemaError(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		missing []string
	}{
		{name: "no id column", csv: "Код артикула;Цена\n1.0;5\n", missing: []string{"ID артикула"}},
		{name: "comma delimited", csv: "Код артикула,ID артикула\n1.0,5\n", missing: []string{"Код артикула", "ID артикула"}},
		{name: "empty input", csv: "", missing: []string{"Код артикула", "ID артикула"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewBuilder(config.DefaultConfig(), nil).Build(strings.NewReader(tt.csv))
			var schemaErr models.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if strings.Join(schemaErr.Missing, "|") != strings.Join(tt.missing, "|") {
				t.Fatalf("missing = %v, want %v", schemaErr.Missing, tt.missing)
			}
		})
	}
}

func TestBuildParseErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{name: "invalid utf8", csv: "Код артикула;ID артикула\n1.0;\xff\xfe\n"},
		{name: "bare quote", csv: "Код артикула;ID артикула\n1.0;\"10\"915\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewBuilder(config.DefaultConfig(), nil).Build(strings.NewReader(tt.csv))
			var parseErr models.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}
