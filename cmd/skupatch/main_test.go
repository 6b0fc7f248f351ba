package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-sku-patch/models"
)

func TestParseConfigInterleavedFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "flags first", args: []string{"-o", "out.html", "in.html", "skus.csv"}},
		{name: "flags last", args: []string{"in.html", "skus.csv", "--output", "out.html"}},
		{name: "flags between", args: []string{"in.html", "-o=out.html", "skus.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig(tt.args, io.Discard)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if cfg.InputPath != "in.html" || cfg.CSVPath != "skus.csv" || cfg.OutputFile != "out.html" {
				t.Fatalf("cfg = %+v", cfg)
			}
		})
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig([]string{"in.html", "skus.csv"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.OutputFile != "updated.html" {
		t.Fatalf("default output = %q", cfg.OutputFile)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("SKUPATCH_OUTPUT", "env.html")
	t.Setenv("SKUPATCH_MAX_RETRIES", "5")

	cfg, err := parseConfig([]string{"in.html", "skus.csv", "--timeout", "3s"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.OutputFile != "env.html" || cfg.MaxRetries != 5 || cfg.Timeout != 3*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("SKUPATCH_MAX_RETRIES", "many")
	if _, err := parseConfig([]string{"in.html", "skus.csv"}, io.Discard); err == nil {
		t.Fatalf("expected error for malformed env int")
	}
}

func TestParseConfigArgumentCount(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseConfig([]string{"in.html"}, &stderr); err == nil {
		t.Fatalf("expected error for missing csv_path")
	}
	if !strings.Contains(stderr.String(), "Usage: skupatch") {
		t.Fatalf("usage not printed: %q", stderr.String())
	}
	if _, err := parseConfig([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	result := &models.Result{
		Mapping:    models.MappingStats{Rows: 4},
		Codes:      3,
		OutputFile: "updated.html",
		StartTime:  start,
		EndTime:    start.Add(15 * time.Millisecond),
		Outcomes: []models.BlockOutcome{
			{Action: models.ActionRenamed},
			{Action: models.ActionUpdated},
			{Action: models.ActionInserted},
			{Action: models.ActionSkippedUnmapped},
			{Action: models.ActionSkippedNoTone},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, result)
	out := buf.String()
	for _, want := range []string{"«updated.html»", "3 (from 4 rows)", "3 patched, 2 skipped", "15ms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
