package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-sku-patch/models"
)

// ReportWriter defines the interface for per-block report output.
type ReportWriter interface {
	Write(outcomes []models.BlockOutcome) error
	Close() error
	Validate() error
}

// NewReportWriter picks a writer for format, or by the file extension when
// format is empty.
func NewReportWriter(format, filename string) (ReportWriter, error) {
	format, targets, err := reportTargets(format, filename)
	if err != nil {
		return nil, err
	}
	return openReportWriter(format, targets)
}

// reportTargets resolves the report format and the files it produces. A dual
// report writes CSV to filename and JSON lines next to it.
func reportTargets(format, filename string) (string, []string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".json", ".jsonl", ".ndjson":
			format = "json"
		default:
			format = "csv"
		}
	}

	switch format {
	case "json", "csv":
		return format, []string{filename}, nil
	case "dual":
		return format, []string{filename, strings.TrimSuffix(filename, ".csv") + ".jsonl"}, nil
	default:
		return "", nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// openReportWriter creates the writer for a resolved format over paths, which
// are in reportTargets order.
func openReportWriter(format string, paths []string) (ReportWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(paths[0])
	case "dual":
		return NewDualWriter(paths[0], paths[1])
	default:
		return NewCSVWriter(paths[0])
	}
}

// CSVWriter writes block outcomes to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, models.IOError{Op: "create", Path: filename, Err: err}
	}

	writer := csv.NewWriter(f)
	header := []string{"index", "tone", "sku_id", "action"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends outcomes to the CSV output.
func (cw *CSVWriter) Write(outcomes []models.BlockOutcome) error {
	for _, o := range outcomes {
		record := []string{
			strconv.Itoa(o.Index),
			o.Tone,
			o.SKUID,
			string(o.Action),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return validateNonEmpty(cw.file.Name())
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, models.IOError{Op: "create", Path: filename, Err: err}
	}

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: encoder,
	}, nil
}

// Write appends outcomes in JSONL format.
func (jw *JSONWriter) Write(outcomes []models.BlockOutcome) error {
	for _, o := range outcomes {
		if err := jw.encoder.Encode(o); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file exists. An empty catalog yields an empty file.
func (jw *JSONWriter) Validate() error {
	if _, err := os.Stat(jw.file.Name()); err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	return nil
}

var errTargetIsDir = errors.New("target is a directory")

// stagedFile is a temp file waiting to be renamed over target.
type stagedFile struct {
	tmp    string
	target string
}

// staging collects temp files that are renamed into place together, so a
// failed run leaves neither partial nor half-updated outputs behind.
type staging []stagedFile

// stage reserves an empty temp file next to target and returns its path.
func (s *staging) stage(target string) (string, error) {
	if err := ensureDir(target); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", models.IOError{Op: "create", Path: target, Err: err}
	}
	*s = append(*s, stagedFile{tmp: tmp.Name(), target: target})
	if err := tmp.Close(); err != nil {
		return "", models.IOError{Op: "close", Path: target, Err: err}
	}
	return tmp.Name(), nil
}

// commit renames every staged file in order. Files not yet renamed when an
// error occurs are removed.
func (s staging) commit() error {
	for _, f := range s {
		if info, err := os.Stat(f.target); err == nil && info.IsDir() {
			s.discard()
			return models.IOError{Op: "rename", Path: f.target, Err: errTargetIsDir}
		}
		if err := os.Chmod(f.tmp, 0o644); err != nil {
			s.discard()
			return models.IOError{Op: "chmod", Path: f.target, Err: err}
		}
	}
	for i, f := range s {
		if err := os.Rename(f.tmp, f.target); err != nil {
			s[i:].discard()
			return models.IOError{Op: "rename", Path: f.target, Err: err}
		}
	}
	return nil
}

func (s staging) discard() {
	for _, f := range s {
		os.Remove(f.tmp)
	}
}

func validateNonEmpty(filename string) error {
	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("stat %s: %w", filename, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s is empty", filename)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}
