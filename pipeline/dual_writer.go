package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-sku-patch/models"
)

// DualWriter writes the report as CSV and JSON lines at the same time.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
}

// NewDualWriter creates both underlying writers.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv report: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json report: %w", err)
	}

	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
	}, nil
}

func (dw *DualWriter) Write(outcomes []models.BlockOutcome) error {
	if err := dw.csvWriter.Write(outcomes); err != nil {
		return fmt.Errorf("csv report: %w", err)
	}
	if err := dw.jsonWriter.Write(outcomes); err != nil {
		return fmt.Errorf("json report: %w", err)
	}
	return nil
}

func (dw *DualWriter) Close() error {
	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close csv report: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close json report: %w", err))
	}
	return errors.Join(errs...)
}

func (dw *DualWriter) Validate() error {
	return errors.Join(dw.csvWriter.Validate(), dw.jsonWriter.Validate())
}
