// Package pipeline runs a patch: build the mapping, load and patch the
// catalog, then write the result and optional report.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aluiziolira/go-sku-patch/config"
	"github.com/aluiziolira/go-sku-patch/mapping"
	"github.com/aluiziolira/go-sku-patch/metrics"
	"github.com/aluiziolira/go-sku-patch/models"
	"github.com/aluiziolira/go-sku-patch/patcher"
	"github.com/aluiziolira/go-sku-patch/source"
)

// Pipeline wires the mapping builder, loader and patcher for one run.
type Pipeline struct {
	cfg     *config.Config
	builder *mapping.Builder
	loader  *source.Loader
	patcher *patcher.Patcher
	metrics *metrics.Metrics
}

// NewPipeline validates cfg and builds the run components. m may be nil.
func NewPipeline(cfg *config.Config, m *metrics.Metrics) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := patcher.New(cfg, m)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:     cfg,
		builder: mapping.NewBuilder(cfg, m),
		loader:  source.NewLoader(cfg),
		patcher: p,
		metrics: m,
	}, nil
}

// Loader exposes the page loader, e.g. to swap its HTTP transport.
func (p *Pipeline) Loader() *source.Loader {
	return p.loader
}

// Run executes the phases in order. Nothing is written unless every phase,
// report included, succeeded.
func (p *Pipeline) Run(ctx context.Context) (*models.Result, error) {
	result := &models.Result{
		OutputFile: p.cfg.OutputFile,
		StartTime:  time.Now(),
	}

	phaseStart := time.Now()
	m, stats, err := p.buildMapping()
	if err != nil {
		return nil, err
	}
	p.metrics.ObservePhase("mapping", time.Since(phaseStart))
	result.Mapping = stats
	result.Codes = m.Len()
	slog.Info("mapping built",
		slog.String("csv", p.cfg.CSVPath),
		slog.Int("rows", stats.Rows),
		slog.Int("codes", m.Len()),
		slog.Int("skipped", stats.MissingCode+stats.UnresolvedID),
	)
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug("mapping codes", slog.Any("codes", m.Codes()))
	}

	phaseStart = time.Now()
	data, err := p.loader.Load(ctx, p.cfg.InputPath)
	if err != nil {
		return nil, err
	}
	p.metrics.ObservePhase("load", time.Since(phaseStart))

	phaseStart = time.Now()
	doc, err := patcher.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	result.Outcomes = p.patcher.Update(doc, m)
	p.metrics.ObservePhase("patch", time.Since(phaseStart))

	phaseStart = time.Now()
	var buf bytes.Buffer
	if err := patcher.Render(&buf, doc); err != nil {
		return nil, err
	}
	if err := p.writeOutputs(buf.Bytes(), result.Outcomes); err != nil {
		return nil, err
	}
	p.metrics.ObservePhase("write", time.Since(phaseStart))

	result.EndTime = time.Now()
	return result, nil
}

func (p *Pipeline) buildMapping() (models.Mapping, models.MappingStats, error) {
	f, err := os.Open(p.cfg.CSVPath)
	if err != nil {
		return models.Mapping{}, models.MappingStats{}, models.IOError{Op: "open", Path: p.cfg.CSVPath, Err: err}
	}
	defer f.Close()

	return p.builder.Build(f)
}

// writeOutputs stages the report and the patched page, then renames them into
// place. The page goes last so it only appears once the report is complete.
func (p *Pipeline) writeOutputs(page []byte, outcomes []models.BlockOutcome) error {
	var staged staging
	if p.cfg.ReportFile != "" {
		if err := p.stageReport(&staged, outcomes); err != nil {
			staged.discard()
			return err
		}
	}

	tmp, err := staged.stage(p.cfg.OutputFile)
	if err != nil {
		staged.discard()
		return err
	}
	if err := os.WriteFile(tmp, page, 0o644); err != nil {
		staged.discard()
		return models.IOError{Op: "write", Path: p.cfg.OutputFile, Err: err}
	}
	return staged.commit()
}

func (p *Pipeline) stageReport(staged *staging, outcomes []models.BlockOutcome) error {
	format, targets, err := reportTargets(p.cfg.ReportFormat, p.cfg.ReportFile)
	if err != nil {
		return err
	}
	paths := make([]string, len(targets))
	for i, target := range targets {
		if paths[i], err = staged.stage(target); err != nil {
			return err
		}
	}

	writer, err := openReportWriter(format, paths)
	if err != nil {
		return err
	}
	if err := writer.Write(outcomes); err != nil {
		writer.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("validate report: %w", err)
	}
	return nil
}
