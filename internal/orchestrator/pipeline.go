package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lucasnoah/tddfactory/internal/config"
	"github.com/lucasnoah/tddfactory/internal/generate"
	"github.com/lucasnoah/tddfactory/internal/phase"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
)

// CycleRunner runs one requirement's cycle.
type CycleRunner interface {
	Run(ctx context.Context, requirement string) CycleRecord
}

// Pipeline runs one cycle per requirement, in order. A failed cycle does
// not stop the run; files from earlier cycles stay in the workspace for
// later ones.
type Pipeline struct {
	cycle CycleRunner
	options
	progress io.Writer // live progress output; nil = silent
	newRunID func() string
}

// NewPipeline creates a Pipeline around cycle.
func NewPipeline(cycle CycleRunner, opts ...Option) *Pipeline {
	return &Pipeline{
		cycle:    cycle,
		options:  buildOptions(opts),
		newRunID: uuid.NewString,
	}
}

// Workspace is the file gateway the phases and the listing share.
type Workspace interface {
	phase.Workspace
	Lister
}

// New wires the three phases, a Cycle and a Pipeline over the given
// gateways, using cfg for retry and feedback limits.
func New(gen generate.Generator, ws Workspace, runner phase.TestRunner, cfg config.Pipeline, opts ...Option) *Pipeline {
	o := buildOptions(opts)
	phaseOpts := []phase.Option{phase.WithLogger(o.logger), phase.WithMetrics(o.metrics)}

	cycle := NewCycle(
		phase.NewRed(gen, ws, runner, phaseOpts...),
		phase.NewGreen(gen, ws, runner, cfg.FeedbackCodeChars, cfg.FeedbackErrorChars, phaseOpts...),
		phase.NewRefactor(gen, ws, runner, phaseOpts...),
		ws,
		cfg.MaxRetries,
		opts...,
	)
	return NewPipeline(cycle, opts...)
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (p *Pipeline) SetProgress(w io.Writer) {
	p.progress = w
	if ps, ok := p.cycle.(progressSetter); ok {
		ps.SetProgress(w)
	}
}

// logf prints a progress line if a progress writer is configured.
func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.progress != nil {
		fmt.Fprintf(p.progress, "  → "+format+"\n", args...)
	}
}

// Run executes every requirement and returns the summary. An empty list
// yields a summary with zero totals.
func (p *Pipeline) Run(ctx context.Context, requirements []string) Summary {
	runID := p.newRunID()
	ctx, span := telemetry.StartSpan(ctx, "pipeline",
		attribute.String("tdd.run_id", runID),
		attribute.Int("tdd.requirements", len(requirements)),
	)
	start := time.Now()
	logger := p.logger.With(zap.String("run_id", runID))

	summary := Summary{
		RunID:  runID,
		Total:  len(requirements),
		Cycles: make([]CycleRecord, 0, len(requirements)),
	}

	for i, req := range requirements {
		p.logf("requirement %d/%d: %s", i+1, len(requirements), req)
		rec := p.cycle.Run(ctx, req)
		summary.Cycles = append(summary.Cycles, rec)
		if rec.Status == StatusComplete {
			summary.Completed++
		}
		p.logf("requirement %d/%d: %s", i+1, len(requirements), rec.Status)
	}
	summary.Duration = time.Since(start)

	span.SetAttributes(attribute.Int("tdd.completed", summary.Completed))
	telemetry.EndSpan(span, summary.AllComplete(), fmt.Sprintf("%d of %d cycles complete", summary.Completed, summary.Total))

	logger.Info("pipeline finished",
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("rollback_failures", summary.RollbackFailures()),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}
