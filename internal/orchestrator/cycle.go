package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lucasnoah/tddfactory/internal/phase"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
	"github.com/lucasnoah/tddfactory/internal/workspace"
)

// RedPhase writes and proves a failing test.
type RedPhase interface {
	Run(ctx context.Context, requirement, listing string) phase.Outcome
}

// GreenPhase makes the failing test pass.
type GreenPhase interface {
	Run(ctx context.Context, testFilepath string, maxRetries int) phase.Outcome
}

// RefactorPhase cleans up the implementation without regressing.
type RefactorPhase interface {
	Run(ctx context.Context, testFilepath, implFilepath string) phase.Outcome
}

// Lister lists the project files shown to the generator.
type Lister interface {
	List() ([]string, error)
}

// Option configures a Cycle or Pipeline.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metric set cycle results are recorded on.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type progressSetter interface {
	SetProgress(w io.Writer)
}

// implProtector is implemented by RED phases that refuse to overwrite
// implementations produced by earlier cycles.
type implProtector interface {
	Protect(path string)
}

// Cycle runs RED → GREEN → REFACTOR for one requirement, stopping at the
// first failed phase.
type Cycle struct {
	red        RedPhase
	green      GreenPhase
	refactor   RefactorPhase
	lister     Lister
	maxRetries int
	options
	progress io.Writer // live progress output; nil = silent
}

// NewCycle creates a Cycle. maxRetries bounds GREEN's implementation attempts.
func NewCycle(red RedPhase, green GreenPhase, refactor RefactorPhase, lister Lister, maxRetries int, opts ...Option) *Cycle {
	return &Cycle{
		red:        red,
		green:      green,
		refactor:   refactor,
		lister:     lister,
		maxRetries: maxRetries,
		options:    buildOptions(opts),
	}
}

// SetProgress sets a writer for live progress output and passes it on to
// the phases.
func (c *Cycle) SetProgress(w io.Writer) {
	c.progress = w
	for _, p := range []any{c.red, c.green, c.refactor} {
		if ps, ok := p.(progressSetter); ok {
			ps.SetProgress(w)
		}
	}
}

// logf prints a progress line if a progress writer is configured.
func (c *Cycle) logf(format string, args ...interface{}) {
	if c.progress != nil {
		fmt.Fprintf(c.progress, "  → "+format+"\n", args...)
	}
}

// Run executes one cycle. Only attempted phases are set on the record and
// Status is assigned exactly once.
func (c *Cycle) Run(ctx context.Context, requirement string) CycleRecord {
	ctx, span := telemetry.StartSpan(ctx, "cycle", attribute.String("tdd.requirement", requirement))
	start := time.Now()

	rec := c.run(ctx, requirement)
	rec.Duration = time.Since(start)

	c.metrics.CycleFinished(string(rec.Status))
	span.SetAttributes(attribute.String("tdd.status", string(rec.Status)))
	telemetry.EndSpan(span, rec.Status == StatusComplete, string(rec.Status))

	c.logger.Info("cycle finished",
		zap.String("requirement", requirement),
		zap.String("status", string(rec.Status)),
		zap.Duration("duration", rec.Duration),
	)
	return rec
}

func (c *Cycle) run(ctx context.Context, requirement string) CycleRecord {
	rec := CycleRecord{Requirement: requirement}

	red := c.runRed(ctx, requirement)
	rec.Red = &red
	if !red.Succeeded {
		rec.Status = StatusFailedRed
		return rec
	}

	green := c.green.Run(ctx, red.Artifacts.TestFile, c.maxRetries)
	rec.Green = &green
	if !green.Succeeded {
		rec.Status = StatusFailedGreen
		return rec
	}
	if p, ok := c.red.(implProtector); ok {
		p.Protect(green.Artifacts.ImplFile)
	}

	refactor := c.refactor.Run(ctx, red.Artifacts.TestFile, green.Artifacts.ImplFile)
	rec.Refactor = &refactor
	if !refactor.Succeeded {
		rec.Status = StatusFailedRefactor
		return rec
	}

	rec.Status = StatusComplete
	return rec
}

// runRed lists the project and runs RED. A listing failure is reported as
// RED's own I/O failure.
func (c *Cycle) runRed(ctx context.Context, requirement string) phase.Outcome {
	files, err := c.lister.List()
	if err != nil {
		c.logger.Error("listing project files failed", zap.Error(err))
		return phase.Failed(phase.PhaseRed, phase.KindIO, fmt.Sprintf("Failed to list project files: %v", err), "")
	}
	c.logf("project has %d file(s)", len(files))
	return c.red.Run(ctx, requirement, workspace.Listing(files))
}
