package phase

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lucasnoah/tddfactory/internal/checks"
	"github.com/lucasnoah/tddfactory/internal/generate"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
)

// Workspace is the file access a phase needs.
type Workspace interface {
	Read(path string) (string, error)
	Write(path, content string) error
}

// TestRunner runs the project's test suite once.
type TestRunner interface {
	Run(ctx context.Context) checks.TestResult
}

// Option configures a phase.
type Option func(*base)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) { b.logger = l }
}

// WithMetrics sets the metric set outcomes are recorded on.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// base holds the gateways and instrumentation shared by every phase.
type base struct {
	gen      generate.Generator
	ws       Workspace
	runner   TestRunner
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	progress io.Writer // live progress output; nil = silent
}

func newBase(gen generate.Generator, ws Workspace, runner TestRunner, opts []Option) base {
	b := base{gen: gen, ws: ws, runner: runner, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (b *base) SetProgress(w io.Writer) {
	b.progress = w
}

// logf prints a progress line if a progress writer is configured.
func (b *base) logf(format string, args ...interface{}) {
	if b.progress != nil {
		fmt.Fprintf(b.progress, "  → "+format+"\n", args...)
	}
}

// runTests invokes the test runner and records the result.
func (b *base) runTests(ctx context.Context) checks.TestResult {
	res := b.runner.Run(ctx)
	b.metrics.TestRun(res.Success, res.TimedOut, res.Duration)
	return res
}

func (b *base) start(ctx context.Context, phase Name, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := telemetry.StartSpan(ctx, "phase."+string(phase), attrs...)
	return ctx, span, time.Now()
}

// finish stamps the duration on out and records it everywhere.
func (b *base) finish(span trace.Span, started time.Time, out Outcome) Outcome {
	out.Duration = time.Since(started)
	b.metrics.PhaseFinished(string(out.Phase), out.Succeeded, string(out.Kind), out.Duration)

	span.SetAttributes(
		attribute.Bool("tdd.succeeded", out.Succeeded),
		attribute.String("tdd.kind", string(out.Kind)),
		attribute.Int("tdd.attempts", out.Attempts),
	)
	telemetry.EndSpan(span, out.Succeeded, out.Message)

	fields := []zap.Field{
		zap.String("phase", string(out.Phase)),
		zap.Bool("succeeded", out.Succeeded),
		zap.Duration("duration", out.Duration),
	}
	switch {
	case out.Succeeded:
		b.logger.Info("phase succeeded", fields...)
	case out.Kind == KindRollback:
		b.logger.Error("phase failed", append(fields, zap.String("kind", string(out.Kind)), zap.String("message", out.Message))...)
	default:
		b.logger.Warn("phase failed", append(fields, zap.String("kind", string(out.Kind)), zap.String("message", out.Message))...)
	}
	return out
}
