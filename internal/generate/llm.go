package generate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lucasnoah/tddfactory/internal/config"
	"github.com/lucasnoah/tddfactory/internal/prompt"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
)

// Operation names used in logs and metrics.
const (
	OpProposeFailingTest           = "propose_failing_test"
	OpProposeMinimalImplementation = "propose_minimal_implementation"
	OpProposeRefactor              = "propose_refactor"
)

const defaultBaseBackoff = time.Second

// PathResolver maps a generated path into the project, rejecting escapes.
type PathResolver interface {
	Resolve(path string) (string, error)
}

// LLMGenerator implements Generator on top of a Completer. It renders the
// phase prompt, rate limits and retries transient transport failures, and
// decodes the JSON answer.
type LLMGenerator struct {
	completer   Completer
	limiter     *rate.Limiter
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	promptsDir  string
	testCommand string
	paths       PathResolver
	validate    *validator.Validate
	metrics     *telemetry.Metrics
	logger      *zap.Logger
}

// Option configures an LLMGenerator.
type Option func(*LLMGenerator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *LLMGenerator) { g.logger = l }
}

// WithMetrics sets the metric set generation calls are counted on.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *LLMGenerator) { g.metrics = m }
}

// WithPromptsDir sets the directory searched for template overrides.
func WithPromptsDir(dir string) Option {
	return func(g *LLMGenerator) { g.promptsDir = dir }
}

// WithTestCommand tells the red prompt how the suite is run.
func WithTestCommand(cmd string) Option {
	return func(g *LLMGenerator) { g.testCommand = cmd }
}

// WithPathResolver checks generated paths against the project root.
func WithPathResolver(r PathResolver) Option {
	return func(g *LLMGenerator) { g.paths = r }
}

// WithBaseBackoff sets the first retry delay; later delays double.
func WithBaseBackoff(d time.Duration) Option {
	return func(g *LLMGenerator) { g.baseBackoff = d }
}

// NewLLMGenerator creates a generator for cfg backed by completer.
func NewLLMGenerator(cfg config.Generator, completer Completer, opts ...Option) *LLMGenerator {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	g := &LLMGenerator{
		completer:   completer,
		limiter:     rate.NewLimiter(limit, burst),
		timeout:     cfg.TimeoutDuration(),
		maxRetries:  cfg.MaxTransportRetries,
		baseBackoff: defaultBaseBackoff,
		validate:    newValidator(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProposeFailingTest asks for exactly one failing test for requirement.
func (g *LLMGenerator) ProposeFailingTest(ctx context.Context, requirement, listing string) (ProposedTest, error) {
	var out ProposedTest
	p, err := prompt.LoadAndRender(prompt.RedTemplate, g.promptsDir, prompt.Vars{
		"requirement":  requirement,
		"listing":      listing,
		"test_command": g.testCommand,
	})
	if err != nil {
		return out, err
	}
	check := func() error { return g.checkPath(out.Filepath) }
	if err := g.call(ctx, OpProposeFailingTest, p, &out, check); err != nil {
		return ProposedTest{}, err
	}
	out.Filepath = strings.TrimSpace(out.Filepath)
	return out, nil
}

// ProposeMinimalImplementation asks for the least code that makes testCode pass.
func (g *LLMGenerator) ProposeMinimalImplementation(ctx context.Context, testCode, errorContext string) (ProposedImpl, error) {
	var out ProposedImpl
	p, err := prompt.LoadAndRender(prompt.GreenTemplate, g.promptsDir, prompt.Vars{
		"test_code":     testCode,
		"error_context": errorContext,
	})
	if err != nil {
		return out, err
	}
	check := func() error { return g.checkPath(out.Filepath) }
	if err := g.call(ctx, OpProposeMinimalImplementation, p, &out, check); err != nil {
		return ProposedImpl{}, err
	}
	out.Filepath = strings.TrimSpace(out.Filepath)
	return out, nil
}

// ProposeRefactor asks for a behavior-preserving cleanup of implCode.
func (g *LLMGenerator) ProposeRefactor(ctx context.Context, testCode, implCode string) (ProposedRefactor, error) {
	var out ProposedRefactor
	p, err := prompt.LoadAndRender(prompt.RefactorTemplate, g.promptsDir, prompt.Vars{
		"test_code":           testCode,
		"implementation_code": implCode,
	})
	if err != nil {
		return out, err
	}
	if err := g.call(ctx, OpProposeRefactor, p, &out, nil); err != nil {
		return ProposedRefactor{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = NoChangesSummary
	}
	return out, nil
}

// call runs one gateway call: a single logical request that may be retried
// on transient transport failures, then decoded into out and checked.
func (g *LLMGenerator) call(ctx context.Context, op, p string, out any, check func() error) (err error) {
	defer func() { g.metrics.GenerationCall(op, err) }()

	start := time.Now()
	raw, err := g.complete(ctx, op, p)
	if err != nil {
		g.logger.Warn("generation failed", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := decodeResponse(g.validate, raw, out); err != nil {
		g.logger.Warn("generation response rejected",
			zap.String("operation", op),
			zap.Error(err),
			zap.Int("response_bytes", len(raw)),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	if check != nil {
		if err := check(); err != nil {
			g.logger.Warn("generation response rejected", zap.String("operation", op), zap.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	g.logger.Debug("generation finished",
		zap.String("operation", op),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (g *LLMGenerator) complete(ctx context.Context, op, p string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.baseBackoff * time.Duration(1<<(attempt-1))
			g.metrics.TransportRetry()
			g.logger.Info("retrying generation",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		raw, err := g.completeOnce(ctx, p)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (g *LLMGenerator) completeOnce(ctx context.Context, p string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.completer.Complete(ctx, p)
}

// checkPath rejects generated paths that are absolute or leave the project.
func (g *LLMGenerator) checkPath(path string) error {
	path = strings.TrimSpace(path)
	if !filepath.IsLocal(filepath.FromSlash(path)) {
		return fmt.Errorf("%w: path %q is not inside the project", ErrMalformedResponse, path)
	}
	if g.paths != nil {
		if _, err := g.paths.Resolve(path); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return nil
}
