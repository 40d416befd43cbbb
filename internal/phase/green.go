package phase

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lucasnoah/tddfactory/internal/generate"
)

// Green makes the current failing test pass with minimal code, retrying a
// bounded number of times.
type Green struct {
	base
	codeChars  int
	errorChars int
}

// NewGreen creates a Green phase. codeChars and errorChars bound how much
// of each failed attempt is replayed to the generator; zero uses defaults.
func NewGreen(gen generate.Generator, ws Workspace, runner TestRunner, codeChars, errorChars int, opts ...Option) *Green {
	return &Green{
		base:       newBase(gen, ws, runner, opts),
		codeChars:  codeChars,
		errorChars: errorChars,
	}
}

// Run reads the test at testFilepath and tries up to maxRetries
// implementations. Each attempt makes at most one generation call and one
// test run, after a single initial probe of the suite.
func (g *Green) Run(ctx context.Context, testFilepath string, maxRetries int) Outcome {
	ctx, span, started := g.start(ctx, PhaseGreen,
		attribute.String("tdd.test_file", testFilepath),
		attribute.Int("tdd.max_retries", maxRetries),
	)
	out := g.run(ctx, testFilepath, maxRetries)
	if out.Attempts > 0 {
		g.metrics.GreenAttempts(out.Attempts)
	}
	return g.finish(span, started, out)
}

func (g *Green) run(ctx context.Context, testFilepath string, maxRetries int) Outcome {
	testCode, err := g.ws.Read(testFilepath)
	if err != nil {
		return Failed(PhaseGreen, KindIO, fmt.Sprintf("Can't read test: %v", err), "")
	}
	if maxRetries < 1 {
		return Failed(PhaseGreen, KindTest, fmt.Sprintf("No attempts allowed (max retries %d)", maxRetries), "")
	}

	g.logf("GREEN: probing current test output")
	lastOutput := g.runTests(ctx).Output
	lastReachedRunner := true

	history := NewHistory(g.codeChars, g.errorChars)
	for attempt := 1; attempt <= maxRetries; attempt++ {
		g.logf("GREEN: attempt %d/%d", attempt, maxRetries)

		errorContext := lastOutput
		if fb := history.Feedback(); fb != "" {
			errorContext += "\n\n" + fb
		}

		proposed, err := g.gen.ProposeMinimalImplementation(ctx, testCode, errorContext)
		if err != nil {
			g.logger.Warn("implementation generation failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			history.Add("", fmt.Sprintf("generation failed: %v", err))
			lastReachedRunner = false
			continue
		}

		if samePath(proposed.Filepath, testFilepath) {
			g.logger.Warn("implementation targets the test file",
				zap.Int("attempt", attempt),
				zap.String("path", proposed.Filepath),
			)
			history.Add(proposed.Code, fmt.Sprintf("rejected: implementation path %s is the test file; write the implementation to a different file", proposed.Filepath))
			lastReachedRunner = false
			continue
		}

		if err := g.ws.Write(proposed.Filepath, proposed.Code); err != nil {
			out := Failed(PhaseGreen, KindIO, fmt.Sprintf("Failed to write code: %v", err), lastOutput)
			out.Attempts = attempt
			return out
		}

		res := g.runTests(ctx)
		if res.Success {
			g.logf("GREEN: tests pass after %d attempt(s)", attempt)
			out := Succeeded(PhaseGreen, "Implementation written and tests pass", res.Output, Artifacts{
				TestFile: testFilepath,
				ImplFile: proposed.Filepath,
			})
			out.Attempts = attempt
			return out
		}

		g.logf("GREEN: %s still failing", proposed.Filepath)
		history.Add(proposed.Code, res.Output)
		lastOutput = res.Output
		lastReachedRunner = true
	}

	kind := KindTest
	msg := fmt.Sprintf("Tests still failing after %d attempts", maxRetries)
	if !lastReachedRunner {
		kind = KindGeneration
		msg = fmt.Sprintf("No passing implementation after %d attempts; the last generation failed", maxRetries)
	}
	out := Failed(PhaseGreen, kind, msg, lastOutput)
	out.Attempts = maxRetries
	return out
}

// samePath reports whether two workspace paths name the same file.
func samePath(a, b string) bool {
	return cleanPath(a) == cleanPath(b)
}

func cleanPath(p string) string {
	return filepath.Clean(filepath.FromSlash(p))
}
