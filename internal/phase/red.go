package phase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lucasnoah/tddfactory/internal/generate"
)

// Red writes one failing test for a requirement and proves that it fails.
type Red struct {
	base
	protected map[string]bool
}

// NewRed creates a Red phase over the given gateways.
func NewRed(gen generate.Generator, ws Workspace, runner TestRunner, opts ...Option) *Red {
	return &Red{base: newBase(gen, ws, runner, opts), protected: make(map[string]bool)}
}

// Protect marks path as an implementation that later RED runs must not
// overwrite with a test.
func (r *Red) Protect(path string) {
	r.protected[cleanPath(path)] = true
}

// Run asks for a failing test, writes it, and runs the suite. The phase
// succeeds only when the suite fails; a passing suite is a contract
// violation and is not retried.
func (r *Red) Run(ctx context.Context, requirement, listing string) Outcome {
	ctx, span, started := r.start(ctx, PhaseRed, attribute.String("tdd.requirement", requirement))
	return r.finish(span, started, r.run(ctx, requirement, listing))
}

func (r *Red) run(ctx context.Context, requirement, listing string) Outcome {
	r.logf("RED: requesting a failing test")
	proposed, err := r.gen.ProposeFailingTest(ctx, requirement, listing)
	if err != nil {
		return Failed(PhaseRed, KindGeneration, fmt.Sprintf("Failed to generate test: %v", err), "")
	}

	if r.protected[cleanPath(proposed.Filepath)] {
		return Failed(PhaseRed, KindGeneration,
			fmt.Sprintf("Refusing to write test over %s, an implementation from an earlier cycle", proposed.Filepath), "")
	}
	if _, err := r.ws.Read(proposed.Filepath); err == nil {
		r.logger.Warn("test overwrites an existing file", zap.String("path", proposed.Filepath))
		r.logf("RED: %s already exists, overwriting", proposed.Filepath)
	}

	if err := r.ws.Write(proposed.Filepath, proposed.Code); err != nil {
		return Failed(PhaseRed, KindIO, fmt.Sprintf("Failed to write test: %v", err), "")
	}
	r.logf("RED: wrote %s, running tests", proposed.Filepath)

	res := r.runTests(ctx)
	if res.Success {
		out := Failed(PhaseRed, KindContract, "Tests passed, but a RED test must fail before any implementation exists", res.Output)
		out.Artifacts.TestFile = proposed.Filepath
		return out
	}

	r.logf("RED: test fails as expected")
	return Succeeded(PhaseRed, "Test written and failing as expected", res.Output, Artifacts{TestFile: proposed.Filepath})
}
