package phase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lucasnoah/tddfactory/internal/generate"
)

// Refactor improves a passing implementation and reverts it if the suite
// regresses.
type Refactor struct {
	base
}

// NewRefactor creates a Refactor phase over the given gateways.
func NewRefactor(gen generate.Generator, ws Workspace, runner TestRunner, opts ...Option) *Refactor {
	return &Refactor{base: newBase(gen, ws, runner, opts)}
}

// Run leaves the implementation either refactored with a green suite or
// byte-identical to what it was when Run started. A failed restore is
// reported as KindRollback.
func (r *Refactor) Run(ctx context.Context, testFilepath, implFilepath string) Outcome {
	ctx, span, started := r.start(ctx, PhaseRefactor,
		attribute.String("tdd.test_file", testFilepath),
		attribute.String("tdd.impl_file", implFilepath),
	)
	return r.finish(span, started, r.run(ctx, testFilepath, implFilepath))
}

func (r *Refactor) run(ctx context.Context, testFilepath, implFilepath string) Outcome {
	testCode, err := r.ws.Read(testFilepath)
	if err != nil {
		return Failed(PhaseRefactor, KindIO, fmt.Sprintf("Can't read test: %v", err), "")
	}
	original, err := r.ws.Read(implFilepath)
	if err != nil {
		return Failed(PhaseRefactor, KindIO, fmt.Sprintf("Can't read implementation: %v", err), "")
	}

	r.logf("REFACTOR: requesting cleanup of %s", implFilepath)
	proposed, err := r.gen.ProposeRefactor(ctx, testCode, original)
	if err != nil {
		return Failed(PhaseRefactor, KindGeneration, fmt.Sprintf("Failed to generate refactor: %v", err), "")
	}

	if err := r.ws.Write(implFilepath, proposed.Code); err != nil {
		return Failed(PhaseRefactor, KindIO, fmt.Sprintf("Failed to write: %v", err), "")
	}

	res := r.runTests(ctx)
	if res.Success {
		r.logf("REFACTOR: tests still pass")
		return Succeeded(PhaseRefactor, proposed.Summary, res.Output, Artifacts{
			TestFile: testFilepath,
			ImplFile: implFilepath,
		})
	}

	r.logf("REFACTOR: tests broke, rolling back %s", implFilepath)
	if err := r.ws.Write(implFilepath, original); err != nil {
		r.metrics.RollbackFailure()
		r.logger.Error("rollback failed",
			zap.String("impl_file", implFilepath),
			zap.Error(err),
		)
		out := Failed(PhaseRefactor, KindRollback,
			fmt.Sprintf("Refactoring broke tests and rollback failed: %v; %s holds the broken refactor", err, implFilepath),
			res.Output)
		out.Artifacts.ImplFile = implFilepath
		return out
	}

	out := Failed(PhaseRefactor, KindTest, "Refactoring broke tests - rolled back", res.Output)
	out.Artifacts.ImplFile = implFilepath
	return out
}
