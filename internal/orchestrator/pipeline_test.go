package orchestrator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lucasnoah/tddfactory/internal/config"
	"github.com/lucasnoah/tddfactory/internal/generate"
	"github.com/lucasnoah/tddfactory/internal/phase"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
	"github.com/lucasnoah/tddfactory/internal/workspace"
)

func pipelineConfig(maxRetries int) config.Pipeline {
	return config.Pipeline{MaxRetries: maxRetries, FeedbackCodeChars: 500, FeedbackErrorChars: 500}
}

func newTestStore(t *testing.T) (*workspace.Store, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.NewStore(root, nil)
	require.NoError(t, err)
	return ws, root
}

func addTest() generate.ProposedTest {
	return generate.ProposedTest{Code: "test('add', () => expect(add(2, 3)).toBe(5))", Filepath: "add.test.js"}
}

func readFile(t *testing.T, root, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, path))
	require.NoError(t, err)
	return string(data)
}

// Every proposal works first try.
func TestPipeline_AllPhasesSucceed(t *testing.T) {
	ws, root := newTestStore(t)
	gen := &scriptGen{
		tests:     []generate.ProposedTest{addTest()},
		impls:     []generate.ProposedImpl{{Code: "// GOOD\nexport const add = (a, b) => a + b", Filepath: "add.js"}},
		refactors: []generate.ProposedRefactor{{Code: "// GOOD\nexport function add(a, b) { return a + b }", Summary: "Used a function declaration"}},
	}
	runner := &goodImplRunner{root: root, path: "add.js"}

	p := New(gen, ws, runner, pipelineConfig(3))
	summary := p.Run(context.Background(), []string{"add(a,b) returns a+b"})

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.True(t, summary.AllComplete())
	assert.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Cycles, 1)

	rec := summary.Cycles[0]
	assert.Equal(t, StatusComplete, rec.Status)
	assert.Equal(t, 1, rec.Green.Attempts)
	assert.Equal(t, "Used a function declaration", rec.Refactor.Message)
	assert.Equal(t, "add.js", rec.Refactor.Artifacts.ImplFile)
	assert.Equal(t, "// GOOD\nexport function add(a, b) { return a + b }", readFile(t, root, "add.js"))
	assert.Equal(t, []string{workspace.EmptyListing}, gen.listings)
}

// The second implementation passes.
func TestPipeline_GreenSecondAttempt(t *testing.T) {
	ws, root := newTestStore(t)
	gen := &scriptGen{
		tests: []generate.ProposedTest{addTest()},
		impls: []generate.ProposedImpl{
			{Code: "export const add = () => undefined", Filepath: "add.js"},
			{Code: "// GOOD\nexport const add = (a, b) => a + b", Filepath: "add.js"},
		},
		refactors: []generate.ProposedRefactor{{Code: "// GOOD\nexport const add = (a, b) => a + b", Summary: generate.NoChangesSummary}},
	}

	summary := New(gen, ws, &goodImplRunner{root: root, path: "add.js"}, pipelineConfig(3)).
		Run(context.Background(), []string{"add(a,b) returns a+b"})

	rec := summary.Cycles[0]
	require.NotNil(t, rec.Green)
	assert.True(t, rec.Green.Succeeded)
	assert.Equal(t, 2, rec.Green.Attempts)
	assert.Equal(t, StatusComplete, rec.Status)
}

// Every implementation fails.
func TestPipeline_GreenExhausted(t *testing.T) {
	ws, root := newTestStore(t)
	bad := generate.ProposedImpl{Code: "export const add = () => 0", Filepath: "add.js"}
	gen := &scriptGen{
		tests: []generate.ProposedTest{addTest()},
		impls: []generate.ProposedImpl{bad, bad, bad, bad},
	}
	runner := &goodImplRunner{root: root, path: "add.js"}

	summary := New(gen, ws, runner, pipelineConfig(3)).Run(context.Background(), []string{"add"})

	rec := summary.Cycles[0]
	assert.Equal(t, StatusFailedGreen, rec.Status)
	assert.Equal(t, phase.KindTest, rec.Green.Kind)
	assert.Equal(t, 3, rec.Green.Attempts)
	assert.Nil(t, rec.Refactor)
	assert.Equal(t, 3, gen.implCalls)
	assert.Zero(t, gen.refactorCalls)
	// red + probe + three attempts
	assert.Equal(t, 5, runner.calls)
	assert.Equal(t, 0, summary.Completed)
	assert.False(t, summary.AllComplete())
}

// A breaking refactor is reverted byte for byte.
func TestPipeline_RefactorRollback(t *testing.T) {
	ws, root := newTestStore(t)
	impl := "// GOOD\r\nexport const add = (a, b) => a + b\n\n"
	gen := &scriptGen{
		tests:     []generate.ProposedTest{addTest()},
		impls:     []generate.ProposedImpl{{Code: impl, Filepath: "add.js"}},
		refactors: []generate.ProposedRefactor{{Code: "export const add = (a, b) => a - b", Summary: "Simplified"}},
	}

	summary := New(gen, ws, &goodImplRunner{root: root, path: "add.js"}, pipelineConfig(3)).
		Run(context.Background(), []string{"add"})

	rec := summary.Cycles[0]
	assert.Equal(t, StatusFailedRefactor, rec.Status)
	assert.Equal(t, phase.KindTest, rec.Refactor.Kind)
	assert.Equal(t, "add.js", rec.Green.Artifacts.ImplFile)
	assert.Equal(t, impl, readFile(t, root, "add.js"))
	assert.Zero(t, summary.RollbackFailures())
}

// The generated test already passes.
func TestPipeline_RedTestPassesImmediately(t *testing.T) {
	ws, _ := newTestStore(t)
	gen := &scriptGen{tests: []generate.ProposedTest{addTest()}}
	runner := &passingRunner{}

	summary := New(gen, ws, runner, pipelineConfig(3)).Run(context.Background(), []string{"add"})

	rec := summary.Cycles[0]
	assert.Equal(t, StatusFailedRed, rec.Status)
	assert.Equal(t, phase.KindContract, rec.Red.Kind)
	assert.Nil(t, rec.Green)
	assert.Nil(t, rec.Refactor)
	assert.Zero(t, gen.implCalls)
	assert.Equal(t, 1, runner.calls)

	files, err := ws.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"add.test.js"}, files)
}

func TestPipeline_FailedCycleDoesNotHaltRun(t *testing.T) {
	ws, root := newTestStore(t)
	gen := &scriptGen{
		tests: []generate.ProposedTest{
			addTest(),
			{Code: "test('sub', () => expect(sub(3, 2)).toBe(1))", Filepath: "sub.test.js"},
		},
		impls: []generate.ProposedImpl{
			{Code: "nope", Filepath: "add.js"},
			{Code: "// GOOD", Filepath: "add.js"},
		},
		refactors: []generate.ProposedRefactor{{Code: "// GOOD", Summary: generate.NoChangesSummary}},
	}
	runner := &goodImplRunner{root: root, path: "add.js"}

	summary := New(gen, ws, runner, pipelineConfig(1)).Run(context.Background(), []string{"add", "sub"})

	require.Len(t, summary.Cycles, 2)
	assert.Equal(t, StatusFailedGreen, summary.Cycles[0].Status)
	assert.Equal(t, "sub", summary.Cycles[1].Requirement)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	// the second cycle sees the files the first one left behind
	require.Len(t, gen.listings, 2)
	assert.Equal(t, "add.js\nadd.test.js", gen.listings[1])
}

func TestPipeline_LaterTestCannotOverwriteEarlierImplementation(t *testing.T) {
	ws, root := newTestStore(t)
	impl := "// GOOD\nexport const add = (a, b) => a + b\n"
	gen := &scriptGen{
		tests: []generate.ProposedTest{
			addTest(),
			{Code: "test('sub')", Filepath: "add.js"},
		},
		impls:     []generate.ProposedImpl{{Code: impl, Filepath: "add.js"}},
		refactors: []generate.ProposedRefactor{{Code: impl, Summary: generate.NoChangesSummary}},
	}

	summary := New(gen, ws, &goodImplRunner{root: root, path: "add.js"}, pipelineConfig(3)).
		Run(context.Background(), []string{"add", "sub"})

	require.Len(t, summary.Cycles, 2)
	assert.Equal(t, StatusComplete, summary.Cycles[0].Status)
	second := summary.Cycles[1]
	assert.Equal(t, StatusFailedRed, second.Status)
	assert.Equal(t, phase.KindGeneration, second.Red.Kind)
	assert.Equal(t, impl, readFile(t, root, "add.js"))
}

func TestPipeline_SummaryConsistency(t *testing.T) {
	cycle := &statusCycle{statuses: []CycleStatus{StatusComplete, StatusFailedRed, StatusComplete, StatusFailedRefactor}}
	p := NewPipeline(cycle)
	p.newRunID = func() string { return "run-1" }

	reqs := []string{"a", "b", "c", "d"}
	summary := p.Run(context.Background(), reqs)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, reqs, cycle.seen)
	assert.Equal(t, len(summary.Cycles), summary.Total)
	completed := 0
	for i, c := range summary.Cycles {
		assert.Equal(t, reqs[i], c.Requirement)
		if c.Status == StatusComplete {
			completed++
		}
	}
	assert.Equal(t, completed, summary.Completed)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.RollbackFailures())
}

func TestPipeline_EmptyRequirements(t *testing.T) {
	cycle := &statusCycle{}
	summary := NewPipeline(cycle).Run(context.Background(), nil)

	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Completed)
	assert.NotNil(t, summary.Cycles)
	assert.Empty(t, summary.Cycles)
	assert.True(t, summary.AllComplete())
	assert.Empty(t, cycle.seen)
}

func TestPipeline_ProgressAndLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := telemetry.NewMetrics()
	cycle := &statusCycle{statuses: []CycleStatus{StatusComplete, StatusFailedRed}}
	p := NewPipeline(cycle, WithLogger(zap.New(core)), WithMetrics(m))
	var buf bytes.Buffer
	p.SetProgress(&buf)

	p.Run(context.Background(), []string{"a", "b"})

	assert.Contains(t, buf.String(), "  → requirement 1/2: a\n")
	assert.Contains(t, buf.String(), "  → requirement 2/2: failed_red\n")

	entries := logs.FilterMessage("pipeline finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["total"])
	assert.Equal(t, int64(1), fields["completed"])
	assert.NotEmpty(t, fields["run_id"])
}

func TestNew_RecordsCycleMetrics(t *testing.T) {
	ws, _ := newTestStore(t)
	m := telemetry.NewMetrics()
	gen := &scriptGen{tests: []generate.ProposedTest{addTest()}}

	New(gen, ws, &passingRunner{}, pipelineConfig(3), WithMetrics(m)).Run(context.Background(), []string{"add"})

	n, err := testutil.GatherAndCount(m.Registry(), "tdd_cycles_total", "tdd_phase_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
