package phase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lucasnoah/tddfactory/internal/checks"
	"github.com/lucasnoah/tddfactory/internal/generate"
	"github.com/lucasnoah/tddfactory/internal/telemetry"
	"github.com/lucasnoah/tddfactory/internal/workspace"
)

const implPath = "src/add.js"

func refactorWorkspace() *memWorkspace {
	ws := newMemWorkspace()
	ws.files[testPath] = "expect(add(1, 2)).toBe(3)"
	ws.files[implPath] = "original"
	return ws
}

func TestRefactor_Success(t *testing.T) {
	ws := refactorWorkspace()
	gen := &fakeGen{refactors: []generate.ProposedRefactor{{Code: "cleaner", Summary: "extracted helper"}}}

	out := NewRefactor(gen, ws, alwaysPass()).Run(context.Background(), testPath, implPath)

	require.True(t, out.Succeeded)
	assert.Equal(t, "extracted helper", out.Message)
	assert.Equal(t, "cleaner", ws.files[implPath])
	assert.Equal(t, implPath, out.Artifacts.ImplFile)
}

// The rewrite breaks the test and is reverted.
func TestRefactor_RegressionRollsBack(t *testing.T) {
	ws := refactorWorkspace()
	gen := &fakeGen{refactors: []generate.ProposedRefactor{{Code: "broken", Summary: "oops"}}}
	runner := passWhen(ws, implPath, "original")

	out := NewRefactor(gen, ws, runner).Run(context.Background(), testPath, implPath)

	assert.False(t, out.Succeeded)
	assert.Equal(t, KindTest, out.Kind)
	assert.Contains(t, out.Message, "rolled back")
	assert.Equal(t, "original", ws.files[implPath])
	assert.Equal(t, implPath, out.Artifacts.ImplFile)
}

func TestRefactor_RollbackIsByteExactOnDisk(t *testing.T) {
	store, err := workspace.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	original := "export function add(a, b) {\r\n\treturn a + b // ünïcode\n}\n\n"
	require.NoError(t, store.Write(testPath, "test"))
	require.NoError(t, store.Write(implPath, original))

	gen := &fakeGen{refactors: []generate.ProposedRefactor{{Code: "export const add = () => 0\n"}}}
	runner := alwaysFail("expected 3, got 0")

	out := NewRefactor(gen, store, runner).Run(context.Background(), testPath, implPath)

	assert.False(t, out.Succeeded)
	data, err := os.ReadFile(filepath.Join(store.Root(), implPath))
	require.NoError(t, err)
	assert.Equal(t, []byte(original), data)
}

func TestRefactor_RollbackFailure(t *testing.T) {
	ws := refactorWorkspace()
	ws.failWrite[2] = errors.New("read-only file system")
	gen := &fakeGen{refactors: []generate.ProposedRefactor{{Code: "broken"}}}
	m := telemetry.NewMetrics()
	core, logs := observer.New(zap.ErrorLevel)

	out := NewRefactor(gen, ws, alwaysFail("boom"), WithMetrics(m), WithLogger(zap.New(core))).
		Run(context.Background(), testPath, implPath)

	assert.False(t, out.Succeeded)
	assert.Equal(t, KindRollback, out.Kind)
	assert.Contains(t, out.Message, "rollback failed")
	assert.Contains(t, out.Message, "read-only file system")
	assert.Equal(t, 1, logs.FilterMessage("rollback failed").Len())

	expected := "# HELP tdd_rollback_failures_total Refactor rollbacks whose restore write failed\n" +
		"# TYPE tdd_rollback_failures_total counter\n" +
		"tdd_rollback_failures_total 1\n"
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "tdd_rollback_failures_total"))
}

func TestRefactor_UnreadableFiles(t *testing.T) {
	gen := &fakeGen{}
	runner := alwaysPass()

	ws := newMemWorkspace()
	ws.files[testPath] = "t"
	out := NewRefactor(gen, ws, runner).Run(context.Background(), testPath, implPath)
	assert.Equal(t, KindIO, out.Kind)

	out = NewRefactor(gen, newMemWorkspace(), runner).Run(context.Background(), testPath, implPath)
	assert.Equal(t, KindIO, out.Kind)

	assert.Zero(t, gen.refactorCalls)
	assert.Zero(t, runner.calls)
}

func TestRefactor_GenerationFailureLeavesFileAlone(t *testing.T) {
	ws := refactorWorkspace()
	gen := &fakeGen{refErrs: []error{generate.ErrEmptyResponse}}
	runner := &funcRunner{fn: func(int) checks.TestResult { return checks.TestResult{Success: true} }}

	out := NewRefactor(gen, ws, runner).Run(context.Background(), testPath, implPath)

	assert.Equal(t, KindGeneration, out.Kind)
	assert.Equal(t, "original", ws.files[implPath])
	assert.Empty(t, ws.writes)
}

func TestRefactor_WriteFailure(t *testing.T) {
	ws := refactorWorkspace()
	ws.failWrite[1] = errors.New("disk full")
	gen := &fakeGen{refactors: []generate.ProposedRefactor{{Code: "new"}}}
	runner := alwaysPass()

	out := NewRefactor(gen, ws, runner).Run(context.Background(), testPath, implPath)

	assert.Equal(t, KindIO, out.Kind)
	assert.Equal(t, "original", ws.files[implPath])
	assert.Zero(t, runner.calls)
}
