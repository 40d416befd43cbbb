package phase

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucasnoah/tddfactory/internal/checks"
	"github.com/lucasnoah/tddfactory/internal/generate"
)

// fakeGen returns queued proposals per operation and records calls.
type fakeGen struct {
	tests     []generate.ProposedTest
	impls     []generate.ProposedImpl
	refactors []generate.ProposedRefactor
	testErrs  []error
	implErrs  []error
	refErrs   []error

	testCalls     int
	implCalls     int
	refactorCalls int
	implContexts  []string
}

func (f *fakeGen) ProposeFailingTest(ctx context.Context, requirement, listing string) (generate.ProposedTest, error) {
	i := f.testCalls
	f.testCalls++
	if i < len(f.testErrs) && f.testErrs[i] != nil {
		return generate.ProposedTest{}, f.testErrs[i]
	}
	if i >= len(f.tests) {
		return generate.ProposedTest{}, errors.New("no test queued")
	}
	return f.tests[i], nil
}

func (f *fakeGen) ProposeMinimalImplementation(ctx context.Context, testCode, errorContext string) (generate.ProposedImpl, error) {
	i := f.implCalls
	f.implCalls++
	f.implContexts = append(f.implContexts, errorContext)
	if i < len(f.implErrs) && f.implErrs[i] != nil {
		return generate.ProposedImpl{}, f.implErrs[i]
	}
	if i >= len(f.impls) {
		return generate.ProposedImpl{}, errors.New("no impl queued")
	}
	return f.impls[i], nil
}

func (f *fakeGen) ProposeRefactor(ctx context.Context, testCode, implCode string) (generate.ProposedRefactor, error) {
	i := f.refactorCalls
	f.refactorCalls++
	if i < len(f.refErrs) && f.refErrs[i] != nil {
		return generate.ProposedRefactor{}, f.refErrs[i]
	}
	if i >= len(f.refactors) {
		return generate.ProposedRefactor{}, errors.New("no refactor queued")
	}
	return f.refactors[i], nil
}

// memWorkspace is an in-memory Workspace. failWrite makes the Nth write
// (1-based, counted across all paths) fail.
type memWorkspace struct {
	files     map[string]string
	writes    []string
	failWrite map[int]error
}

func newMemWorkspace() *memWorkspace {
	return &memWorkspace{files: make(map[string]string), failWrite: make(map[int]error)}
}

func (m *memWorkspace) Read(path string) (string, error) {
	content, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("%s: file not found", path)
	}
	return content, nil
}

func (m *memWorkspace) Write(path, content string) error {
	m.writes = append(m.writes, path)
	if err := m.failWrite[len(m.writes)]; err != nil {
		return err
	}
	m.files[path] = content
	return nil
}

// funcRunner decides pass/fail by inspecting state at call time.
type funcRunner struct {
	calls int
	fn    func(call int) checks.TestResult
}

func (r *funcRunner) Run(ctx context.Context) checks.TestResult {
	r.calls++
	return r.fn(r.calls)
}

// passWhen passes when the file at path holds want.
func passWhen(ws *memWorkspace, path, want string) *funcRunner {
	return &funcRunner{fn: func(int) checks.TestResult {
		if ws.files[path] == want {
			return checks.TestResult{Success: true, Output: "1 passed"}
		}
		return checks.TestResult{Output: fmt.Sprintf("FAIL: %s has %q", path, ws.files[path])}
	}}
}

func alwaysFail(output string) *funcRunner {
	return &funcRunner{fn: func(int) checks.TestResult { return checks.TestResult{Output: output} }}
}

func alwaysPass() *funcRunner {
	return &funcRunner{fn: func(int) checks.TestResult { return checks.TestResult{Success: true, Output: "ok"} }}
}
