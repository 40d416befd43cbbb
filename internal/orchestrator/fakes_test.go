package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/tddfactory/internal/checks"
	"github.com/lucasnoah/tddfactory/internal/generate"
	"github.com/lucasnoah/tddfactory/internal/phase"
)

// scriptGen replays queued proposals and counts calls per operation.
type scriptGen struct {
	tests     []generate.ProposedTest
	impls     []generate.ProposedImpl
	refactors []generate.ProposedRefactor

	testCalls     int
	implCalls     int
	refactorCalls int
	listings      []string
}

func (g *scriptGen) ProposeFailingTest(ctx context.Context, requirement, listing string) (generate.ProposedTest, error) {
	g.listings = append(g.listings, listing)
	i := g.testCalls
	g.testCalls++
	if i >= len(g.tests) {
		return generate.ProposedTest{}, errors.New("no test queued")
	}
	return g.tests[i], nil
}

func (g *scriptGen) ProposeMinimalImplementation(ctx context.Context, testCode, errorContext string) (generate.ProposedImpl, error) {
	i := g.implCalls
	g.implCalls++
	if i >= len(g.impls) {
		return generate.ProposedImpl{}, errors.New("no impl queued")
	}
	return g.impls[i], nil
}

func (g *scriptGen) ProposeRefactor(ctx context.Context, testCode, implCode string) (generate.ProposedRefactor, error) {
	i := g.refactorCalls
	g.refactorCalls++
	if i >= len(g.refactors) {
		return generate.ProposedRefactor{}, errors.New("no refactor queued")
	}
	return g.refactors[i], nil
}

// goodImplRunner passes when root/path exists and contains "GOOD".
type goodImplRunner struct {
	root  string
	path  string
	calls int
}

func (r *goodImplRunner) Run(ctx context.Context) checks.TestResult {
	r.calls++
	data, err := os.ReadFile(filepath.Join(r.root, r.path))
	if err != nil {
		return checks.TestResult{Output: "Cannot find module './" + r.path + "'"}
	}
	if strings.Contains(string(data), "GOOD") {
		return checks.TestResult{Success: true, Output: "1 passed"}
	}
	return checks.TestResult{Output: "expected 5, received undefined"}
}

type passingRunner struct{ calls int }

func (r *passingRunner) Run(ctx context.Context) checks.TestResult {
	r.calls++
	return checks.TestResult{Success: true, Output: "1 passed"}
}

// stubPhase records invocations and returns a fixed outcome.
type stubPhase struct {
	out   phase.Outcome
	calls int
	args  []string
}

type stubRed struct{ stubPhase }

func (s *stubRed) Run(ctx context.Context, requirement, listing string) phase.Outcome {
	s.calls++
	s.args = append(s.args, requirement, listing)
	return s.out
}

type stubGreen struct {
	stubPhase
	maxRetries int
}

func (s *stubGreen) Run(ctx context.Context, testFilepath string, maxRetries int) phase.Outcome {
	s.calls++
	s.args = append(s.args, testFilepath)
	s.maxRetries = maxRetries
	return s.out
}

type stubRefactor struct{ stubPhase }

func (s *stubRefactor) Run(ctx context.Context, testFilepath, implFilepath string) phase.Outcome {
	s.calls++
	s.args = append(s.args, testFilepath, implFilepath)
	return s.out
}

type staticLister struct {
	files []string
	err   error
}

func (l staticLister) List() ([]string, error) {
	return l.files, l.err
}

// statusCycle returns a queued record per requirement.
type statusCycle struct {
	statuses []CycleStatus
	seen     []string
}

func (c *statusCycle) Run(ctx context.Context, requirement string) CycleRecord {
	i := len(c.seen)
	c.seen = append(c.seen, requirement)
	rec := CycleRecord{Requirement: requirement, Status: c.statuses[i]}
	red := phase.Succeeded(phase.PhaseRed, "ok", "", phase.Artifacts{TestFile: "t.test.js"})
	rec.Red = &red
	if rec.Status == StatusFailedRefactor {
		g := phase.Succeeded(phase.PhaseGreen, "ok", "", phase.Artifacts{ImplFile: "impl.js"})
		rf := phase.Failed(phase.PhaseRefactor, phase.KindRollback, "rollback failed", "")
		rec.Green, rec.Refactor = &g, &rf
	}
	return rec
}
