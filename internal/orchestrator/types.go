// Package orchestrator sequences the RED, GREEN and REFACTOR phases into
// cycles, and cycles into a pipeline over an ordered requirement list.
package orchestrator

import (
	"time"

	"github.com/lucasnoah/tddfactory/internal/phase"
)

// CycleStatus is the final state of one requirement's cycle.
type CycleStatus string

const (
	StatusComplete       CycleStatus = "complete"
	StatusFailedRed      CycleStatus = "failed_red"
	StatusFailedGreen    CycleStatus = "failed_green"
	StatusFailedRefactor CycleStatus = "failed_refactor"
)

// CycleRecord holds the outcome of every phase a cycle attempted. Phases
// after the first failure are nil.
type CycleRecord struct {
	Requirement string         `json:"requirement"`
	Status      CycleStatus    `json:"status"`
	Red         *phase.Outcome `json:"red,omitempty"`
	Green       *phase.Outcome `json:"green,omitempty"`
	Refactor    *phase.Outcome `json:"refactor,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

// Failed returns the outcome of the phase that stopped the cycle, or nil
// for a complete cycle.
func (r CycleRecord) Failed() *phase.Outcome {
	switch r.Status {
	case StatusFailedRed:
		return r.Red
	case StatusFailedGreen:
		return r.Green
	case StatusFailedRefactor:
		return r.Refactor
	}
	return nil
}

// Summary is the result of one pipeline run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Cycles    []CycleRecord `json:"cycles"`
	Duration  time.Duration `json:"duration"`
}

// AllComplete reports whether every cycle finished with StatusComplete.
func (s Summary) AllComplete() bool {
	return s.Completed == s.Total
}

// RollbackFailures counts cycles whose refactor could not be reverted.
func (s Summary) RollbackFailures() int {
	n := 0
	for _, c := range s.Cycles {
		if c.Refactor != nil && c.Refactor.Kind == phase.KindRollback {
			n++
		}
	}
	return n
}
