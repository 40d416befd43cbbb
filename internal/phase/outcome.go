// Package phase implements the RED, GREEN and REFACTOR steps of one
// test-driven cycle. Every phase reports its result as an Outcome value;
// gateway faults never escape as errors.
package phase

import "time"

// Name identifies a phase.
type Name string

const (
	PhaseRed      Name = "RED"
	PhaseGreen    Name = "GREEN"
	PhaseRefactor Name = "REFACTOR"
)

// FailureKind classifies why a phase failed. It is empty on success.
type FailureKind string

const (
	// KindIO covers unreadable files, failed writes and failed listings.
	KindIO FailureKind = "io"
	// KindTest is a test failure that was not the expected signal.
	KindTest FailureKind = "test"
	// KindContract is a RED test that passed before any implementation existed.
	KindContract FailureKind = "contract"
	// KindGeneration is an oracle error or an unusable oracle response.
	KindGeneration FailureKind = "generation"
	// KindRollback is a refactor regression whose restore also failed. The
	// implementation file may be left in the broken refactored state.
	KindRollback FailureKind = "rollback"
)

// Artifacts are the files a phase produced or relied on.
type Artifacts struct {
	TestFile string `json:"test_file,omitempty"`
	ImplFile string `json:"impl_file,omitempty"`
}

// Outcome is the result of running one phase.
type Outcome struct {
	Succeeded bool          `json:"succeeded"`
	Phase     Name          `json:"phase"`
	Message   string        `json:"message"`
	Kind      FailureKind   `json:"kind,omitempty"`
	RawOutput string        `json:"raw_output,omitempty"`
	Artifacts Artifacts     `json:"artifacts"`
	Attempts  int           `json:"attempts,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded builds a successful outcome.
func Succeeded(phase Name, message, rawOutput string, artifacts Artifacts) Outcome {
	return Outcome{
		Succeeded: true,
		Phase:     phase,
		Message:   message,
		RawOutput: rawOutput,
		Artifacts: artifacts,
	}
}

// Failed builds a failed outcome of the given kind.
func Failed(phase Name, kind FailureKind, message, rawOutput string) Outcome {
	return Outcome{
		Phase:     phase,
		Message:   message,
		Kind:      kind,
		RawOutput: rawOutput,
	}
}
