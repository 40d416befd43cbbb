// Package generate asks a code generation oracle for tests, implementations
// and refactors.
package generate

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the oracle answers with no content.
	ErrEmptyResponse = errors.New("empty response from generator")
	// ErrMalformedResponse is returned when the answer cannot be decoded,
	// lacks a required field, or names a path outside the project.
	ErrMalformedResponse = errors.New("malformed generator response")
)

// ProposedTest is a failing test the oracle wants written.
type ProposedTest struct {
	Code     string `json:"test_code" validate:"notblank"`
	Filepath string `json:"test_filepath" validate:"notblank"`
}

// ProposedImpl is an implementation meant to make the test pass.
type ProposedImpl struct {
	Code     string `json:"implementation_code" validate:"notblank"`
	Filepath string `json:"implementation_filepath" validate:"notblank"`
}

// ProposedRefactor replaces the implementation without changing behavior.
type ProposedRefactor struct {
	Code    string `json:"refactored_code" validate:"notblank"`
	Summary string `json:"changes_made"`
}

// NoChangesSummary is used when a refactor response carries no summary.
const NoChangesSummary = "No changes needed"

// Generator is the oracle behind the three phases.
type Generator interface {
	ProposeFailingTest(ctx context.Context, requirement, listing string) (ProposedTest, error)
	ProposeMinimalImplementation(ctx context.Context, testCode, errorContext string) (ProposedImpl, error)
	ProposeRefactor(ctx context.Context, testCode, implCode string) (ProposedRefactor, error)
}
