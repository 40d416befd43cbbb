// Package checks runs the project's test command and reports pass/fail with output.
package checks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TestResult is the outcome of one test-command invocation. Success means
// the command exited 0 within the timeout.
type TestResult struct {
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Config describes how to invoke the test suite.
type Config struct {
	Dir       string
	Command   string
	Timeout   time.Duration
	MaxOutput int
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner by shelling out.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	killProcessGroup(cmd)

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			exitCode = exitErr.ExitCode()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Runner executes the configured test command.
type Runner struct {
	cmd    CommandRunner
	cfg    Config
	logger *zap.Logger
}

// DefaultTimeout bounds a test run when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// NewRunner creates a Runner with the given command runner.
func NewRunner(cmd CommandRunner, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = defaultMaxOutput
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cmd: cmd, cfg: cfg, logger: logger}
}

// Run executes the test command once. It never returns an error: a timeout
// or an execution fault is reported as an unsuccessful result whose output
// describes what happened.
func (r *Runner) Run(ctx context.Context) TestResult {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := r.cmd.Run(ctx, r.cfg.Dir, r.cfg.Command)
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("test run timed out",
			zap.String("command", r.cfg.Command),
			zap.Duration("timeout", r.cfg.Timeout),
		)
		return TestResult{
			Output:   fmt.Sprintf("timeout after %s", r.cfg.Timeout),
			ExitCode: -1,
			TimedOut: true,
			Duration: elapsed,
		}
	}

	if err != nil {
		r.logger.Error("test command could not run",
			zap.String("command", r.cfg.Command),
			zap.Error(err),
		)
		out := combineOutput(stdout, stderr, r.cfg.MaxOutput)
		if out != "" {
			out += "\n"
		}
		return TestResult{
			Output:   out + fmt.Sprintf("test runner error: %v", err),
			ExitCode: -1,
			Duration: elapsed,
		}
	}

	result := TestResult{
		Success:  exitCode == 0,
		Output:   combineOutput(stdout, stderr, r.cfg.MaxOutput),
		ExitCode: exitCode,
		Duration: elapsed,
	}
	r.logger.Debug("test run finished",
		zap.Bool("success", result.Success),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", elapsed),
	)
	return result
}
