package fio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/vkuzn/fiobench/pkg/config"
)

// ExecError reports a failed benchmark run: the child process exited
// non-zero, was killed, or produced output that could not be parsed.
type ExecError struct {
	Pattern string
	Stderr  string
	Err     error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("pattern %s: %v", e.Pattern, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Runner invokes the benchmarking binary for one pattern at a time. The
// binary path is configurable so tests can substitute a stub.
type Runner struct {
	Binary string
}

// NewRunner returns a Runner that invokes "fio" from PATH.
func NewRunner() *Runner {
	return &Runner{Binary: "fio"}
}

// Run executes one pattern against the configured test file and parses the
// JSON result fio writes into the results directory. The context cancels the
// child process, so an interrupt leaves no orphaned fio behind.
func (r *Runner) Run(ctx context.Context, p config.Params, pat config.Pattern, dir string) (*Summary, error) {
	cmd := exec.CommandContext(ctx, r.Binary, Args(p, pat, dir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &ExecError{Pattern: pat.Name, Err: ctx.Err()}
		}
		return nil, &ExecError{Pattern: pat.Name, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	sum, err := ParseFile(ResultFile(dir, pat.Name), pat.Name)
	if err != nil {
		return nil, &ExecError{Pattern: pat.Name, Err: err}
	}
	return sum, nil
}

// CheckBinary verifies the benchmarking binary is present and runnable.
func (r *Runner) CheckBinary(ctx context.Context) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, "--version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s not available: %w", r.Binary, err)
	}
	return nil
}

// Prepare readies the environment for a run: removes a stale test file so
// fio lays it out fresh, and checks the target filesystem has room for it.
func (r *Runner) Prepare(p config.Params) error {
	if err := os.Remove(p.Filename); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale test file: %w", err)
	}
	size, err := ParseSize(p.FileSize)
	if err != nil {
		return &config.ConfigError{Field: "file_size", Msg: err.Error()}
	}
	return checkSpace(p.Filename, size)
}
