// Package spawn runs the next pipeline stage as a child process with a
// wall-clock budget. It is a generic "run external command with piped or
// inherited stdio, environment overrides, working directory, and a
// cancellable deadline" primitive; argument-vector assembly is a thin
// adapter on top.
package spawn

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	batonerrors "baton/internal/errors"
	"baton/internal/logging"
	"baton/internal/utils/id"
	"baton/pkg/types"
)

// DefaultTimeout bounds a child invocation when the caller does not say
// otherwise.
const DefaultTimeout = 5 * time.Minute

// Options describes one child invocation.
type Options struct {
	// Command is the persona executable to launch.
	Command         string
	TargetPersona   string
	ContextPath     string
	TaskDescription string
	// Interactive hands the parent's terminal streams to the child; nothing
	// is captured in that mode.
	Interactive bool
	Timeout     time.Duration
	WorkingDir  string
	// Env entries are appended over the parent environment.
	Env       map[string]string
	ExtraArgs []string
}

// Runner is implemented by anything that can execute one persona stage.
// The coordinator depends on this interface so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, opts Options) (*types.TaskResult, error)
}

// ProcessRunner launches real OS processes.
type ProcessRunner struct {
	logger *logging.Logger
}

// NewRunner returns a ProcessRunner.
func NewRunner() *ProcessRunner {
	return &ProcessRunner{logger: logging.NewComponentLogger("Spawn")}
}

// BuildArgs assembles the child argument vector: persona selector, context
// file path, task description, and an explicit non-interactive flag when
// applicable, followed by any caller-supplied extras.
func BuildArgs(opts Options) []string {
	args := []string{
		"--persona", opts.TargetPersona,
		"--context-file", opts.ContextPath,
		"--task", opts.TaskDescription,
	}
	if !opts.Interactive {
		args = append(args, "--non-interactive")
	}
	return append(args, opts.ExtraArgs...)
}

// Run spawns the child and awaits its exit. A nonzero exit is a result, not
// an error: the caller inspects TaskResult.Status. Failure to start at all
// yields ProcessSpawnError; exceeding the wall-clock budget kills the child's
// whole process group and yields TimeoutError with no partial result.
func (r *ProcessRunner) Run(ctx context.Context, opts Options) (*types.TaskResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := exec.Command(opts.Command, BuildArgs(opts)...)
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}
	cmd.Env = mergedEnv(opts.Env)

	var stdout, stderr bytes.Buffer
	if opts.Interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &batonerrors.ProcessSpawnError{Command: opts.Command, Err: err}
	}
	r.logger.Debug("spawned %s pid=%d persona=%s timeout=%s",
		opts.Command, cmd.Process.Pid, opts.TargetPersona, timeout)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		return r.buildResult(opts, waitErr, stdout.String(), stderr.String(), time.Since(start))
	case <-ctx.Done():
		killTree(cmd)
		<-done
		return nil, ctx.Err()
	case <-timer.C:
		killTree(cmd)
		<-done
		r.logger.Warn("%s pid=%d exceeded %s, killed process group", opts.Command, cmd.Process.Pid, timeout)
		return nil, &batonerrors.TimeoutError{Command: opts.Command, Timeout: timeout}
	}
}

func (r *ProcessRunner) buildResult(opts Options, waitErr error, stdout, stderr string, elapsed time.Duration) (*types.TaskResult, error) {
	result := &types.TaskResult{
		TaskID:        id.NewTaskID(),
		Output:        stdout,
		ExecutionTime: elapsed,
	}

	if waitErr == nil {
		result.Status = types.StatusCompleted
		return result, nil
	}

	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		// wait failed for a reason other than the child's exit status
		return nil, fmt.Errorf("spawn: await %s: %w", opts.Command, waitErr)
	}

	result.Status = types.StatusFailed
	result.Error = strings.TrimSpace(stderr)
	if result.Error == "" {
		result.Error = fmt.Sprintf("exited with code %d", exitErr.ExitCode())
	}
	return result, nil
}

// mergedEnv appends overrides over the parent environment in sorted key
// order so repeated spawns are reproducible.
func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	if len(overrides) == 0 {
		return env
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
