// Package shell runs build-backend processes through os/exec.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

// allowListedEnvVars are the system environment variables a build process may
// inherit. Everything else is dropped so builds stay reproducible.
var allowListedEnvVars = map[string]struct{}{
	"HOME": {},
	"TERM": {},
	"USER": {},
	"PATH": {},
	"LANG": {},
}

// Runner implements ports.Runner using os/exec.
type Runner struct {
	logger ports.Logger
}

// NewRunner creates a Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes the invocation and waits for it. Process output is forwarded
// line by line to the logger and, when set, to the invocation's writers. A
// non-zero exit surfaces as domain.ErrBackendFailure carrying the exit code.
func (r *Runner) Run(ctx context.Context, inv ports.Invocation) error {
	if inv.Path == "" {
		return zerr.With(domain.ErrBackendFailure, "reason", "empty command")
	}

	stdoutLog := &logWriter{logger: r.logger, level: "info"}
	stderrLog := &logWriter{logger: r.logger, level: "warn"}
	defer func() {
		_ = stdoutLog.Close()
		_ = stderrLog.Close()
	}()

	stdout := io.Writer(stdoutLog)
	if inv.Stdout != nil {
		stdout = io.MultiWriter(stdoutLog, inv.Stdout)
	}
	stderr := io.Writer(stderrLog)
	if inv.Stderr != nil {
		stderr = io.MultiWriter(stderrLog, inv.Stderr)
	}

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...) //nolint:gosec // backend-declared command
	cmd.Dir = inv.Dir
	cmd.Env = resolveEnvironment(os.Environ(), inv.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		wrapped := zerr.With(
			zerr.With(zerr.Wrap(domain.ErrBackendFailure, err.Error()), "command", inv.Path),
			"exit_code", exitCode,
		)
		if exitCode >= 0 {
			return &ExitError{err: wrapped, code: exitCode}
		}
		return wrapped
	}
	return nil
}

// ExitError reports a backend process that ran to completion and exited
// non-zero. The exit status is surfaced in the build report.
type ExitError struct {
	err  error
	code int
}

func (e *ExitError) Error() string { return e.err.Error() }
func (e *ExitError) Unwrap() error { return e.err }

// ExitCode returns the process exit status.
func (e *ExitError) ExitCode() int { return e.code }

// Look resolves a tool name against PATH.
func (r *Runner) Look(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", zerr.With(domain.ErrMissingToolchain, "tool", name)
	}
	return path, nil
}

var _ ports.Runner = (*Runner)(nil)

// resolveEnvironment merges the allow-listed system environment with the
// invocation's entries, invocation winning on conflicts.
func resolveEnvironment(sysEnv, invEnv []string) []string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}
	for _, entry := range invEnv {
		k, v, ok := strings.Cut(entry, "=")
		if ok {
			envMap[k] = v
		}
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// logWriter buffers process output and emits it one line at a time.
type logWriter struct {
	logger ports.Logger
	level  string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")
	if msg == "" {
		return
	}
	if w.level == "info" {
		w.logger.Info(msg)
	} else {
		w.logger.Warn(msg)
	}
}
