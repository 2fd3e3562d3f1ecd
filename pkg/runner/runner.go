// Copyright 2026 The labctl Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

// maxErrorOutput caps how much command output is embedded in an error message.
const maxErrorOutput = 2048

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and returns its combined stdout and stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunWithInput is Run with stdin attached to the given reader.
	RunWithInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
	// LookPath reports the resolved path of a binary.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	// DryRun logs commands instead of executing them. Run returns empty output.
	DryRun bool
	// Env is appended to the inherited process environment.
	Env []string
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithDryRun enables dry-run mode.
func WithDryRun(dryRun bool) Option {
	return func(r *ExecRunner) {
		r.DryRun = dryRun
	}
}

// WithEnv adds KEY=VALUE pairs to every command environment.
func WithEnv(env ...string) Option {
	return func(r *ExecRunner) {
		r.Env = append(r.Env, env...)
	}
}

// New returns an ExecRunner configured with the given options.
func New(opts ...Option) *ExecRunner {
	r := &ExecRunner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.RunWithInput(ctx, nil, name, args...)
}

// RunWithInput implements Runner.
func (r *ExecRunner) RunWithInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmdline := CommandLine(name, args...)
	if r.DryRun {
		slog.Info("dry-run", "command", cmdline)
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	slog.Debug("command finished",
		"command", cmdline,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err)

	if err != nil {
		return out.Bytes(), commandError(ctx, cmdline, out.Bytes(), err)
	}
	return out.Bytes(), nil
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeNotFound, fmt.Sprintf("%s not found in PATH", name), err)
	}
	return p, nil
}

func commandError(ctx context.Context, cmdline string, out []byte, err error) error {
	errCtx := map[string]any{"command": cmdline}
	if trimmed := trimOutput(out); trimmed != "" {
		errCtx["output"] = trimmed
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeTimeout, "command canceled", ctxErr, errCtx)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return apperrors.WrapWithContext(apperrors.ErrCodeNotFound, "command not found", err, errCtx)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		errCtx["exit_code"] = exitErr.ExitCode()
		msg := fmt.Sprintf("%s exited with code %d", cmdline, exitErr.ExitCode())
		if trimmed := trimOutput(out); trimmed != "" {
			msg += ": " + trimmed
		}
		return apperrors.NewWithContext(apperrors.ErrCodeInternal, msg, errCtx)
	}
	return apperrors.WrapWithContext(apperrors.ErrCodeInternal, "command failed", err, errCtx)
}

func trimOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxErrorOutput {
		s = s[len(s)-maxErrorOutput:]
	}
	return s
}

// ExitCode extracts the exit code from an error returned by Run.
// It returns -1 when the error does not carry one.
func ExitCode(err error) int {
	var se *apperrors.StructuredError
	if errors.As(err, &se) && se.Context != nil {
		if code, ok := se.Context["exit_code"].(int); ok {
			return code
		}
	}
	return -1
}

// Euid returns the effective user id. Tests replace it.
var Euid = os.Geteuid

// AsRoot runs a command that needs root, through `sudo -n` when the process
// is not root. The runner has no terminal, so sudo must not prompt.
func AsRoot(ctx context.Context, r Runner, name string, args ...string) ([]byte, error) {
	if Euid() == 0 {
		return r.Run(ctx, name, args...)
	}
	return r.Run(ctx, "sudo", append([]string{"-n", name}, args...)...)
}

// CommandLine renders a command for logs. Arguments containing spaces are quoted.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
