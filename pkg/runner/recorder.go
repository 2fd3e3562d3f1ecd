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
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

// Call is one recorded invocation.
type Call struct {
	Name  string
	Args  []string
	Stdin string
}

// String renders the call like a command line.
func (c Call) String() string {
	return CommandLine(c.Name, c.Args...)
}

// Response is scripted output for a command prefix.
type Response struct {
	Output   string
	ExitCode int
	Err      error
	// Hook, when set, observes the call before the response is returned.
	Hook func(Call)
}

// Recorder is a Runner that records calls and replays scripted responses.
// Responses are matched by the longest registered command-line prefix.
// Unmatched commands succeed with empty output.
type Recorder struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string][]Response
	missing   map[string]bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		responses: make(map[string][]Response),
		missing:   make(map[string]bool),
	}
}

// On registers a response for commands starting with prefix.
// Multiple registrations for the same prefix are returned in order; the last
// one repeats once the queue is drained.
func (r *Recorder) On(prefix string, resp Response) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = append(r.responses[prefix], resp)
	return r
}

// Missing marks a binary as absent from PATH.
func (r *Recorder) Missing(name string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing[name] = true
	return r
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CommandLines returns the recorded calls rendered as strings.
func (r *Recorder) CommandLines() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

// Called reports whether any recorded command line starts with prefix.
func (r *Recorder) Called(prefix string) bool {
	for _, line := range r.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Run implements Runner.
func (r *Recorder) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.RunWithInput(ctx, nil, name, args...)
}

// RunWithInput implements Runner.
func (r *Recorder) RunWithInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		call.Stdin = string(b)
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	resp, ok := r.match(call.String())
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeTimeout, "command canceled", err)
	}
	if !ok {
		return nil, nil
	}
	if resp.Hook != nil {
		resp.Hook(call)
	}
	if resp.Err != nil {
		return []byte(resp.Output), resp.Err
	}
	if resp.ExitCode != 0 {
		return []byte(resp.Output), apperrors.NewWithContext(apperrors.ErrCodeInternal,
			fmt.Sprintf("%s exited with code %d", call.String(), resp.ExitCode),
			map[string]any{"command": call.String(), "exit_code": resp.ExitCode})
	}
	return []byte(resp.Output), nil
}

// LookPath implements Runner.
func (r *Recorder) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[name] {
		return "", apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("%s not found in PATH", name))
	}
	return "/usr/bin/" + name, nil
}

// match must be called with r.mu held.
func (r *Recorder) match(line string) (Response, bool) {
	best := ""
	found := false
	for prefix := range r.responses {
		if strings.HasPrefix(line, prefix) && (!found || len(prefix) > len(best)) {
			best = prefix
			found = true
		}
	}
	if !found {
		return Response{}, false
	}
	queue := r.responses[best]
	resp := queue[0]
	if len(queue) > 1 {
		r.responses[best] = queue[1:]
	}
	return resp, true
}
