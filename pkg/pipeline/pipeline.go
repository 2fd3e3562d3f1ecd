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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

// Stage is one bootstrap step.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

type funcStage struct {
	name string
	run  func(ctx context.Context) error
}

func (s funcStage) Name() string                  { return s.name }
func (s funcStage) Run(ctx context.Context) error { return s.run(ctx) }

// NewStage returns a Stage calling run.
func NewStage(name string, run func(ctx context.Context) error) Stage {
	return funcStage{name: name, run: run}
}

// Status is the outcome of a stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	// StatusNotRun marks stages after a failure.
	StatusNotRun Status = "not-run"
)

// Statuses lists every Status.
var Statuses = []Status{StatusOK, StatusFailed, StatusSkipped, StatusNotRun}

// Result is the outcome of one stage.
type Result struct {
	Stage    string        `json:"stage" yaml:"stage"`
	Status   Status        `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID    string    `json:"runID" yaml:"runID"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`
	Results  []Result  `json:"results" yaml:"results"`
}

// Failed returns the failed result, if any.
func (s *Summary) Failed() *Result {
	for i := range s.Results {
		if s.Results[i].Status == StatusFailed {
			return &s.Results[i]
		}
	}
	return nil
}

// Pipeline runs stages in order.
type Pipeline struct {
	stages      []Stage
	only        []string
	skip        []string
	metricsFile string
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOnly restricts the run to the named stages.
func WithOnly(names ...string) Option {
	return func(p *Pipeline) {
		p.only = append(p.only, names...)
	}
}

// WithSkip excludes the named stages.
func WithSkip(names ...string) Option {
	return func(p *Pipeline) {
		p.skip = append(p.skip, names...)
	}
}

// WithMetricsFile writes Prometheus textfile metrics after the run.
func WithMetricsFile(path string) Option {
	return func(p *Pipeline) {
		p.metricsFile = path
	}
}

// New returns a Pipeline for stages.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{stages: stages, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Names returns the stage names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

func (p *Pipeline) validate() error {
	known := p.Names()
	var unknown []string
	for _, n := range append(slices.Clone(p.only), p.skip...) {
		if !slices.Contains(known, n) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("unknown stage(s) %s, valid stages: %s", strings.Join(unknown, ", "), strings.Join(known, ", ")),
			map[string]any{"unknown": unknown})
	}
	return nil
}

// Selected returns the names of the stages a Run would execute, in order.
func (p *Pipeline) Selected() ([]string, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	var out []string
	for _, n := range p.Names() {
		if p.selected(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (p *Pipeline) selected(name string) bool {
	if len(p.only) > 0 && !slices.Contains(p.only, name) {
		return false
	}
	return !slices.Contains(p.skip, name)
}

// Run executes the selected stages and stops at the first failure. The
// returned error is the failing stage's error. The summary is returned in
// every case except invalid stage filters.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	sum := &Summary{RunID: uuid.NewString(), Started: p.now()}
	var runErr error
	for _, s := range p.stages {
		r := Result{Stage: s.Name()}
		switch {
		case runErr != nil:
			r.Status = StatusNotRun
		case !p.selected(s.Name()):
			r.Status = StatusSkipped
			slog.Debug("stage skipped", "stage", s.Name())
		default:
			runErr = p.runStage(ctx, s, &r)
		}
		sum.Results = append(sum.Results, r)
	}
	sum.Finished = p.now()

	if p.metricsFile != "" {
		if err := WriteMetrics(p.metricsFile, sum); err != nil {
			slog.Warn("failed to write metrics", "path", p.metricsFile, "error", err)
		}
	}
	return sum, runErr
}

func (p *Pipeline) runStage(ctx context.Context, s Stage, r *Result) error {
	log := slog.With("stage", s.Name())
	log.Info("stage started")
	start := p.now()

	err := ctx.Err()
	if err == nil {
		err = s.Run(ctx)
	}
	r.Duration = p.now().Sub(start)

	if err != nil {
		r.Status = StatusFailed
		r.Message = err.Error()
		log.Error("stage failed", "duration", r.Duration, "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrap(apperrors.ErrCodeTimeout, "stage "+s.Name()+" interrupted", err)
		}
		return fmt.Errorf("stage %s: %w", s.Name(), err)
	}
	r.Status = StatusOK
	log.Info("stage completed", "duration", r.Duration)
	return nil
}
