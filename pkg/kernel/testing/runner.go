package testing

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/clock"
	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/validate"
	"github.com/ormasoftchile/goalrun/pkg/runtime"
	"github.com/ormasoftchile/goalrun/pkg/scheduler"
)

// ScenarioSuffix marks scenario files found by DiscoverScenarios.
const ScenarioSuffix = ".scenario.yaml"

// Epoch is the fake clock's start time for every scenario.
var Epoch = time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)

// TestResult is the result of running one scenario.
type TestResult struct {
	Scenario    string            `json:"scenario"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status"` // passed, failed, error
	DurationMs  int64             `json:"duration_ms"`
	Assertions  []AssertionResult `json:"assertions,omitempty"`
	Log         []string          `json:"log,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// TestSummary aggregates counts across scenarios.
type TestSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// TestOutput is the top-level output of a test run.
type TestOutput struct {
	Scenarios []TestResult `json:"scenarios"`
	Summary   TestSummary  `json:"summary"`
}

// Runner executes scenario files.
type Runner struct {
	Model    model.Options
	Engine   engine.Config
	FailFast bool
}

// NewRunner returns a runner with default timer settings.
func NewRunner() *Runner {
	return &Runner{Engine: engine.DefaultConfig()}
}

// DiscoverScenarios expands paths: files are taken as is, directories are
// searched recursively for *.scenario.yaml files.
func DiscoverScenarios(paths ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == p || strings.HasSuffix(path, ScenarioSuffix) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover scenarios: %w", err)
		}
	}
	return out, nil
}

// RunAll runs every scenario in paths.
func (r *Runner) RunAll(paths []string) *TestOutput {
	output := &TestOutput{}
	for _, p := range paths {
		result := r.Run(p)
		output.Scenarios = append(output.Scenarios, result)

		switch result.Status {
		case "passed":
			output.Summary.Passed++
		case "failed":
			output.Summary.Failed++
		case "error":
			output.Summary.Errors++
		}
		output.Summary.Total++

		if r.FailFast && result.Status != "passed" {
			break
		}
	}
	return output
}

// Run executes a single scenario file.
func (r *Runner) Run(path string) TestResult {
	start := time.Now()
	result := TestResult{Scenario: path}
	fail := func(format string, args ...any) TestResult {
		result.Status = "error"
		result.Error = fmt.Sprintf(format, args...)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	sc, err := LoadScenario(path)
	if err != nil {
		return fail("%s", err)
	}
	result.Description = sc.Description

	var refs []scheduler.Ref
	for _, rel := range sc.Workflows {
		wfPath := filepath.Join(filepath.Dir(path), rel)
		wf, err := r.load(wfPath)
		if err != nil {
			return fail("%s", err)
		}
		refs = append(refs, scheduler.Ref{Path: wfPath, Workflow: wf})
	}

	run, err := r.Execute(context.Background(), refs, sc.Steps)
	if err != nil {
		return fail("%s", err)
	}

	result.Assertions = Evaluate(sc, run)
	result.Log = run.Log
	result.Status = "passed"
	if HasFailures(result.Assertions) {
		result.Status = "failed"
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// load validates and compiles a workflow file. Warnings are ignored.
func (r *Runner) load(path string) (*model.Workflow, error) {
	doc, diags := validate.ValidateFile(path)
	if validate.HasErrors(diags) {
		errs, _ := validate.Split(diags)
		return nil, fmt.Errorf("workflow %s is invalid: %s", path, errs[0])
	}
	wf, err := model.Compile(doc, r.Model)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return wf, nil
}

// Execute schedules refs on a fake clock, applies steps in order and
// returns the observed end state. Rejected steps are recorded in
// RunResult.Errors and do not stop the script.
func (r *Runner) Execute(ctx context.Context, refs []scheduler.Ref, steps []Step) (*RunResult, error) {
	fc := clock.NewFake(Epoch)
	rec := &eventRecorder{}
	s := scheduler.New(
		scheduler.WithClock(fc),
		scheduler.WithObserver(rec),
		scheduler.WithCursorConfig(r.Engine),
		scheduler.WithID("scenario"),
	)
	for _, ref := range refs {
		if err := s.Enqueue(ref); err != nil {
			return nil, err
		}
	}
	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	run := &RunResult{}
	for i, step := range steps {
		if err := apply(ctx, s, fc, step); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("step %d (%s): %s", i+1, step, err))
		}
	}

	run.Log = s.LogTexts()
	run.State = string(s.State())
	run.Events = rec.types()
	for _, t := range run.Events {
		if t == string(runtime.EventReminderFired) {
			run.Reminders++
		}
	}
	if v, ok := s.Display(); ok {
		run.Phase = string(v.Phase)
		run.Title = v.Title
		run.Current = v.Current.Text
		run.Next = v.Next.Text
		run.Prev = v.Prev.Text
		for _, p := range v.Pending {
			run.Pending = append(run.Pending, p.BlockID)
		}
	} else {
		run.Phase = string(engine.AtEnd)
		run.Current = engine.PreviewEnd
	}
	return run, nil
}

func apply(ctx context.Context, s *scheduler.Scheduler, fc *clock.Fake, step Step) error {
	switch step.Action {
	case ActionOk:
		return s.Dispatch(ctx, engine.Ok())
	case ActionYes:
		return s.Dispatch(ctx, engine.Yes())
	case ActionNo:
		return s.Dispatch(ctx, engine.No())
	case ActionSkip:
		return s.Dispatch(ctx, engine.Skip())
	case ActionDone:
		return s.Dispatch(ctx, engine.Complete(step.MiniTask))
	case ActionAck:
		return s.Acknowledge(ctx)
	case ActionPause:
		return s.Pause(ctx)
	case ActionResume:
		return s.Resume(ctx)
	case ActionAbort:
		return s.Abort(ctx)
	case ActionWait:
		fc.Advance(step.Wait)
		return nil
	}
	return fmt.Errorf("unknown step %q", step.Action)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) OnEvent(_ context.Context, ev runtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(ev.Type))
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
