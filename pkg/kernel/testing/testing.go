// Package testing implements the scenario harness. A scenario runs one or
// more workflows on a fake clock, feeds them a scripted stream of
// instructions and checks the outcome with expr-lang assertions.
package testing

import (
	"fmt"
	"os"
	"time"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"
)

// Scenario declares a scripted run and what to assert about it.
type Scenario struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Workflows are paths relative to the scenario file. Several workflows
	// run as one schedule.
	Workflows []string `yaml:"workflows" json:"workflows"`
	Steps     []Step   `yaml:"steps,omitempty" json:"steps,omitempty"`
	Expect    []string `yaml:"expect,omitempty" json:"expect,omitempty"`
	// ExpectError inverts the instruction check: at least one step must
	// be rejected.
	ExpectError bool     `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// StepAction names a scripted step.
type StepAction string

const (
	ActionOk     StepAction = "ok"
	ActionYes    StepAction = "yes"
	ActionNo     StepAction = "no"
	ActionSkip   StepAction = "skip"
	ActionAck    StepAction = "ack"
	ActionPause  StepAction = "pause"
	ActionResume StepAction = "resume"
	ActionAbort  StepAction = "abort"
	ActionWait   StepAction = "wait"
	ActionDone   StepAction = "done"
)

// Step is one scripted action. Plain actions are written as scalars
// ("ok"); wait and done take an argument ({wait: 5s}, {done: t1}).
type Step struct {
	Action   StepAction
	Wait     time.Duration
	MiniTask string
}

func (s Step) String() string {
	switch s.Action {
	case ActionWait:
		return fmt.Sprintf("wait %s", s.Wait)
	case ActionDone:
		return fmt.Sprintf("done %s", s.MiniTask)
	}
	return string(s.Action)
}

// UnmarshalYAML accepts both step forms.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch a := StepAction(node.Value); a {
		case ActionOk, ActionYes, ActionNo, ActionSkip, ActionAck, ActionPause, ActionResume, ActionAbort:
			s.Action = a
			return nil
		}
		return fmt.Errorf("line %d: unknown step %q", node.Line, node.Value)
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: a step map holds exactly one action", node.Line)
		}
		key, val := node.Content[0].Value, node.Content[1].Value
		switch StepAction(key) {
		case ActionWait:
			d, err := time.ParseDuration(val)
			if err != nil || d < 0 {
				return fmt.Errorf("line %d: wait: invalid duration %q", node.Line, val)
			}
			s.Action, s.Wait = ActionWait, d
			return nil
		case ActionDone:
			if val == "" {
				return fmt.Errorf("line %d: done: mini-task id required", node.Line)
			}
			s.Action, s.MiniTask = ActionDone, val
			return nil
		}
		return fmt.Errorf("line %d: unknown step %q", node.Line, key)
	}
	return fmt.Errorf("line %d: step must be a string or a map", node.Line)
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Workflows) == 0 {
		return nil, fmt.Errorf("parse scenario: no workflows")
	}
	return &s, nil
}

// RunResult is the state observed at the end of a scripted run. It is the
// environment the expect expressions are evaluated in.
type RunResult struct {
	Log       []string
	Phase     string
	State     string
	Reminders int
	Events    []string
	Title     string
	Current   string
	Next      string
	Prev      string
	Pending   []string
	// Errors are the rejected steps, formatted "step: error".
	Errors []string
}

func (r *RunResult) env() map[string]any {
	return map[string]any{
		"log":       nonNil(r.Log),
		"phase":     r.Phase,
		"state":     r.State,
		"reminders": r.Reminders,
		"events":    nonNil(r.Events),
		"title":     r.Title,
		"current":   r.Current,
		"next":      r.Next,
		"prev":      r.Prev,
		"pending":   nonNil(r.Pending),
		"errors":    nonNil(r.Errors),
	}
}

// nonNil converts s for expr: array literals in expressions are []any, so
// lists must be []any to compare equal with ==.
func nonNil(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// AssertionResult is the result of a single assertion.
type AssertionResult struct {
	Type       string `json:"type"` // expect or expect_error
	Expression string `json:"expression,omitempty"`
	Passed     bool   `json:"passed"`
	Message    string `json:"message,omitempty"`
}

// Evaluate checks the scenario's instruction expectation and every
// expect expression against run.
func Evaluate(sc *Scenario, run *RunResult) []AssertionResult {
	var results []AssertionResult

	rejected := len(run.Errors) > 0
	switch {
	case sc.ExpectError && !rejected:
		results = append(results, AssertionResult{
			Type:    "expect_error",
			Message: "expected a rejected step, every step was accepted",
		})
	case !sc.ExpectError && rejected:
		results = append(results, AssertionResult{
			Type:    "expect_error",
			Message: fmt.Sprintf("rejected steps: %v", run.Errors),
		})
	default:
		results = append(results, AssertionResult{Type: "expect_error", Passed: true})
	}

	env := run.env()
	for _, e := range sc.Expect {
		results = append(results, evalExpr(e, env))
	}
	return results
}

func evalExpr(e string, env map[string]any) AssertionResult {
	res := AssertionResult{Type: "expect", Expression: e}
	program, err := expr.Compile(e, expr.Env(env), expr.AsBool())
	if err != nil {
		res.Message = fmt.Sprintf("compile: %s", err)
		return res
	}
	out, err := expr.Run(program, env)
	if err != nil {
		res.Message = fmt.Sprintf("eval: %s", err)
		return res
	}
	res.Passed, _ = out.(bool)
	if !res.Passed {
		res.Message = "expression is false"
	}
	return res
}

// HasFailures returns true if any assertion failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
