package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	runtest "github.com/ormasoftchile/goalrun/pkg/kernel/testing"
)

var (
	testJSON     bool
	testFailFast bool
)

var testCmd = &cobra.Command{
	Use:   "test [scenario.yaml|dir...]",
	Short: "Run scripted scenario tests",
	Long: `Run each scenario on a fake clock and check its expect expressions.
Directories are searched recursively for *.scenario.yaml files.

The command fails when any scenario fails or cannot be run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths, err := runtest.DiscoverScenarios(args...)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenarios found")
	}

	runner := &runtest.Runner{
		Model:    cfg.ModelOptions(),
		Engine:   cfg.EngineConfig(),
		FailFast: testFailFast,
	}
	output := runner.RunAll(paths)

	if testJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(output); err != nil {
			return err
		}
	} else {
		printTestOutput(cmd.OutOrStdout(), output)
	}

	if output.Summary.Failed > 0 || output.Summary.Errors > 0 {
		return fmt.Errorf("%d failed, %d error(s)", output.Summary.Failed, output.Summary.Errors)
	}
	return nil
}

func printTestOutput(w io.Writer, output *runtest.TestOutput) {
	for _, s := range output.Scenarios {
		switch s.Status {
		case "passed":
			fmt.Fprintf(w, "  ✓ %-40s %dms\n", s.Scenario, s.DurationMs)
		case "failed":
			fmt.Fprintf(w, "  ✗ %-40s %dms\n", s.Scenario, s.DurationMs)
			for _, a := range s.Assertions {
				if a.Passed {
					continue
				}
				if a.Expression != "" {
					fmt.Fprintf(w, "      %s: %s\n", a.Expression, a.Message)
				} else {
					fmt.Fprintf(w, "      %s: %s\n", a.Type, a.Message)
				}
			}
			fmt.Fprintf(w, "      log: %q\n", s.Log)
		case "error":
			fmt.Fprintf(w, "  ! %-40s %s\n", s.Scenario, s.Error)
		}
	}
	fmt.Fprintf(w, "\n  %d passed, %d failed, %d error(s)\n",
		output.Summary.Passed, output.Summary.Failed, output.Summary.Errors)
}

func init() {
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as structured JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after first failure")
}
