package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/goalrun/pkg/config"
	"github.com/ormasoftchile/goalrun/pkg/kernel/schema"
	"github.com/ormasoftchile/goalrun/pkg/kernel/validate"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "goalrun",
	Short:        "Step-by-step workflow runner with reminders",
	Long:         "goalrun guides a person through goal workflows one instruction at a time: tasks, questions, loops, parallel checklists and timed waits.",
	SilenceUsage: true,
}

// loadConfig reads the file named by --config plus GOALRUN_* overrides.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate a workflow YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, diags := validate.ValidateFile(args[0])
	errs, warnings := validate.Split(diags)
	stderr := cmd.ErrOrStderr()

	for _, w := range warnings {
		fmt.Fprintf(stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errs) > 0 {
		fmt.Fprintf(stderr, "Validation failed: %d error(s)\n\n", len(errs))
		for i, e := range errs {
			fmt.Fprintf(stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errs))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d blocks, %d warning(s))\n",
		doc.Goal.Name, countBlocks(doc.Goal.Blocks), len(warnings))
	return nil
}

func countBlocks(blocks []schema.Block) int {
	n := 0
	schema.WalkBlocks(blocks, func(*schema.Block) { n++ })
	return n
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the workflow format",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		formatted = data
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "goalrun %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a goalrun YAML config file")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(historyCmd)
}
