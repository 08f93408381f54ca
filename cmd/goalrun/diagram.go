package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/goalrun/pkg/diagram"
)

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [workflow.yaml]",
	Short: "Draw a workflow as a Mermaid flowchart or ASCII boxes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	refs, err := loadWorkflows(cmd.ErrOrStderr(), cfg, args)
	if err != nil {
		return err
	}
	out, err := diagram.Generate(refs[0].Workflow, diagram.Format(diagramFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func init() {
	diagramCmd.Flags().StringVarP(&diagramFormat, "format", "f", string(diagram.FormatMermaid), "Output format: mermaid or ascii")
	rootCmd.AddCommand(diagramCmd)
}
