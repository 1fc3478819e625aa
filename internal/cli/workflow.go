package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grapher/pkg/renderer"
)

// workflowCommand creates the workflow command, which renders workflow DAG
// files (JOB / PARENT ... CHILD ... statements).
func (c *CLI) workflowCommand() *cobra.Command {
	var opts renderOpts
	var dotOnly bool

	cmd := &cobra.Command{
		Use:   "workflow [file|-]",
		Short: "Render a workflow DAG file",
		Example: `  grapher workflow pipeline.dag
  grapher workflow pipeline.dag --dot > pipeline.dot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := inputArg(args)
			if dotOnly {
				return printWorkflowDOT(cmd, input)
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.applyConfig(cmd, cfg)
			return c.runRender(cmd, input, &opts, true)
		},
	}

	addRenderFlags(cmd, &opts)
	cmd.Flags().BoolVar(&dotOnly, "dot", false, "print the generated DOT instead of rendering")
	return cmd
}

func printWorkflowDOT(cmd *cobra.Command, input string) error {
	src, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	dot, err := renderer.WorkflowDOT(src)
	if err != nil {
		return fmt.Errorf("%s: %w", displayName(input), err)
	}
	_, err = cmd.OutOrStdout().Write(dot)
	return err
}
