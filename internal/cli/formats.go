package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grapher/pkg/engine"
)

// formatsCommand lists the layouts and formats the engine supports.
func (c *CLI) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported layouts and output formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(StyleTitle.Render("Graphviz engine"))
			printKeyValue("layouts", joinNames(c.Engine.Layouts(), engine.DefaultLayout))
			printKeyValue("formats", joinNames(c.Engine.Formats(), engine.DefaultFormat))
			return nil
		},
	}
}

// joinNames lists names comma-separated, marking the default one.
func joinNames[T ~string](names []T, def T) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
		if n == def {
			parts[i] += " (default)"
		}
	}
	return strings.Join(parts, ", ")
}
