package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/workflow-engine/internal/interfaces/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Print a Mermaid diagram of a definition",
	Long:  `Outputs a Mermaid flowchart (graph TD) of the states and actions in a definition file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadRequest(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(req.ToDefinition()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
