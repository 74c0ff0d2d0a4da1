package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clarifai/internal/pipeline"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the pipeline topology as a Mermaid diagram",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), pipeline.DefaultGraph().Mermaid())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
