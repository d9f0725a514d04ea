package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/statforge/internal/cli"
	"github.com/aretw0/statforge/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow as a Mermaid diagram",
	Long: `Prints the conversion stages as a Mermaid flowchart.
With --session, the stages the session has visited and the one it will run next are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(nil))
			return nil
		}
		return withApp(cmd, func(app *cli.App) error {
			state, err := app.Converter.Inspect(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(graph.OverlayFor(state)))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the progress of this session")
}
