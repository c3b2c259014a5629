package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/rfqflow/pkg/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow as a Mermaid diagram",
	Long: `Prints the proposal workflow as a Mermaid flowchart (graph TD).
With --thread, the nodes the thread went through and the node it waits on are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var overlay *graph.Overlay
		if threadID != "" {
			cp, err := app.Runner.Get(cmd.Context(), threadID)
			if err != nil {
				return fmt.Errorf("load thread %q: %w", threadID, err)
			}
			overlay = &graph.Overlay{CurrentNode: cp.Next}
			for _, m := range cp.State.Messages {
				if m.Name != "" {
					overlay.VisitedNodes = append(overlay.VisitedNodes, m.Name)
				}
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), app.Graph.Mermaid(overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("thread", "t", "", "Highlight the path of this thread")
}
