package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage checkpointed threads",
	Long:  `List, inspect and remove the threads kept by the configured checkpoint store.`,
}

var threadLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.Runner.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No threads found.")
			return nil
		}
		for _, id := range ids {
			cp, err := app.Runner.Get(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
				continue
			}
			fmt.Fprintf(out, "- %s  %s  step %d  %s\n", id, cp.RunStatus, cp.Step, cp.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var threadInspectCmd = &cobra.Command{
	Use:   "inspect <thread-id>",
	Short: "Print the latest checkpoint of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, _ := cmd.Flags().GetBool("history")
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var v any
		if history {
			versions, ok, err := app.Runner.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("the configured checkpoint store keeps no history")
			}
			v = versions
		} else {
			cp, err := app.Runner.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load thread %q: %w", args[0], err)
			}
			v = cp
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var threadRmCmd = &cobra.Command{
	Use:   "rm <thread-id>...",
	Short: "Remove one or more threads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var errs []error
		for _, id := range args {
			if err := app.Runner.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("remove %q: %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed thread '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadLsCmd, threadInspectCmd, threadRmCmd)
	threadInspectCmd.Flags().Bool("history", false, "Print every stored version (sql store only)")
}
