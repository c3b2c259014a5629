package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/rfqflow/internal/cli"
	"github.com/aretw0/rfqflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "rfqflow",
	Short: "rfqflow drafts proposals for requests for quotation",
	Long: `rfqflow answers RFQs with proposal drafts grounded in your documents and past wins.
Every draft waits for a human verdict before it is accepted.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "rfqflow.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Log node transitions at debug level")
}

// loadApp reads the configuration and wires the workflow for a command.
func loadApp(cmd *cobra.Command, opts ...cli.AppOption) (*cli.App, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	if debug {
		opts = append(opts, cli.WithHooks(cli.DebugHooks(logger)))
	}
	return cli.NewApp(cfg, logger, opts...)
}
