package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/rfqflow"
	"github.com/aretw0/rfqflow/internal/cli"
	"github.com/aretw0/rfqflow/pkg/domain"
)

var runCmd = &cobra.Command{
	Use:   "run [query...]",
	Short: "Draft a proposal interactively",
	Long: `Starts a thread with the given query and asks for your verdict each time a draft is ready.
Without a query, --thread picks up a thread that is waiting for review.`,
	Example: `  rfqflow run "Write a proposal for RFQ 42, drilling services"
  rfqflow run --thread 5f0c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		tenant, _ := cmd.Flags().GetString("tenant")
		plain, _ := cmd.Flags().GetBool("plain")
		query := strings.Join(args, " ")
		if query == "" && threadID == "" {
			return cmd.Help()
		}
		if threadID == "" {
			threadID = uuid.NewString()
		}

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if tenant == "" {
			tenant = app.Config.Auth.DefaultTenant
		}

		out := cmd.OutOrStdout()
		rv := &cli.Reviewer{
			Engine:  app.Runner,
			In:      cmd.InOrStdin(),
			Out:     out,
			Session: domain.Session{TenantID: tenant},
		}
		if !plain && cli.IsTerminal(out) {
			cli.PrintBanner(out, rfqflow.Version)
			render, err := cli.NewMarkdownRenderer(cli.TerminalWidth(os.Stdout))
			if err != nil {
				return err
			}
			rv.Render = render
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		res, err := rv.Run(sc, threadID, query)
		if err != nil && cli.IsInterrupted(err) {
			app.Logger.Info("stopped", "thread_id", res.ThreadID, "kind", res.Kind.String())
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("thread", "t", "", "Thread id to start or pick up (generated when empty)")
	runCmd.Flags().String("tenant", "", "Tenant to run as (defaults to auth.default_tenant)")
	runCmd.Flags().Bool("plain", false, "Stream raw Markdown instead of rendering it")
}
