package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/rfqflow/pkg/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Store RFQ documents and extract their metadata",
	Long: `Reads the text of each file, stores it for the tenant and records the RFQ metadata and
prompt suggestions the model extracts from it. Files must already be plain text or Markdown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant, _ := cmd.Flags().GetString("tenant")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)
			res, err := app.Ingester.Ingest(cmd.Context(), tenant, domain.Document{Name: name, FileName: name, Content: string(data)})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(out, "RFQ #%d %s (%s)\n", res.RFQ.ID, res.RFQ.Title, name)
			for _, q := range res.RFQ.PromptSuggestions {
				fmt.Fprintf(out, "  - %s\n", q)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().String("tenant", "default", "Tenant that owns the documents")
}
