package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/rfqflow"
	"github.com/aretw0/rfqflow/internal/cli"
	mcpadapter "github.com/aretw0/rfqflow/pkg/adapters/mcp"
	"github.com/aretw0/rfqflow/pkg/domain"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes proposal threads as MCP tools, so an agent can start a draft, read it and
send the review verdict.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")
		tenant, _ := cmd.Flags().GetString("tenant")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if tenant == "" {
			tenant = app.Config.Auth.DefaultTenant
		}
		srv := mcpadapter.NewServer(app.Runner, rfqflow.Version,
			mcpadapter.WithLogger(app.Logger),
			mcpadapter.WithSession(domain.Session{TenantID: tenant}))

		switch transport {
		case "stdio":
			// Stdout carries JSON-RPC.
			log.SetOutput(os.Stderr)
			app.Logger.Info("starting MCP server (stdio)", "tenant", tenant)
			return srv.ServeStdio()
		case "sse":
			if addr == "" {
				addr = app.Config.Server.MCPAddr
			}
			if addr == "" {
				addr = ":8081"
			}
			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()
			if err := srv.ServeSSE(sc, addr, baseURL); err != nil {
				return err
			}
			app.Logger.Info("MCP server stopped")
			return nil
		default:
			return fmt.Errorf("unknown transport %q: supported are stdio and sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", "", "Address to listen on for SSE (defaults to server.mcp_addr)")
	mcpCmd.Flags().String("base-url", "", "Public base URL announced to SSE clients")
	mcpCmd.Flags().String("tenant", "", "Tenant the MCP session acts as (defaults to auth.default_tenant)")
}
