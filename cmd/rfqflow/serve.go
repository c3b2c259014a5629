package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/rfqflow"
	"github.com/aretw0/rfqflow/internal/cli"
	httpadapter "github.com/aretw0/rfqflow/pkg/adapters/http"
	mcpadapter "github.com/aretw0/rfqflow/pkg/adapters/mcp"
	"github.com/aretw0/rfqflow/pkg/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the thread and tenant API over HTTP. When server.mcp_addr is set, the MCP
server is exposed over SSE on that address as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		cfg := app.Config

		opts := []httpadapter.Option{
			httpadapter.WithLogger(app.Logger),
			httpadapter.WithDefaultSession(domain.Session{TenantID: cfg.Auth.DefaultTenant}),
			httpadapter.WithRepository(app.Repo),
			httpadapter.WithExporter(app.Exporter),
			httpadapter.WithIngester(app.Ingester),
			httpadapter.WithMetrics(app.Registry),
			httpadapter.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
			httpadapter.WithVersion(rfqflow.Version),
		}
		if cfg.Auth.Secret != "" {
			opts = append(opts, httpadapter.WithAuthenticator(httpadapter.NewAuthenticator([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)))
		}
		if cfg.Server.RateLimit > 0 {
			opts = append(opts, httpadapter.WithRateLimiter(httpadapter.NewTenantLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)))
		}
		handler, err := httpadapter.NewHandler(app.Runner, opts...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()
		g, ctx := errgroup.WithContext(sc)

		g.Go(func() error {
			app.Logger.Info("http server listening", "addr", srv.Addr, "version", rfqflow.Version)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		if cfg.Server.MCPAddr != "" {
			mcpSrv := mcpadapter.NewServer(app.Runner, rfqflow.Version,
				mcpadapter.WithLogger(app.Logger),
				mcpadapter.WithSession(domain.Session{TenantID: cfg.Auth.DefaultTenant}))
			g.Go(func() error {
				return mcpSrv.ServeSSE(ctx, cfg.Server.MCPAddr, "")
			})
		}
		g.Go(func() error {
			<-ctx.Done()
			if sig := sc.Signal(); sig != nil {
				app.Logger.Info("shutting down", "signal", sig.String())
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.Logger.Warn("graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "err", err)
				return srv.Close()
			}
			app.Logger.Info("http server stopped")
			return nil
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
