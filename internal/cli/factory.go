package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/aretw0/rfqflow/internal/config"
	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/internal/metrics"
	"github.com/aretw0/rfqflow/pkg/adapters/file"
	"github.com/aretw0/rfqflow/pkg/adapters/memory"
	"github.com/aretw0/rfqflow/pkg/adapters/openai"
	"github.com/aretw0/rfqflow/pkg/adapters/redis"
	sqlstore "github.com/aretw0/rfqflow/pkg/adapters/sql"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/persistence/middleware"
	"github.com/aretw0/rfqflow/pkg/ports"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/retrieval"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// App holds the wired components shared by every command.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Runner   *runner.Runner
	Graph    *graph.Graph
	Store    ports.Checkpointer
	Repo     ports.DocumentRepository
	Memory   ports.MemoryStore
	Exporter *proposal.ExportService
	Ingester *proposal.IngestService
	Registry *prometheus.Registry

	closers []io.Closer
}

// AppOption adjusts wiring, mostly for tests.
type AppOption func(*appOptions)

type appOptions struct {
	llm   ports.LLM
	hooks []domain.LifecycleHooks
}

// WithLLM replaces the configured model.
func WithLLM(llm ports.LLM) AppOption {
	return func(o *appOptions) { o.llm = llm }
}

// WithHooks adds lifecycle hooks to the runner.
func WithHooks(h domain.LifecycleHooks) AppOption {
	return func(o *appOptions) { o.hooks = append(o.hooks, h) }
}

// NewApp wires the workflow according to cfg.
func NewApp(cfg *config.Config, logger *slog.Logger, opts ...AppOption) (app *App, err error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	app = &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	var db *gorm.DB
	if cfg.Database.Driver != "" {
		db, err = sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			app.closers = append(app.closers, sqlDB)
		}
		if err = sqlstore.Migrate(db); err != nil {
			return nil, err
		}
		app.Repo = sqlstore.NewRepository(db)
		app.Memory = sqlstore.NewMemoryStore(db)
	} else {
		app.Repo = memory.NewRepository()
		app.Memory = memory.NewMemoryStore()
	}

	store, locker, err := app.checkpointer(db)
	if err != nil {
		return nil, err
	}
	app.Store = store

	llm := o.llm
	if llm == nil {
		llm = newLLM(cfg.LLM)
	}
	app.Graph, err = proposal.NewGraph(proposal.Deps{
		LLM:          llm,
		Retriever:    retrieval.New(app.Repo),
		Memory:       app.Memory,
		Model:        cfg.LLM.Model,
		MaxRevisions: cfg.Runner.MaxRevisions,
		LLMTimeout:   cfg.LLM.Timeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hooks := metrics.New(app.Registry).Hooks()
	for _, h := range o.hooks {
		hooks = hooks.Merge(h)
	}

	ropts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithRecursionLimit(cfg.Runner.RecursionLimit),
		runner.WithNodeTimeout(cfg.Runner.NodeTimeout),
		runner.WithLifecycleHooks(hooks),
		runner.WithParams(map[string]any{
			proposal.ParamExamplesK:  cfg.Runner.RetrievalK,
			proposal.ParamGroundingK: cfg.Runner.RetrievalK,
			proposal.ParamMemoryK:    cfg.Runner.MemoryK,
		}),
	}
	if locker != nil {
		ropts = append(ropts, runner.WithLocker(locker), runner.WithLockTTL(cfg.Runner.LockTTL))
	}
	app.Runner = runner.New(app.Graph, app.Store, ropts...)
	app.Exporter = proposal.NewExportService(app.Runner, file.NewExporter(cfg.Export.Root), app.Repo)
	app.Ingester = proposal.NewIngestService(llm, app.Repo, cfg.LLM.Model, logger)
	return app, nil
}

// checkpointer builds the configured store and wraps it with redaction and encryption.
func (a *App) checkpointer(db *gorm.DB) (ports.Checkpointer, ports.DistributedLocker, error) {
	cfg := a.Config.Checkpoint
	var (
		store  ports.Checkpointer
		locker ports.DistributedLocker
	)
	switch cfg.Driver {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverFile:
		store = file.New(cfg.Path)
	case config.DriverRedis:
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.TTL))
		a.closers = append(a.closers, rs)
		store = rs
		locker = redis.NewLocker(rs.Client(), redis.DefaultPrefix, redis.WithLockerLogger(a.Logger))
	case config.DriverSQL:
		if db == nil {
			return nil, nil, errors.New("checkpoint driver sql needs a database")
		}
		store = sqlstore.NewStore(db, sqlstore.WithHistoryLimit(cfg.HistoryLimit))
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewRedactionMiddleware(cfg.Redact)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		active, fallback, err := cfg.Keys()
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	if len(mws) > 0 {
		a.Logger.Info("checkpoint middleware enabled", "redact", len(cfg.Redact) > 0, "encrypt", cfg.EncryptionKey != "")
	}
	return middleware.Chain(store, mws...), locker, nil
}

// Close releases database and redis connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLLM(cfg config.LLMConfig) ports.LLM {
	if cfg.Provider == config.ProviderScripted {
		return OfflineLLM()
	}
	return openai.New(openai.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
	})
}

// OfflineLLM answers every workflow prompt with a canned reply, for demos without an API key.
func OfflineLLM() *memory.ScriptedLLM {
	const draft = "# Proposal\n\n## Scope\n\nWe will deliver the requested services as described in the RFQ.\n\n" +
		"## Methodology\n\nWork is organised per lot with certified staff.\n\n## Schedule\n\nTo be agreed at kick-off."
	return memory.NewScriptedLLM("I can help with RFQs and proposals. Ask me to draft one.",
		memory.Rule{Match: "intent classification agent", Reply: "rag"},
		memory.Rule{Match: "review user requests before a proposal is drafted", Reply: `{"needs_clarification": false, "message": "Drafting your proposal."}`},
		memory.Rule{Match: "proposal structuring agent", Reply: `{"type": "full_proposal", "sections": ["Scope", "Methodology", "Schedule"]}`},
		memory.Rule{Match: "expert proposal writer", Reply: draft},
		memory.Rule{Match: "expert in reviewing proposals", Reply: draft},
		memory.Rule{Match: "extract metadata from tender documents", Reply: `{"organization_name": null, "title": null, "reference_no": null, "submission_deadline": null, "country_or_region": null, "contact_email": null}`},
		memory.Rule{Match: "generate insightful prompt suggestions", Reply: `{"prompts": ["What is the scope of each lot?", "Which qualifications must the team hold?", "What is the submission deadline?", "How will the bid be evaluated?"]}`},
	)
}
