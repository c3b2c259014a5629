package http

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// Engine runs proposal threads. *runner.Runner satisfies it.
type Engine interface {
	Start(ctx context.Context, threadID string, initial domain.State) iter.Seq[runner.Step]
	Resume(ctx context.Context, threadID string, fb domain.Feedback, sessionData map[string]any) iter.Seq[runner.Step]
	Retry(ctx context.Context, threadID string) iter.Seq[runner.Step]
	Get(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	History(ctx context.Context, threadID string) ([]*domain.Checkpoint, bool, error)
	Delete(ctx context.Context, threadID string) error
	List(ctx context.Context) ([]string, error)
}

// Exporter publishes approved threads. *proposal.ExportService satisfies it.
type Exporter interface {
	Export(ctx context.Context, threadID string, req proposal.ExportRequest) (proposal.ExportResult, error)
}

// Ingester stores uploaded RFQ documents. *proposal.IngestService satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, tenant string, doc domain.Document) (proposal.IngestResult, error)
}

// Server serves the thread and tenant APIs.
type Server struct {
	Engine   Engine
	Repo     ports.DocumentRepository
	Exporter Exporter
	Ingester Ingester
	Streams  *StreamManager

	logger   *slog.Logger
	auth     *Authenticator
	session  domain.Session
	limiter  *TenantLimiter
	gatherer prometheus.Gatherer
	origins  []string
	version  string
	validate bool
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthenticator requires a valid bearer token on every /v1 request.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithDefaultSession is the session used when no authenticator is installed.
func WithDefaultSession(sess domain.Session) Option {
	return func(s *Server) { s.session = sess }
}

// WithRateLimiter limits requests per tenant.
func WithRateLimiter(l *TenantLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithRepository exposes the tenant's RFQs, proposals and documents.
func WithRepository(repo ports.DocumentRepository) Option {
	return func(s *Server) { s.Repo = repo }
}

// WithExporter enables POST /v1/threads/{id}/export.
func WithExporter(e Exporter) Option {
	return func(s *Server) { s.Exporter = e }
}

// WithIngester extracts RFQ metadata and prompt suggestions from uploaded documents.
// Without it POST /v1/documents only stores the text.
func WithIngester(i Ingester) Option {
	return func(s *Server) { s.Ingester = i }
}

// WithMetrics serves the gatherer's collectors on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithAllowedOrigins enables CORS for the listed origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithoutValidation disables OpenAPI request validation.
func WithoutValidation() Option {
	return func(s *Server) { s.validate = false }
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s := &Server{
		Engine:   engine,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		session:  domain.Session{TenantID: "default"},
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	var validator func(http.Handler) http.Handler
	if s.validate {
		doc, err := LoadSpec()
		if err != nil {
			return nil, err
		}
		if validator, err = requestValidator(doc); err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, s.recoverer, s.requestLogger, cors(s.origins))

	r.Get("/healthz", s.health)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(specYAML)
	})
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate, s.rateLimit)
		if validator != nil {
			r.Use(validator)
		}

		r.Get("/threads", s.listThreads)
		r.Post("/threads", s.startThread)
		r.Get("/threads/{id}", s.getThread)
		r.Delete("/threads/{id}", s.deleteThread)
		r.Post("/threads/{id}/resume", s.resumeThread)
		r.Post("/threads/{id}/retry", s.retryThread)
		r.Get("/threads/{id}/history", s.threadHistory)
		r.Get("/threads/{id}/events", s.threadEvents)
		r.Post("/threads/{id}/export", s.exportThread)

		r.Get("/rfqs/recent", s.recentRFQs)
		r.Get("/prompt-suggestions", s.promptSuggestions)
		r.Get("/proposals/winning", s.winningProposals)
		r.Get("/activity", s.recentActivity)
		r.Post("/documents", s.uploadDocument)
	})
	return r, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.version != "" {
		resp["version"] = s.version
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered", "panic", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, ok := allowed[origin]
			if _, wildcard := allowed["*"]; wildcard {
				ok = origin != ""
			}
			if ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && origin != "" {
				if ok {
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
