// Package mcp exposes proposal threads as Model Context Protocol tools, so that an
// assistant can draft a proposal, show it to its user and relay the review.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// GraphURI is the resource holding the Mermaid rendering of the workflow.
const GraphURI = "rfqflow://graph"

// Engine runs proposal threads. *runner.Runner satisfies it.
type Engine interface {
	Start(ctx context.Context, threadID string, initial domain.State) iter.Seq[runner.Step]
	Resume(ctx context.Context, threadID string, fb domain.Feedback, sessionData map[string]any) iter.Seq[runner.Step]
	Get(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	Graph() *graph.Graph
}

// ThreadResponse is the structured result of every thread tool.
type ThreadResponse struct {
	ThreadID        string           `json:"thread_id" jsonschema_description:"Thread to pass to resume_thread"`
	RunStatus       domain.RunStatus `json:"run_status" jsonschema_description:"running, suspended, done or failed"`
	Interrupt       bool             `json:"interrupt" jsonschema_description:"True when the draft waits for review"`
	Message         string           `json:"message,omitempty"`
	Proposal        string           `json:"proposal,omitempty" jsonschema_description:"Current draft in Markdown"`
	Answer          string           `json:"answer,omitempty" jsonschema_description:"Reply to a direct question"`
	FeedbackOptions []string         `json:"feedback_options,omitempty"`
	Status          domain.Status    `json:"status"`
	Iteration       int              `json:"iteration"`
	Error           string           `json:"error,omitempty"`
}

type startArgs struct {
	UserQuery string `json:"user_query"`
	ThreadID  string `json:"thread_id,omitempty"`
}

type resumeArgs struct {
	ThreadID string `json:"thread_id"`
	Decision string `json:"decision,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type getArgs struct {
	ThreadID string `json:"thread_id"`
}

// Server wraps an Engine as an MCP server.
type Server struct {
	engine    Engine
	session   domain.Session
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithSession sets the identity threads are created under.
func WithSession(sess domain.Session) Option {
	return func(s *Server) { s.session = sess }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server for engine.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		session: domain.Session{TenantID: "default"},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("rfqflow", strings.TrimSpace(version),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop MCP server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_thread",
		mcp.WithDescription("Start drafting a proposal or answering a question. Returns the draft for review when the workflow pauses."),
		mcp.WithString("user_query", mcp.Required(), mcp.Description("The request, e.g. 'Write a proposal for the drilling RFQ'")),
		mcp.WithString("thread_id", mcp.Description("Reuse an existing finished thread (optional)")),
		mcp.WithOutputSchema[ThreadResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("resume_thread",
		mcp.WithDescription("Send the reviewer's verdict on the draft of a suspended thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread returned by start_thread")),
		mcp.WithString("decision", mcp.Enum("approve", "revise"), mcp.Description("Verdict; inferred from the comment when omitted")),
		mcp.WithString("comment", mcp.Description("What to change, or free text containing approve/revise")),
		mcp.WithOutputSchema[ThreadResponse](),
	), mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("get_thread",
		mcp.WithDescription("Show where a thread stands."),
		mcp.WithString("thread_id", mcp.Required()),
		mcp.WithOutputSchema[ThreadResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Proposal workflow",
		mcp.WithResourceDescription("Mermaid flowchart of the proposal workflow"),
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/vnd.mermaid",
				Text:     s.engine.Graph().Mermaid(nil),
			},
		}, nil
	})
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args startArgs) (ThreadResponse, error) {
	if strings.TrimSpace(args.UserQuery) == "" {
		return ThreadResponse{}, errors.New("user_query is required")
	}
	threadID := args.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	} else if cp, err := s.engine.Get(ctx, threadID); err == nil && cp.State.Tenant() != s.session.TenantID {
		return ThreadResponse{}, fmt.Errorf("thread id %q is already in use", threadID)
	}
	initial := domain.NewState(args.UserQuery, s.session.Map())
	return s.collect(threadID, s.engine.Start(ctx, threadID, initial))
}

func (s *Server) handleResume(ctx context.Context, _ mcp.CallToolRequest, args resumeArgs) (ThreadResponse, error) {
	if _, err := s.owned(ctx, args.ThreadID); err != nil {
		return ThreadResponse{}, err
	}
	var fb domain.Feedback
	if args.Decision != "" {
		d, err := domain.ParseDecision(args.Decision)
		if err != nil {
			return ThreadResponse{}, err
		}
		fb = domain.Feedback{Decision: d, Comment: strings.TrimSpace(args.Comment)}
	} else {
		if strings.TrimSpace(args.Comment) == "" {
			return ThreadResponse{}, errors.New("decision or comment is required")
		}
		fb = domain.ParseFeedback(args.Comment)
	}
	return s.collect(args.ThreadID, s.engine.Resume(ctx, args.ThreadID, fb, nil))
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args getArgs) (ThreadResponse, error) {
	cp, err := s.owned(ctx, args.ThreadID)
	if err != nil {
		return ThreadResponse{}, err
	}
	resp := ThreadResponse{
		ThreadID:  cp.ThreadID,
		RunStatus: cp.RunStatus,
		Proposal:  cp.State.Proposal(),
		Answer:    cp.State.Answer,
		Status:    cp.State.Status,
		Iteration: cp.State.Iteration,
		Error:     cp.Error,
	}
	if cp.Pending != nil {
		resp.Interrupt = true
		resp.Message = cp.Pending.Message
		resp.FeedbackOptions = cp.Pending.FeedbackOptions
	}
	return resp, nil
}

func (s *Server) owned(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	cp, err := s.engine.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp.State.Tenant() != s.session.TenantID {
		return nil, domain.ErrThreadNotFound
	}
	return cp, nil
}

// collect drains a run. A failed run is reported as a tool error.
func (s *Server) collect(threadID string, seq iter.Seq[runner.Step]) (ThreadResponse, error) {
	last, _ := runner.Collect(seq)
	resp := ThreadResponse{
		ThreadID:  threadID,
		Status:    last.State.Status,
		Iteration: last.State.Iteration,
	}
	switch last.Kind {
	case runner.Suspended:
		resp.RunStatus = domain.RunSuspended
		resp.Interrupt = true
		if last.Interrupt != nil {
			resp.Message = last.Interrupt.Message
			resp.Proposal = last.Interrupt.Proposal
			resp.FeedbackOptions = last.Interrupt.FeedbackOptions
		}
		return resp, nil
	case runner.Done:
		resp.RunStatus = domain.RunDone
		resp.Proposal = last.State.Proposal()
		resp.Answer = last.State.Answer
		return resp, nil
	}
	s.logger.Warn("MCP run failed", "thread_id", threadID, "err", last.Err)
	return ThreadResponse{}, last.Err
}
