package proposal

import (
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// GraphName identifies the workflow in logs and checkpoints.
const GraphName = "proposal"

// Node ids.
const (
	NodeIntentRouter       = "intent_router"
	NodeQueryUnderstanding = "query_understanding"
	NodeClarify            = "clarify"
	NodeDirectAnswer       = "direct_answer"
	NodeStructure          = "structure"
	NodeGround             = "ground"
	NodeDraft              = "draft"
	NodeRetrieve           = "retrieve"
	NodeCritic             = "critic"
	NodeHumanReview        = "human_review"
	NodePersistMemory      = "persist_memory"
)

// Parameters read from graph.Config.
const (
	ParamExamplesK  = "k"
	ParamGroundingK = "grounding_k"
	ParamMemoryK    = "memory_k"
)

// Deps are the collaborators of the workflow. LLM and Retriever are required.
type Deps struct {
	LLM       ports.LLM
	Retriever ports.Retriever
	// Memory is optional. Without it drafts are not personalised and nothing is remembered.
	Memory ports.MemoryStore

	// Model names the model used by every node. Empty selects the adapter default.
	Model string
	// MaxRevisions caps revision requests per thread. Zero means unlimited.
	MaxRevisions int
	// LLMTimeout bounds each model-calling node. Zero leaves it to the runner.
	LLMTimeout time.Duration

	Logger *slog.Logger
}

// NewGraph compiles the proposal workflow.
func NewGraph(deps Deps) (*graph.Graph, error) {
	if deps.LLM == nil {
		return nil, errors.New("proposal: an LLM is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("proposal: a retriever is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	n := &nodes{deps: deps}

	var llmOpts []graph.NodeOption
	if deps.LLMTimeout > 0 {
		llmOpts = append(llmOpts, graph.WithTimeout(deps.LLMTimeout))
	}
	with := func(desc string, extra ...graph.NodeOption) []graph.NodeOption {
		opts := append([]graph.NodeOption{graph.WithDescription(desc)}, llmOpts...)
		return append(opts, extra...)
	}

	return graph.NewBuilder(GraphName).
		AddNode(NodeIntentRouter, n.intentRouter, with("classify the query as rag or direct")...).
		AddNode(NodeQueryUnderstanding, n.queryUnderstanding, with("decide whether the query needs clarification")...).
		AddNode(NodeClarify, n.clarify, graph.WithDescription("ask the user to restate the query"), graph.WithResume(n.clarifyResume)).
		AddNode(NodeDirectAnswer, n.directAnswer, with("answer without retrieval")...).
		AddNode(NodeStructure, n.structure, with("outline the proposal")...).
		AddNode(NodeGround, n.ground, graph.WithDescription("retrieve tenant documents")).
		AddNode(NodeDraft, n.draft, with("write the proposal")...).
		AddNode(NodeRetrieve, n.retrieve, graph.WithDescription("retrieve reference proposals")).
		AddNode(NodeCritic, n.critic, with("improve the draft against the references")...).
		AddNode(NodeHumanReview, n.humanReview, graph.WithDescription("wait for the reviewer"), graph.WithResume(n.reviewResume)).
		AddNode(NodePersistMemory, n.persistMemory, graph.WithDescription("remember the outcome")).
		SetEntryPoint(NodeIntentRouter).
		AddConditionalEdges(NodeIntentRouter, ByIntent(), map[string]string{
			RouteRAG:    NodeQueryUnderstanding,
			RouteDirect: NodeDirectAnswer,
		}).
		AddConditionalEdges(NodeQueryUnderstanding, ByClarity(), map[string]string{
			RouteClear:   NodeStructure,
			RouteUnclear: NodeClarify,
		}).
		AddEdge(NodeClarify, NodeStructure).
		AddEdge(NodeDirectAnswer, NodePersistMemory).
		AddEdge(NodeStructure, NodeGround).
		AddEdge(NodeGround, NodeDraft).
		AddEdge(NodeDraft, NodeRetrieve).
		AddConditionalEdges(NodeRetrieve, ByInputs(true), map[string]string{
			RouteOK:            NodeCritic,
			RouteMissingInputs: NodeDraft,
			RouteNoExamples:    NodeHumanReview,
		}).
		AddConditionalEdges(NodeCritic, ByInputs(false), map[string]string{
			RouteOK:            NodeHumanReview,
			RouteMissingInputs: NodeDraft,
		}).
		AddConditionalEdges(NodeHumanReview, graph.ByStatus(), map[string]string{
			string(domain.StatusApproved):      NodePersistMemory,
			string(domain.StatusNeedsRevision): NodeDraft,
			string(domain.StatusInProgress):    NodeHumanReview,
		}).
		AddEdge(NodePersistMemory, graph.End).
		Compile()
}
