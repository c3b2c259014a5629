package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rfqflow/pkg/adapters/memory"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/retrieval"
	"github.com/aretw0/rfqflow/pkg/runner"
)

const draftReply = "# Drilling Services Proposal\n\nWe will drill three boreholes in Lot 1."

func newClient(t *testing.T, opts ...Option) (*client.Client, *runner.Runner) {
	t.Helper()
	ctx := context.Background()

	llm := memory.NewScriptedLLM("unexpected prompt",
		memory.Rule{Match: "intent classification agent", Reply: "rag"},
		memory.Rule{Match: "review user requests before a proposal is drafted", Reply: `{"needs_clarification": false, "message": "Drafting."}`},
		memory.Rule{Match: "proposal structuring agent", Reply: `{"type": "full_proposal"}`},
		memory.Rule{Match: "expert proposal writer", Reply: draftReply},
		memory.Rule{Match: "expert in reviewing proposals", Reply: draftReply},
	)
	repo := memory.NewRepository()
	_, err := repo.SaveProposal(ctx, "default", domain.Proposal{Title: "Past win", Content: "Borehole drilling.", IsWinning: true})
	require.NoError(t, err)

	g, err := proposal.NewGraph(proposal.Deps{LLM: llm, Retriever: retrieval.New(repo), Memory: memory.NewMemoryStore()})
	require.NoError(t, err)
	r := runner.New(g, memory.NewStore())

	srv := NewServer(r, "test", opts...)
	c, err := client.NewInProcessClient(srv.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Start(ctx))

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "rfqflow-test", Version: "0.0.0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c, r
}

func call(t *testing.T, c *client.Client, name string, args map[string]any) (*mcp.CallToolResult, ThreadResponse) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	var resp ThreadResponse
	if !res.IsError {
		text, ok := res.Content[0].(mcp.TextContent)
		require.True(t, ok, "expected text content")
		require.NoError(t, json.Unmarshal([]byte(text.Text), &resp))
	}
	return res, resp
}

func TestServer_ListTools(t *testing.T) {
	c, _ := newClient(t)
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"start_thread", "resume_thread", "get_thread"}, names)
}

func TestServer_ReviewLoop(t *testing.T) {
	c, r := newClient(t)

	res, resp := call(t, c, "start_thread", map[string]any{"user_query": "Write a proposal for the drilling RFQ", "thread_id": "m1"})
	require.False(t, res.IsError)
	assert.True(t, resp.Interrupt)
	assert.Equal(t, "m1", resp.ThreadID)
	assert.Equal(t, domain.RunSuspended, resp.RunStatus)
	assert.Equal(t, draftReply, resp.Proposal)
	assert.Equal(t, proposal.ReviewOptions, resp.FeedbackOptions)

	_, resp = call(t, c, "get_thread", map[string]any{"thread_id": "m1"})
	assert.True(t, resp.Interrupt)
	assert.Equal(t, proposal.ReviewMessage, resp.Message)

	_, resp = call(t, c, "resume_thread", map[string]any{"thread_id": "m1", "decision": "revise", "comment": "shorter please"})
	assert.True(t, resp.Interrupt)
	assert.Equal(t, 1, resp.Iteration)

	_, resp = call(t, c, "resume_thread", map[string]any{"thread_id": "m1", "comment": "ok, approve"})
	assert.False(t, resp.Interrupt)
	assert.Equal(t, domain.RunDone, resp.RunStatus)
	assert.Equal(t, domain.StatusApproved, resp.Status)

	cp, err := r.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"shorter please", "ok, approve"}, cp.State.HumanFeedback)
}

func TestServer_Errors(t *testing.T) {
	c, _ := newClient(t)

	res, _ := call(t, c, "resume_thread", map[string]any{"thread_id": "missing", "decision": "approve"})
	assert.True(t, res.IsError)

	_, resp := call(t, c, "start_thread", map[string]any{"user_query": "Write a proposal", "thread_id": "m2"})
	require.True(t, resp.Interrupt)

	res, _ = call(t, c, "resume_thread", map[string]any{"thread_id": "m2"})
	assert.True(t, res.IsError, "empty feedback is rejected")

	res, _ = call(t, c, "resume_thread", map[string]any{"thread_id": "m2", "decision": "maybe"})
	assert.True(t, res.IsError)

	res, _ = call(t, c, "start_thread", map[string]any{"user_query": "   "})
	assert.True(t, res.IsError)
}

func TestServer_TenantIsolation(t *testing.T) {
	c, r := newClient(t, WithSession(domain.Session{TenantID: "acme"}))
	last, _ := runner.Collect(r.Start(context.Background(), "other", domain.NewState("Write a proposal", domain.Session{TenantID: "globex"}.Map())))
	require.Equal(t, runner.Suspended, last.Kind)

	res, _ := call(t, c, "get_thread", map[string]any{"thread_id": "other"})
	assert.True(t, res.IsError, "threads of other tenants are hidden")

	res, _ = call(t, c, "start_thread", map[string]any{"user_query": "Write a proposal", "thread_id": "other"})
	assert.True(t, res.IsError, "ids owned by other tenants cannot be reused")
}

func TestServer_GraphResource(t *testing.T) {
	c, r := newClient(t)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = GraphURI
	res, err := c.ReadResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	text, ok := res.Contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, r.Graph().Mermaid(nil), text.Text)
	assert.Contains(t, text.Text, proposal.NodeHumanReview)
}
