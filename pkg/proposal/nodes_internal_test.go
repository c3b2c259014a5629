package proposal

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/pkg/adapters/memory"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLLM struct{ err error }

func (f failingLLM) Complete(context.Context, []domain.Message, ports.ModelConfig) (domain.Message, error) {
	return domain.Message{}, f.err
}

func (f failingLLM) Stream(context.Context, []domain.Message, ports.ModelConfig) (<-chan ports.Chunk, error) {
	return nil, f.err
}

func testNodes(llm ports.LLM) *nodes {
	return &nodes{deps: Deps{LLM: llm, Logger: logging.NewNop()}}
}

func TestIntentRouter_LLMFailureIsDirect(t *testing.T) {
	n := testNodes(failingLLM{err: errors.New("rate limited")})
	u, err := n.intentRouter(context.Background(), domain.NewState("write a proposal", nil), graph.Config{})
	require.NoError(t, err)
	assert.Equal(t, RouteDirect, *u.IntentRoute)
}

func TestIntentRouter_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := testNodes(failingLLM{err: context.Canceled})
	_, err := n.intentRouter(ctx, domain.NewState("write a proposal", nil), graph.Config{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDraft_StreamErrorFails(t *testing.T) {
	n := testNodes(failingLLM{err: errors.New("boom")})
	_, err := n.draft(context.Background(), domain.NewState("q", nil), graph.Config{})
	assert.EqualError(t, err, "draft: boom")
}

func TestCritic_MissingInputs(t *testing.T) {
	n := testNodes(memory.NewScriptedLLM("never"))

	u, err := n.critic(context.Background(), domain.NewState("q", nil), graph.Config{})
	require.NoError(t, err)
	require.NotNil(t, u.MissingInputs)
	assert.Equal(t, []string{"candidate", "examples"}, *u.MissingInputs)

	s := domain.NewState("q", nil)
	s.Candidate = domain.Ptr(domain.NewMessage(domain.RoleAssistant, "draft"))
	u, err = n.critic(context.Background(), s, graph.Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"examples"}, *u.MissingInputs)
	assert.Nil(t, u.Candidate)
}

func TestRetrieve_RequiresCandidate(t *testing.T) {
	n := testNodes(memory.NewScriptedLLM(""))
	u, err := n.retrieve(context.Background(), domain.NewState("q", nil), graph.Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"candidate"}, *u.MissingInputs)

	next, err := domain.NewState("q", nil).Apply(u)
	require.NoError(t, err)
	key, ok := ByInputs(true).Route(next)
	assert.True(t, ok)
	assert.Equal(t, RouteMissingInputs, key)
}

func TestRouters(t *testing.T) {
	s := domain.NewState("q", nil)

	key, _ := ByIntent().Route(s)
	assert.Equal(t, RouteDirect, key)
	s.IntentRoute = RouteRAG
	key, _ = ByIntent().Route(s)
	assert.Equal(t, RouteRAG, key)

	key, _ = ByClarity().Route(s)
	assert.Equal(t, RouteClear, key)
	s.NeedsClarification = true
	key, _ = ByClarity().Route(s)
	assert.Equal(t, RouteUnclear, key)

	key, _ = ByInputs(true).Route(s)
	assert.Equal(t, RouteNoExamples, key)
	key, _ = ByInputs(false).Route(s)
	assert.Equal(t, RouteOK, key)
	s.Examples = "<RetrievedProposals>\nx\n</RetrievedProposals>"
	key, _ = ByInputs(true).Route(s)
	assert.Equal(t, RouteOK, key)
}

func TestParseStructure(t *testing.T) {
	st, err := parseStructure("Here you go:\n```json\n{\"type\": \"full_proposal\", \"sections\": [\"ignored\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, DefaultStructure(), st)

	st, err = parseStructure(`{"type": "factual_query", "sections": ["Warranty"], "attachments": false}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Warranty"}, st.Sections)

	_, err = parseStructure(`{"type": "poem"}`)
	assert.Error(t, err)

	_, err = parseStructure("no json at all")
	assert.Error(t, err)
}

func TestReviewResume(t *testing.T) {
	n := testNodes(memory.NewScriptedLLM(""))
	s := domain.NewState("q", nil)

	u, err := n.reviewResume(context.Background(), s, domain.Feedback{Decision: domain.DecisionRevise, Comment: "shorter"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsRevision, *u.Status)
	assert.Equal(t, 1, u.IterationInc)
	assert.Equal(t, []string{"shorter"}, u.HumanFeedback)

	u, err = n.reviewResume(context.Background(), s, domain.Feedback{Decision: domain.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, *u.Status)
	assert.Zero(t, u.IterationInc)
}

func TestPersistMemory_SkipsNearDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStore()
	n := &nodes{deps: Deps{LLM: memory.NewScriptedLLM(""), Memory: store, Logger: logging.NewNop()}}
	ns := Namespace("acme")

	require.NoError(t, store.Upsert(ctx, ns, "old:proposal", map[string]any{"content": "Drilling proposal for Lot 1 with warranty."}))

	s := domain.NewState("q", nil)
	s.Candidate = domain.Ptr(domain.NewMessage(domain.RoleAssistant, "Drilling proposal for Lot 1 with warranty!"))
	_, err := n.persistMemory(ctx, s, graph.Config{ThreadID: "t2", Tenant: "acme"})
	require.NoError(t, err)

	items, err := store.Search(ctx, ns, "", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old:proposal", items[0].Key)
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, []string{"acme", MemoryNamespace}, Namespace("acme"))
	assert.Equal(t, []string{"default", MemoryNamespace}, Namespace(""))
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"prompts key", `{"prompts": ["A?", "B?"]}`, []string{"A?", "B?"}},
		{"questions key", `{"questions": ["A?"], "note": "x"}`, []string{"A?"}},
		{"single unknown key", `{"items": ["A?", " ", "B?"]}`, []string{"A?", "B?"}},
		{"bare array", "```json\n[\"A?\", \"B?\"]\n```", []string{"A?", "B?"}},
		{"capped", `["1", "2", "3", "4", "5"]`, []string{"1", "2", "3", "4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, reply := range []string{"no json here", `{"a": [], "b": []}`, `{"prompts": "not a list"}`, "[\"open"} {
		_, err := parseSuggestions(reply)
		assert.Error(t, err, reply)
	}
}

func TestIngest_ModelFailureKeepsDocument(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	svc := NewIngestService(failingLLM{err: errors.New("model down")}, repo, "", nil)

	res, err := svc.Ingest(ctx, "acme", domain.Document{Name: "rfq.pdf", Content: "Lot 1"})
	assert.ErrorContains(t, err, "model down")
	assert.Equal(t, "rfq.pdf", res.Document.FileName)

	docs, err := repo.Documents(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, docs, 1, "the text stays searchable")
	rfqs, err := repo.RecentRFQs(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Empty(t, rfqs)
}
