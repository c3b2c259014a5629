package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rfqflow/pkg/adapters/file"
	"github.com/aretw0/rfqflow/pkg/adapters/memory"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/retrieval"
	"github.com/aretw0/rfqflow/pkg/runner"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	draftReply = "# Drilling Services Proposal\n\nWe will drill three boreholes in Lot 1 with certified crews."
)

type testEnv struct {
	handler http.Handler
	runner  *runner.Runner
	repo    *memory.Repository
	root    string
}

func newEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	llm := memory.NewScriptedLLM("unexpected prompt",
		memory.Rule{Match: "intent classification agent", Reply: "rag"},
		memory.Rule{Match: "review user requests before a proposal is drafted", Reply: `{"needs_clarification": false, "message": "Drafting."}`},
		memory.Rule{Match: "proposal structuring agent", Reply: `{"type": "full_proposal"}`},
		memory.Rule{Match: "expert proposal writer", Reply: draftReply},
		memory.Rule{Match: "expert in reviewing proposals", Reply: draftReply},
		memory.Rule{Match: "professional assistant for a technical consultancy", Reply: "Hello."},
		memory.Rule{Match: "extract metadata from tender documents", Reply: `{"organization_name": "CTBTO", "title": "Borehole drilling", "submission_deadline": "2026-05-01"}`},
		memory.Rule{Match: "generate insightful prompt suggestions", Reply: `{"prompts": ["How many boreholes?", "Which permits?", "What warranty?", "Which deadline?"]}`},
	)
	repo := memory.NewRepository()
	for _, tenant := range []string{"default", "acme"} {
		_, err := repo.SaveDocument(ctx, tenant, domain.Document{Name: "rfq.pdf", Content: "Lot 1 requires drilling of boreholes."})
		require.NoError(t, err)
		_, err = repo.SaveProposal(ctx, tenant, domain.Proposal{Title: "Past win", Content: "Borehole drilling with crews.", IsWinning: true})
		require.NoError(t, err)
	}

	g, err := proposal.NewGraph(proposal.Deps{
		LLM:       llm,
		Retriever: retrieval.New(repo),
		Memory:    memory.NewMemoryStore(),
	})
	require.NoError(t, err)
	r := runner.New(g, memory.NewStore())

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", proposal.DefaultTemplate+".md"),
		[]byte("{TITLE}\n\n{BODY}\n"), 0o644))
	exporter := proposal.NewExportService(r, file.NewExporter(root), repo)

	ingester := proposal.NewIngestService(llm, repo, "", nil)
	all := append([]Option{WithRepository(repo), WithExporter(exporter), WithIngester(ingester), WithVersion("1.2.3")}, opts...)
	h, err := NewHandler(r, all...)
	require.NoError(t, err)
	return &testEnv{handler: h, runner: r, repo: repo, root: root}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decode[map[string]string](t, rr)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "1.2.3", resp["version"])

	rr = env.do(t, http.MethodGet, "/openapi.yaml", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/v1/threads/{id}/resume")
}

func TestLoadSpec(t *testing.T) {
	doc, err := LoadSpec()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)
}

func TestThreads_ReviseThenApprove(t *testing.T) {
	env := newEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "Write a proposal for the drilling RFQ", "thread_id": "t1"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[runResponse](t, rr)
	assert.True(t, resp.Interrupt)
	assert.Equal(t, "t1", resp.ThreadID)
	assert.Equal(t, domain.RunSuspended, resp.RunStatus)
	assert.Equal(t, proposal.ReviewMessage, resp.Message)
	assert.Equal(t, proposal.ReviewOptions, resp.FeedbackOptions)
	assert.Equal(t, draftReply, resp.Proposal)
	assert.Equal(t, domain.StatusInProgress, resp.State.Status)
	assert.Contains(t, rr.Body.String(), `"status":"IN_PROGRESS"`, "statuses are encoded as strings")

	rr = env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "again", "thread_id": "t1"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code, "a suspended thread must be resumed")

	rr = env.do(t, http.MethodPost, "/v1/threads/t1/resume", map[string]any{"decision": "revise", "comment": "add a warranty"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp = decode[runResponse](t, rr)
	assert.True(t, resp.Interrupt)
	assert.Equal(t, 1, resp.State.Iteration)
	assert.Equal(t, []string{"add a warranty"}, resp.State.HumanFeedback)

	rr = env.do(t, http.MethodPost, "/v1/threads/t1/resume", map[string]any{"feedback": "Looks good, I approve"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp = decode[runResponse](t, rr)
	assert.False(t, resp.Interrupt)
	assert.Equal(t, domain.RunDone, resp.RunStatus)
	assert.Equal(t, domain.StatusApproved, resp.State.Status)
	assert.Equal(t, draftReply, resp.Proposal)
	assert.Len(t, resp.State.HumanFeedback, 2)

	rr = env.do(t, http.MethodPost, "/v1/threads/t1/resume", map[string]any{"decision": "approve"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	cp, err := env.runner.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, cp.State.HumanFeedback, 2, "a rejected resume appends nothing")
}

func TestThreads_GeneratedID(t *testing.T) {
	env := newEnv(t)
	rr := env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "Write a proposal"}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[runResponse](t, rr)
	assert.Len(t, resp.ThreadID, 36)

	rr = env.do(t, http.MethodGet, "/v1/threads", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[map[string][]threadSummary](t, rr)
	require.Len(t, list["threads"], 1)
	assert.Equal(t, resp.ThreadID, list["threads"][0].ThreadID)
	assert.Equal(t, domain.RunSuspended, list["threads"][0].RunStatus)

	rr = env.do(t, http.MethodGet, "/v1/threads/"+resp.ThreadID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	cp := decode[domain.Checkpoint](t, rr)
	require.NotNil(t, cp.Pending)
	assert.Equal(t, proposal.NodeHumanReview, cp.Pending.Node)

	rr = env.do(t, http.MethodDelete, "/v1/threads/"+resp.ThreadID, nil, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodGet, "/v1/threads/"+resp.ThreadID, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestThreads_ResumeErrors(t *testing.T) {
	env := newEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/threads/nope/resume", map[string]any{"decision": "approve"}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "Write a proposal", "thread_id": "t1"}, "")

	rr = env.do(t, http.MethodPost, "/v1/threads/t1/resume", map[string]any{"feedback": "   "}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	cp, err := env.runner.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuspended, cp.RunStatus, "an empty reply leaves the thread waiting")

	rr = env.do(t, http.MethodPost, "/v1/threads/t1/retry", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code, "only failed threads can be retried")

	rr = env.do(t, http.MethodGet, "/v1/threads/t1/history", nil, "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestValidation(t *testing.T) {
	env := newEnv(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"missing query", http.MethodPost, "/v1/threads", map[string]any{}},
		{"wrong query type", http.MethodPost, "/v1/threads", map[string]any{"user_query": 42}},
		{"bad thread id", http.MethodPost, "/v1/threads", map[string]any{"user_query": "x", "thread_id": "a/b"}},
		{"unknown decision", http.MethodPost, "/v1/threads/t1/resume", map[string]any{"decision": "maybe"}},
		{"bad limit", http.MethodGet, "/v1/rfqs/recent?limit=abc", nil},
		{"empty document", http.MethodPost, "/v1/documents", map[string]any{"name": "a.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rr).Error)
		})
	}
}

func TestAuth(t *testing.T) {
	auth := NewAuthenticator([]byte(testSecret), "rfqflow")
	env := newEnv(t, WithAuthenticator(auth))

	acme, err := auth.Issue(domain.Session{TenantID: "acme", UserID: "u1", Email: "a@acme.test"}, time.Hour)
	require.NoError(t, err)
	globex, err := auth.Issue(domain.Session{TenantID: "globex", UserID: "u2"}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/threads", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/threads", nil, "garbage").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil, "").Code, "health is public")

	rr := env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "Write a proposal", "thread_id": "t1"}, acme)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[runResponse](t, rr)
	assert.Equal(t, "acme", resp.State.Tenant())
	assert.Equal(t, "a@acme.test", resp.State.SessionData[domain.SessionEmail])

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/threads/t1", nil, acme).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/threads/t1", nil, globex).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/v1/threads/t1/resume", map[string]any{"decision": "approve"}, globex).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "x", "thread_id": "t1"}, globex).Code)

	list := decode[map[string][]threadSummary](t, env.do(t, http.MethodGet, "/v1/threads", nil, globex))
	assert.Empty(t, list["threads"])
}

func TestAuthenticator(t *testing.T) {
	auth := NewAuthenticator([]byte(testSecret), "")
	token, err := auth.Issue(domain.Session{TenantID: "acme", UserID: "7"}, time.Minute)
	require.NoError(t, err)

	sess, err := auth.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Session{TenantID: "acme", UserID: "7"}, sess)

	_, err = NewAuthenticator([]byte("another secret of enough length!"), "").Parse(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired := NewAuthenticator([]byte(testSecret), "")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(domain.Session{TenantID: "acme"}, time.Minute)
	require.NoError(t, err)
	_, err = auth.Parse(old)
	assert.ErrorIs(t, err, ErrUnauthorized)

	noTenant, err := auth.Issue(domain.Session{UserID: "7"}, time.Minute)
	require.NoError(t, err)
	_, err = auth.Parse(noTenant)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewAuthenticator([]byte(testSecret), "rfqflow").Parse(token)
	assert.ErrorIs(t, err, ErrUnauthorized, "issuer must match")
}

func TestRateLimit(t *testing.T) {
	limiter := NewTenantLimiter(0.001, 1)
	env := newEnv(t, WithRateLimiter(limiter))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/threads", nil, "").Code)
	rr := env.do(t, http.MethodGet, "/v1/threads", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	assert.True(t, limiter.Allow("other"), "tenants have separate buckets")
}

func TestTenantEndpoints(t *testing.T) {
	env := newEnv(t)
	_, err := env.repo.SaveRFQ(context.Background(), "default", domain.RFQ{Title: "Lot 1"})
	require.NoError(t, err)

	rfqs := decode[map[string][]domain.RFQ](t, env.do(t, http.MethodGet, "/v1/rfqs/recent?limit=5", nil, ""))
	require.Len(t, rfqs["rfqs"], 1)
	assert.Equal(t, "Lot 1", rfqs["rfqs"][0].Title)

	won := decode[map[string][]domain.Proposal](t, env.do(t, http.MethodGet, "/v1/proposals/winning", nil, ""))
	assert.Len(t, won["proposals"], 1)

	activity := decode[map[string][]domain.Activity](t, env.do(t, http.MethodGet, "/v1/activity", nil, ""))
	assert.Len(t, activity["activity"], 2)

	rr := env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "x", "rfq_id": 999}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "the RFQ must belong to the tenant")
}

func TestDocumentUpload(t *testing.T) {
	env := newEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/documents", map[string]any{"name": "rfq-014.pdf", "content": "Lot 1 requires drilling."}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	up := decode[uploadResponse](t, rr)
	assert.Equal(t, "rfq-014.pdf", up.Document.FileName)
	require.NotNil(t, up.RFQ)
	assert.Equal(t, "Borehole drilling", up.RFQ.Title)
	assert.Equal(t, "CTBTO", up.RFQ.OrganizationName)
	require.NotNil(t, up.RFQ.SubmissionDeadline)

	rfqs := decode[map[string][]domain.RFQ](t, env.do(t, http.MethodGet, "/v1/rfqs/recent", nil, ""))
	require.Len(t, rfqs["rfqs"], 1)
	assert.Equal(t, up.RFQ.ID, rfqs["rfqs"][0].ID)

	prompts := decode[map[string][]string](t, env.do(t, http.MethodGet, "/v1/prompt-suggestions", nil, ""))
	assert.Len(t, prompts["prompts"], 4)
	prompts = decode[map[string][]string](t, env.do(t, http.MethodGet, fmt.Sprintf("/v1/prompt-suggestions?rfq_id=%d", up.RFQ.ID), nil, ""))
	assert.Equal(t, "How many boreholes?", prompts["prompts"][0])
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/prompt-suggestions?rfq_id=999", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/prompt-suggestions?rfq_id=abc", nil, "").Code)

	rr = env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "Write a proposal", "rfq_id": up.RFQ.ID}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	run := decode[runResponse](t, rr)
	assert.EqualValues(t, up.RFQ.ID, run.State.SessionData[SessionRFQID])

	activity := decode[map[string][]domain.Activity](t, env.do(t, http.MethodGet, "/v1/activity", nil, ""))
	assert.Equal(t, "rfq", activity["activity"][0].Kind)

	rr = env.do(t, http.MethodPost, "/v1/documents", map[string]any{"name": "rfq-014.pdf", "content": "Lot 1 and Lot 2."}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, up.RFQ.ID, decode[uploadResponse](t, rr).RFQ.ID, "uploading a document again refreshes its RFQ")
}

func TestExport(t *testing.T) {
	env := newEnv(t)
	rfq, err := env.repo.SaveRFQ(context.Background(), "default", domain.RFQ{Title: "Lot 1"})
	require.NoError(t, err)

	env.do(t, http.MethodPost, "/v1/threads", map[string]any{"user_query": "Write a proposal", "thread_id": "t1", "rfq_id": rfq.ID}, "")

	rr := env.do(t, http.MethodPost, "/v1/threads/t1/export", map[string]any{}, "")
	assert.Equal(t, http.StatusConflict, rr.Code, "only approved threads are exported")

	env.do(t, http.MethodPost, "/v1/threads/t1/resume", map[string]any{"decision": "approve"}, "")

	rr = env.do(t, http.MethodPost, "/v1/threads/t1/export", map[string]any{"is_winning": true}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[proposal.ExportResult](t, rr)
	assert.True(t, strings.HasSuffix(res.DocumentID, "/Drilling Services Proposal.md"), res.DocumentID)
	require.NotNil(t, res.Proposal.RFQID, "the RFQ given at start is linked")
	assert.Equal(t, rfq.ID, *res.Proposal.RFQID)

	won := decode[map[string][]domain.Proposal](t, env.do(t, http.MethodGet, "/v1/proposals/winning", nil, ""))
	assert.Len(t, won["proposals"], 2)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "rfqflow_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	env := newEnv(t, WithMetrics(reg))
	rr := env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "rfqflow_test_total 1")
}

func TestCORS(t *testing.T) {
	env := newEnv(t, WithAllowedOrigins("https://app.example"))

	req := httptest.NewRequest(http.MethodOptions, "/v1/threads", nil)
	req.Header.Set("Origin", "https://app.example")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/threads", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestEvents(t *testing.T) {
	env := newEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/threads/t1/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "" && name != "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	name, data := readEvent()
	require.Equal(t, "ping", name)
	require.Equal(t, "connected", data)

	body, _ := json.Marshal(map[string]any{"user_query": "Write a proposal", "thread_id": "t1"})
	post, err := srv.Client().Post(srv.URL+"/v1/threads", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	var nodes []string
	var text strings.Builder
	for {
		name, data := readEvent()
		switch name {
		case "step":
			var p stepPayload
			require.NoError(t, json.Unmarshal([]byte(data), &p))
			nodes = append(nodes, p.Node)
		case "token":
			var p tokenPayload
			require.NoError(t, json.Unmarshal([]byte(data), &p))
			assert.Equal(t, proposal.NodeDraft, p.Node)
			text.WriteString(p.Text)
		}
		if name == "interrupt" {
			assert.Contains(t, data, proposal.ReviewMessage)
			break
		}
	}
	assert.Equal(t, []string{
		proposal.NodeIntentRouter,
		proposal.NodeQueryUnderstanding,
		proposal.NodeStructure,
		proposal.NodeGround,
		proposal.NodeDraft,
		proposal.NodeRetrieve,
		proposal.NodeCritic,
	}, nodes)
	assert.Equal(t, draftReply, text.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrThreadNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", domain.ErrRecordNotFound), http.StatusNotFound},
		{domain.ErrThreadSuspended, http.StatusConflict},
		{domain.ErrNotSuspended, http.StatusConflict},
		{domain.ErrThreadOwned, http.StatusConflict},
		{runner.ErrNotFailed, http.StatusConflict},
		{&runner.NodeError{Node: "n", Err: domain.ErrRecursionLimit}, http.StatusUnprocessableEntity},
		{&runner.NodeError{Node: proposal.NodeHumanReview, Err: domain.ErrRevisionLimit}, http.StatusUnprocessableEntity},
		{&runner.NodeError{Node: "draft", Err: domain.ErrNodeTimeout}, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
