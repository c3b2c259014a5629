package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// ErrEmptyFeedback is returned when a thread is resumed without any reviewer input.
var ErrEmptyFeedback = errors.New("feedback is empty")

// MemoryNamespace is the second element of every long-term memory namespace.
const MemoryNamespace = "memories"

const (
	defaultGroundingK = 3
	defaultExamplesK  = 2
	defaultMemoryK    = 3
)

type nodes struct {
	deps Deps
}

func (n *nodes) model(jsonReply bool) ports.ModelConfig {
	return ports.ModelConfig{Model: n.deps.Model, Temperature: domain.Ptr(0.0), JSON: jsonReply}
}

func (n *nodes) complete(ctx context.Context, system, user string, jsonReply bool) (string, error) {
	reply, err := n.deps.LLM.Complete(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user},
	}, n.model(jsonReply))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Content), nil
}

// Namespace returns the long-term memory namespace of a tenant.
func Namespace(tenant string) []string {
	if tenant == "" {
		tenant = "default"
	}
	return []string{tenant, MemoryNamespace}
}

func (n *nodes) intentRouter(ctx context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	query := strings.TrimSpace(s.UserQuery)
	if query == "" {
		return domain.Update{IntentRoute: domain.Ptr(RouteDirect)}, nil
	}

	route := RouteDirect
	reply, err := n.complete(ctx, intentPrompt, query, false)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return domain.Update{}, err
		}
		n.deps.Logger.Warn("intent classification failed", "err", err)
	default:
		if word := strings.Trim(strings.ToLower(reply), " `*.\"'\n"); word == RouteRAG {
			route = RouteRAG
		}
	}
	n.deps.Logger.Debug("intent classified", "route", route)
	return domain.Update{IntentRoute: &route}, nil
}

type understanding struct {
	NeedsClarification bool   `json:"needs_clarification"`
	Message            string `json:"message"`
}

func (n *nodes) queryUnderstanding(ctx context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	reply, err := n.complete(ctx, understandingPrompt, s.UserQuery, true)
	if err != nil {
		return domain.Update{}, fmt.Errorf("query understanding: %w", err)
	}
	var u understanding
	if err := decodeJSON(reply, &u); err != nil {
		n.deps.Logger.Warn("unparsable understanding reply, treating the query as clear", "err", err)
		u = understanding{Message: reply}
	}
	upd := domain.Update{NeedsClarification: &u.NeedsClarification}
	if u.Message != "" {
		upd.Messages = []domain.Message{domain.NewMessage(domain.RoleAssistant, u.Message)}
	}
	return upd, nil
}

func (n *nodes) clarify(_ context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	question := clarifyFallback
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == domain.RoleAssistant {
			question = s.Messages[i].Content
			break
		}
	}
	return domain.Suspend(question, ""), nil
}

func (n *nodes) clarifyResume(_ context.Context, _ domain.State, fb domain.Feedback) (domain.Update, error) {
	reply := strings.TrimSpace(fb.Entry())
	if reply == "" {
		return domain.Update{}, ErrEmptyFeedback
	}
	return domain.Update{
		ClarifiedQuery:     &reply,
		NeedsClarification: domain.Ptr(false),
		Messages:           []domain.Message{domain.NewMessage(domain.RoleUser, reply)},
	}, nil
}

func (n *nodes) directAnswer(ctx context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	query := s.EffectiveQuery()
	if strings.TrimSpace(query) == "" {
		query = "Hello"
	}
	answer, err := n.complete(ctx, directPrompt, query, false)
	if err != nil {
		return domain.Update{}, fmt.Errorf("direct answer: %w", err)
	}
	return domain.Update{
		Answer:   &answer,
		Messages: []domain.Message{domain.NewMessage(domain.RoleAssistant, answer)},
	}, nil
}

func (n *nodes) structure(ctx context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	reply, err := n.complete(ctx, structurePrompt, s.EffectiveQuery(), true)
	if err != nil {
		return domain.Update{}, fmt.Errorf("structure: %w", err)
	}
	st, err := parseStructure(reply)
	if err != nil {
		return domain.Update{}, fmt.Errorf("structure: %w", err)
	}
	return domain.Update{Structure: &st, ResponseType: &st.Type}, nil
}

func (n *nodes) ground(ctx context.Context, s domain.State, cfg graph.Config) (domain.Update, error) {
	text, err := n.deps.Retriever.Query(ctx, ports.RetrievalRequest{
		Tenant: cfg.Tenant,
		Prompt: s.EffectiveQuery(),
		Mode:   ports.ModeDocuments,
		K:      cfg.Int(ParamGroundingK, defaultGroundingK),
	})
	if err != nil {
		return domain.Update{}, fmt.Errorf("ground: %w", err)
	}
	return domain.Update{Grounding: &text}, nil
}

func (n *nodes) recall(ctx context.Context, s domain.State, cfg graph.Config) []domain.MemoryItem {
	if n.deps.Memory == nil {
		return nil
	}
	items, err := n.deps.Memory.Search(ctx, Namespace(cfg.Tenant), s.EffectiveQuery(), cfg.Int(ParamMemoryK, defaultMemoryK))
	if err != nil {
		n.deps.Logger.Warn("memory recall failed", "err", err)
		return nil
	}
	return items
}

func (n *nodes) draft(ctx context.Context, s domain.State, cfg graph.Config) (domain.Update, error) {
	prompt := draftUserPrompt(s, n.recall(ctx, s, cfg))
	chunks, err := n.deps.LLM.Stream(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: draftPrompt},
		{Role: domain.RoleUser, Content: prompt},
	}, n.model(false))
	if err != nil {
		return domain.Update{}, fmt.Errorf("draft: %w", err)
	}

	var sb strings.Builder
	for c := range chunks {
		if c.Err != nil {
			return domain.Update{}, fmt.Errorf("draft: %w", c.Err)
		}
		sb.WriteString(c.Text)
		graph.Publish(ctx, c.Text)
	}
	if err := ctx.Err(); err != nil {
		return domain.Update{}, err
	}

	msg := domain.NewMessage(domain.RoleAssistant, strings.TrimSpace(sb.String()))
	msg.Name = NodeDraft
	return domain.Update{
		Candidate:     &msg,
		Messages:      []domain.Message{msg},
		Status:        domain.Ptr(domain.StatusInProgress),
		MissingInputs: &[]string{},
	}, nil
}

func (n *nodes) retrieve(ctx context.Context, s domain.State, cfg graph.Config) (domain.Update, error) {
	if s.Proposal() == "" {
		return domain.Missing("candidate"), nil
	}
	text, err := n.deps.Retriever.Query(ctx, ports.RetrievalRequest{
		Tenant: cfg.Tenant,
		Prompt: s.Proposal(),
		Mode:   ports.ModeExamples,
		K:      cfg.Int(ParamExamplesK, defaultExamplesK),
	})
	if err != nil {
		return domain.Update{}, fmt.Errorf("retrieve: %w", err)
	}
	examples := ""
	if text != "" {
		examples = "<RetrievedProposals>\n" + text + "\n</RetrievedProposals>"
	}
	return domain.Update{Examples: &examples, MissingInputs: &[]string{}}, nil
}

func (n *nodes) critic(ctx context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	var missing []string
	if s.Proposal() == "" {
		missing = append(missing, "candidate")
	}
	if s.Examples == "" {
		missing = append(missing, "examples")
	}
	if len(missing) > 0 {
		return domain.Missing(missing...), nil
	}

	revised, err := n.complete(ctx, critiquePrompt, critiqueUserPrompt(s.Proposal(), s.Examples), false)
	if err != nil {
		return domain.Update{}, fmt.Errorf("critic: %w", err)
	}
	if revised == "" {
		revised = s.Proposal()
	}
	msg := domain.NewMessage(domain.RoleAssistant, revised)
	msg.Name = NodeCritic
	return domain.Update{Candidate: &msg, Messages: []domain.Message{msg}}, nil
}

func (n *nodes) humanReview(_ context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	return domain.Suspend(ReviewMessage, s.Proposal(), ReviewOptions...), nil
}

func (n *nodes) reviewResume(_ context.Context, s domain.State, fb domain.Feedback) (domain.Update, error) {
	entry := strings.TrimSpace(fb.Entry())
	if entry == "" {
		return domain.Update{}, ErrEmptyFeedback
	}
	if fb.Decision == domain.DecisionRevise && n.deps.MaxRevisions > 0 && s.Iteration >= n.deps.MaxRevisions {
		return domain.Update{}, fmt.Errorf("%w: %d revisions", domain.ErrRevisionLimit, n.deps.MaxRevisions)
	}
	u := domain.Update{
		HumanFeedback: []string{entry},
		Messages:      []domain.Message{domain.NewMessage(domain.RoleUser, entry)},
		Status:        domain.Ptr(fb.Status()),
	}
	if fb.Decision == domain.DecisionRevise {
		u.IterationInc = 1
	}
	return u, nil
}

func (n *nodes) persistMemory(ctx context.Context, s domain.State, cfg graph.Config) (domain.Update, error) {
	if n.deps.Memory == nil {
		return domain.Update{}, nil
	}
	ns := Namespace(cfg.Tenant)

	kind, content := "proposal", s.Proposal()
	if s.Answer != "" {
		kind, content = "answer", s.Answer
	}
	if err := n.remember(ctx, ns, cfg.ThreadID+":"+kind, map[string]any{
		"kind":    kind,
		"query":   s.EffectiveQuery(),
		"content": content,
	}); err != nil {
		return domain.Update{}, err
	}

	if fb := s.LastFeedback(); fb != "" {
		if err := n.remember(ctx, ns, cfg.ThreadID+":feedback", map[string]any{
			"kind":    "feedback",
			"content": fb,
		}); err != nil {
			return domain.Update{}, err
		}
	}
	return domain.Update{}, nil
}

// remember stores value unless a near-identical memory already exists under another key.
func (n *nodes) remember(ctx context.Context, ns []string, key string, value map[string]any) error {
	content, _ := value["content"].(string)
	if strings.TrimSpace(content) == "" {
		return nil
	}
	existing, err := n.deps.Memory.Search(ctx, ns, content, 5)
	if err != nil {
		return fmt.Errorf("persist memory: %w", err)
	}
	for _, item := range existing {
		if prev, ok := item.Value["content"].(string); ok && item.Key != key && IsDuplicate(prev, content) {
			n.deps.Logger.Debug("memory already known", "key", item.Key)
			return nil
		}
	}
	if err := n.deps.Memory.Upsert(ctx, ns, key, value); err != nil {
		return fmt.Errorf("persist memory: %w", err)
	}
	return nil
}
