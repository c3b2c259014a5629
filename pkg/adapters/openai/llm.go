// Package openai implements ports.LLM on the OpenAI chat completions API.
// Any OpenAI compatible endpoint works through Config.BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// DefaultModel is used when neither the call nor the config names a model.
const DefaultModel = "gpt-4o"

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries bounds the SDK's retries of failed requests.
	MaxRetries int
	HTTPClient *http.Client
}

// LLM implements ports.LLM.
type LLM struct {
	client openai.Client
	model  string
}

// New creates a client. An empty APIKey falls back to the OPENAI_API_KEY variable read by the SDK.
func New(cfg Config) *LLM {
	opts := []openaiopt.RequestOption{openaiopt.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, openaiopt.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, openaiopt.WithHTTPClient(cfg.HTTPClient))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &LLM{client: openai.NewClient(opts...), model: model}
}

func (l *LLM) params(messages []domain.Message, cfg ports.ModelConfig) openai.ChatCompletionNewParams {
	model := cfg.Model
	if model == "" {
		model = l.model
	}
	p := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: convertMessages(messages),
	}
	if cfg.Temperature != nil {
		p.Temperature = openai.Float(*cfg.Temperature)
	}
	if cfg.MaxTokens > 0 {
		p.MaxCompletionTokens = openai.Int(int64(cfg.MaxTokens))
	}
	if cfg.JSON {
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return p
}

func convertMessages(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Complete implements ports.LLM.
func (l *LLM) Complete(ctx context.Context, messages []domain.Message, cfg ports.ModelConfig) (domain.Message, error) {
	resp, err := l.client.Chat.Completions.New(ctx, l.params(messages, cfg))
	if err != nil {
		return domain.Message{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Message{}, errors.New("openai: response has no choices")
	}
	return domain.NewMessage(domain.RoleAssistant, resp.Choices[0].Message.Content), nil
}

// Stream implements ports.LLM. The stream ends early, with the context error, when ctx is done.
func (l *LLM) Stream(ctx context.Context, messages []domain.Message, cfg ports.ModelConfig) (<-chan ports.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream := l.client.Chat.Completions.NewStreaming(ctx, l.params(messages, cfg))

	ch := make(chan ports.Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(c ports.Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ports.Chunk{Text: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(ports.Chunk{Err: fmt.Errorf("openai: %w", err)})
		}
	}()
	return ch, nil
}
