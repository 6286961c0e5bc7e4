package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/pkg/ai"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	providerName     = "anthropic"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// GraphAnthropicClient implements ai.GraphAIClient with the Anthropic
// messages API.
type GraphAnthropicClient struct {
	ai.MetricsRecorder

	extractionModel string

	client anthropic.Client
}

type NewGraphAnthropicClientParams struct {
	ExtractionModel string

	BaseURL string
	ApiKey  string
}

func NewGraphAnthropicClient(params NewGraphAnthropicClientParams) *GraphAnthropicClient {
	model := params.ExtractionModel
	if model == "" {
		model = defaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(params.ApiKey),
		option.WithMaxRetries(0),
	}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	return &GraphAnthropicClient{
		extractionModel: model,
		client:          anthropic.NewClient(opts...),
	}
}

func (c *GraphAnthropicClient) Provider() string {
	return providerName
}

// GenerateCompletion sends a single user message and joins the text blocks
// of the reply.
func (c *GraphAnthropicClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (ai.Completion, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
		MaxTokens:   defaultMaxTokens,
	}, opts...)

	params := anthropic.MessageNewParams{
		Model:       options.Model,
		MaxTokens:   int64(options.MaxTokens),
		Temperature: anthropic.Float(options.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	for _, sp := range options.SystemPrompts {
		params.System = append(params.System, anthropic.TextBlockParam{Text: sp})
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return ai.Completion{}, mapError(err)
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	c.Record(in, out, time.Since(start).Milliseconds())

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return ai.Completion{}, ai.NewProviderError(providerName, ai.ErrResponse, 0,
			errors.New("response contained no text blocks (stop_reason: "+string(resp.StopReason)+")"))
	}

	return ai.Completion{Text: b.String(), InputTokens: in, OutputTokens: out}, nil
}

// LoadModel is a no-op, hosted models need no warm up.
func (c *GraphAnthropicClient) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error {
	return nil
}

func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ai.NewProviderError(providerName, ai.ClassifyStatus(apiErr.StatusCode), apiErr.StatusCode, err)
	}
	return ai.NewProviderError(providerName, ai.ErrTransient, 0, err)
}
