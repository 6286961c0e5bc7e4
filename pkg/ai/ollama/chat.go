package ollama

import (
	"context"
	"errors"
	"strings"

	"github.com/aletheia-codex/backend/pkg/ai"

	"github.com/ollama/ollama/api"
)

// minContext is Ollama's default num_ctx. Larger prompts raise it so the
// document is not silently truncated.
const minContext = 4096

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (ai.Completion, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}, opts...)

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}

	tokens := 200 + ai.CountTokens(prompt)
	for _, sp := range options.SystemPrompts {
		tokens += ai.CountTokens(sp)
	}
	if tokens > minContext {
		req.Options["num_ctx"] = tokens
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return ai.Completion{}, err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return ai.Completion{}, mapError(err)
	}

	c.Record(final.Metrics.PromptEvalCount, final.Metrics.EvalCount, final.Metrics.TotalDuration.Milliseconds())

	content := strings.TrimSpace(final.Message.Content)
	if content == "" {
		return ai.Completion{}, ai.NewProviderError(providerName, ai.ErrResponse, 0, errors.New("empty response from model"))
	}

	return ai.Completion{
		Text:         content,
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
	}, nil
}

// LoadModel preloads a model into memory to reduce latency on subsequent requests.
func (c *GraphOllamaClient) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model: c.extractionModel,
	}, opts...)

	req := &api.ChatRequest{
		Model: options.Model,
	}

	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		return nil
	}); err != nil {
		return mapError(err)
	}

	return nil
}

func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return ai.NewProviderError(providerName, ai.ClassifyStatus(statusErr.StatusCode), statusErr.StatusCode, err)
	}
	return ai.NewProviderError(providerName, ai.ErrTransient, 0, err)
}
