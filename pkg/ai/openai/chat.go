package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aletheia-codex/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated text with its token usage.
func (c *GraphOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (ai.Completion, error) {
	if c.ChatClient == nil {
		return ai.Completion{}, ai.NewProviderError(providerName, ai.ErrAuth, 0, errors.New("no api key configured"))
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}, opts...)

	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return ai.Completion{}, mapError(err)
	}
	c.Record(int(response.Usage.PromptTokens), int(response.Usage.CompletionTokens), time.Since(start).Milliseconds())

	if len(response.Choices) == 0 {
		return ai.Completion{}, ai.NewProviderError(providerName, ai.ErrResponse, 0, errors.New("no choices in response"))
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return ai.Completion{}, ai.NewProviderError(providerName, ai.ErrResponse, 0,
			fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason))
	}

	return ai.Completion{
		Text:         message,
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
	}, nil
}

// LoadModel is a no-op for OpenAI as models are loaded on-demand.
func (c *GraphOpenAIClient) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error {
	return nil
}

func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ai.NewProviderError(providerName, ai.ClassifyStatus(apiErr.StatusCode), apiErr.StatusCode, err)
	}
	return ai.NewProviderError(providerName, ai.ErrTransient, 0, err)
}
