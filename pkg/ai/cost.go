package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Pricing is the provider price in USD per one million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing matches the flash tier the extraction prompts were tuned on.
var DefaultPricing = Pricing{InputPerMillion: 0.075, OutputPerMillion: 0.30}

// Expected output sizes used when a provider does not report usage.
const (
	EstimatedEntityOutputTokens       = 500
	EstimatedRelationshipOutputTokens = 150
	EstimatedDefaultOutputTokens      = 200
)

// CostEstimate is the token usage and price of one or more calls.
type CostEstimate struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	USD          float64 `json:"usd"`
}

func (c CostEstimate) Add(o CostEstimate) CostEstimate {
	return CostEstimate{
		InputTokens:  c.InputTokens + o.InputTokens,
		OutputTokens: c.OutputTokens + o.OutputTokens,
		USD:          c.USD + o.USD,
	}
}

// Estimate prices the given token counts.
func (p Pricing) Estimate(inputTokens, outputTokens int) CostEstimate {
	return CostEstimate{
		InputTokens:  int64(inputTokens),
		OutputTokens: int64(outputTokens),
		USD: float64(inputTokens)/1_000_000*p.InputPerMillion +
			float64(outputTokens)/1_000_000*p.OutputPerMillion,
	}
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens counts tokens with the o200k_base encoding. When the encoding
// cannot be loaded it falls back to four characters per token.
func CountTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("o200k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
