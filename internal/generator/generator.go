// Package generator implements the Generation capability from spec
// §4.3 step 6: generate(system_prompt, user_prompt, temperature,
// max_tokens) -> (text, token_usage), against a pluggable LLM provider.
// Grounded on the call shapes in the teacher's openai_client.go and
// anthropic/client.go, narrowed to the single non-streaming,
// non-tool-calling completion call the answer-generation step needs.
package generator

import "context"

// Usage reports the token accounting the Gateway surfaces for
// observability (spec §6's response payloads include token usage).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Generator produces a completion from a system/user prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (text string, usage Usage, err error)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string // "openai" or "anthropic"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// New constructs the Generator for cfg.Provider, adapting the factory
// dispatch pattern the teacher's provider selection uses.
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicGenerator(cfg), nil
	default:
		return newOpenAIGenerator(cfg), nil
	}
}
