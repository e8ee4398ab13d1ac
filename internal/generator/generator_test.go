package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultsToOpenAIProvider(t *testing.T) {
	g, err := New(Config{Provider: "", Model: "gpt-4o"})
	require := assert.New(t)
	require.NoError(err)
	_, ok := g.(*openAIGenerator)
	require.True(ok)
}

func TestNew_AnthropicProviderSelectsAnthropicGenerator(t *testing.T) {
	g, err := New(Config{Provider: "anthropic", Model: "claude-3-5-sonnet"})
	assert.NoError(t, err)
	_, ok := g.(*anthropicGenerator)
	assert.True(t, ok)
}

func TestIsThinkingModel_ReasoningModelFamilyMatches(t *testing.T) {
	assert.True(t, isThinkingModel("o1-preview"))
	assert.True(t, isThinkingModel("o3-mini"))
	assert.True(t, isThinkingModel("O1-PREVIEW"))
}

func TestIsThinkingModel_NonReasoningModelsDoNotMatch(t *testing.T) {
	assert.False(t, isThinkingModel("gpt-4o"))
	assert.False(t, isThinkingModel("gpt-3.5-turbo"))
	assert.False(t, isThinkingModel("o-standalone"))
	assert.False(t, isThinkingModel("ollama"))
}
