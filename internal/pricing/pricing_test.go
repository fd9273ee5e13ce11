package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martin-buur/ccusage/internal/model"
)

func TestCostFromTokensEmbedded(t *testing.T) {
	c := New(true)
	defer c.Close()

	usage := model.TokenUsage{
		InputTokens:         1000,
		OutputTokens:        500,
		CacheCreationTokens: 200,
		CacheReadTokens:     10000,
	}

	cost, err := c.CostFromTokens(usage, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	// 1000*3e-6 + 500*1.5e-5 + 200*3.75e-6 + 10000*3e-7
	assert.InDelta(t, 0.01425, cost, 1e-9)
}

func TestCostFromTokensNormalizedMatch(t *testing.T) {
	c := New(true)
	defer c.Close()

	cost, err := c.CostFromTokens(model.TokenUsage{InputTokens: 1000}, "Claude_Sonnet_4_20250514")
	require.NoError(t, err)
	assert.InDelta(t, 0.003, cost, 1e-9)
}

func TestCostFromTokensUnknownModel(t *testing.T) {
	c := New(true)
	defer c.Close()

	cost, err := c.CostFromTokens(model.TokenUsage{InputTokens: 1000}, "gpt-nonsense")
	assert.Error(t, err)
	assert.Zero(t, cost)
}

func TestNormalizeModelName(t *testing.T) {
	assert.Equal(t, normalizeModelName("claude-sonnet-4-5"), normalizeModelName("Claude_Sonnet_4_5"))
	assert.NotEqual(t, normalizeModelName("claude-sonnet-4-5"), normalizeModelName("claude-opus-4-5"))
}

func TestCalculateCostZeroUsage(t *testing.T) {
	cost := CalculateCost(model.TokenUsage{}, model.ModelPricing{InputCostPerToken: 1})
	assert.Zero(t, cost)
}
