package aggregator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martin-buur/ccusage/internal/model"
)

// fakeProvider prices every token field at a flat rate, or fails every lookup.
type fakeProvider struct {
	perToken float64
	err      error
	calls    int
	closed   bool
}

func (f *fakeProvider) CostFromTokens(usage model.TokenUsage, modelName string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	total := usage.InputTokens + usage.OutputTokens + usage.CacheCreationTokens + usage.CacheReadTokens
	return float64(total) * f.perToken, nil
}

func (f *fakeProvider) Close() { f.closed = true }

// swapProvider routes pricing acquisition to the fake for the duration of the
// test and reports whether it was acquired at all.
func swapProvider(t *testing.T, p *fakeProvider) *bool {
	t.Helper()
	acquired := false
	orig := newPriceProvider
	newPriceProvider = func(offline bool) priceProvider {
		acquired = true
		return p
	}
	t.Cleanup(func() { newPriceProvider = orig })
	return &acquired
}

func ptr(f float64) *float64 { return &f }

func record(cost *float64, modelName string, usage model.TokenUsage) model.UsageRecord {
	return model.UsageRecord{Model: modelName, Usage: usage, CostUSD: cost}
}

func TestResolveCostDisplay(t *testing.T) {
	// Display mode gets a nil provider; touching pricing would panic.
	cost, err := resolveCost(record(ptr(1.5), "claude-sonnet-4-5", model.TokenUsage{InputTokens: 10}), CostModeDisplay, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cost)

	cost, err = resolveCost(record(nil, "claude-sonnet-4-5", model.TokenUsage{InputTokens: 10}), CostModeDisplay, nil)
	require.NoError(t, err)
	assert.Zero(t, cost)
}

func TestResolveCostCalculateIgnoresStoredCost(t *testing.T) {
	prices := &fakeProvider{perToken: 0.01}

	cost, err := resolveCost(record(ptr(99), "claude-sonnet-4-5", model.TokenUsage{InputTokens: 10}), CostModeCalculate, prices)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, cost, 1e-9)
	assert.Equal(t, 1, prices.calls)
}

func TestResolveCostCalculateEmptyModel(t *testing.T) {
	prices := &fakeProvider{err: errors.New("should not be called")}

	cost, err := resolveCost(record(ptr(99), "", model.TokenUsage{InputTokens: 10}), CostModeCalculate, prices)
	require.NoError(t, err)
	assert.Zero(t, cost)
	assert.Zero(t, prices.calls)
}

func TestResolveCostAuto(t *testing.T) {
	prices := &fakeProvider{perToken: 0.01}

	// Stored cost wins.
	cost, err := resolveCost(record(ptr(2.5), "claude-sonnet-4-5", model.TokenUsage{InputTokens: 10}), CostModeAuto, prices)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cost)
	assert.Zero(t, prices.calls)

	// Absent cost falls back to calculation.
	cost, err = resolveCost(record(nil, "claude-sonnet-4-5", model.TokenUsage{InputTokens: 10}), CostModeAuto, prices)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, cost, 1e-9)
}

func TestResolveCostLookupFailurePropagates(t *testing.T) {
	prices := &fakeProvider{err: errors.New("unknown model")}

	_, err := resolveCost(record(nil, "mystery-model", model.TokenUsage{InputTokens: 10}), CostModeAuto, prices)
	assert.Error(t, err)
}

func TestParseCostMode(t *testing.T) {
	for _, valid := range []string{"auto", "calculate", "display"} {
		mode, err := ParseCostMode(valid)
		require.NoError(t, err)
		assert.Equal(t, CostMode(valid), mode)
	}

	_, err := ParseCostMode("guess")
	assert.Error(t, err)
}

func TestParseSortOrder(t *testing.T) {
	for _, valid := range []string{"asc", "desc"} {
		order, err := ParseSortOrder(valid)
		require.NoError(t, err)
		assert.Equal(t, SortOrder(valid), order)
	}

	_, err := ParseSortOrder("sideways")
	assert.Error(t, err)
}

func TestLoadEmptyDirSkipsPricing(t *testing.T) {
	acquired := swapProvider(t, &fakeProvider{})

	rows, err := LoadDaily(Options{DataDir: t.TempDir(), Mode: CostModeCalculate})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.False(t, *acquired, "no files means no pricing client")
}

func TestLoadDisplaySkipsPricing(t *testing.T) {
	acquired := swapProvider(t, &fakeProvider{err: errors.New("must not be used")})

	dir := writeLogs(t, map[string]string{
		"proj/log.jsonl": `{"timestamp":"2025-01-15T10:00:00Z","costUSD":0.5,"message":{"model":"claude-sonnet-4-5","usage":{"input_tokens":10,"output_tokens":5}}}` + "\n",
	})

	rows, err := LoadDaily(Options{DataDir: dir, Mode: CostModeDisplay})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.5, rows[0].TotalCost)
	assert.False(t, *acquired)
}

func TestLoadReleasesProvider(t *testing.T) {
	prices := &fakeProvider{perToken: 0.01}
	swapProvider(t, prices)

	dir := writeLogs(t, map[string]string{
		"proj/log.jsonl": `{"timestamp":"2025-01-15T10:00:00Z","message":{"model":"claude-sonnet-4-5","usage":{"input_tokens":10,"output_tokens":5}}}` + "\n",
	})

	_, err := LoadDaily(Options{DataDir: dir, Mode: CostModeCalculate})
	require.NoError(t, err)
	assert.True(t, prices.closed)
}

func TestLoadReleasesProviderOnError(t *testing.T) {
	prices := &fakeProvider{err: errors.New("unknown model")}
	swapProvider(t, prices)

	dir := writeLogs(t, map[string]string{
		"proj/log.jsonl": `{"timestamp":"2025-01-15T10:00:00Z","message":{"model":"mystery","usage":{"input_tokens":10,"output_tokens":5}}}` + "\n",
	})

	_, err := LoadDaily(Options{DataDir: dir, Mode: CostModeCalculate})
	assert.Error(t, err)
	assert.True(t, prices.closed)
}
