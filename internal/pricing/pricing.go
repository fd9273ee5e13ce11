package pricing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/martin-buur/ccusage/internal/model"
)

const liteLLMPricingURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// liteLLMModel represents the pricing structure from LiteLLM
type liteLLMModel struct {
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
	CacheCreationCost  float64 `json:"cache_creation_input_token_cost"`
	CacheReadCost      float64 `json:"cache_read_input_token_cost"`
	LiteLLMProvider    string  `json:"litellm_provider"`
}

// Client maps model names and token counts to dollar costs. It is meant to be
// acquired once per load call and released with Close when the batch is done.
// The price table is fetched lazily on first lookup; in offline mode only the
// embedded table is consulted.
type Client struct {
	offline    bool
	httpClient *http.Client

	once   sync.Once
	prices map[string]model.ModelPricing
}

// New creates a pricing client. No network traffic happens until the first
// cost lookup.
func New(offline bool) *Client {
	return &Client{
		offline:    offline,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Close releases the client's network resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// CostFromTokens computes the cost of a single usage under the named model.
// An unknown model is an error: silently reporting zero cost would make the
// totals lie.
func (c *Client) CostFromTokens(usage model.TokenUsage, modelName string) (float64, error) {
	c.once.Do(c.load)

	pricing, ok := c.lookup(modelName)
	if !ok {
		return 0, fmt.Errorf("pricing: unknown model %q", modelName)
	}
	return CalculateCost(usage, pricing), nil
}

func (c *Client) load() {
	if c.offline {
		c.prices = embeddedPricing()
		return
	}
	prices, err := c.fetch()
	if err != nil {
		// Network trouble falls back to the embedded table; only a model
		// missing from both tables surfaces as an error.
		prices = embeddedPricing()
	}
	c.prices = prices
}

// fetch downloads the LiteLLM price table and keeps the Anthropic entries.
func (c *Client) fetch() (map[string]model.ModelPricing, error) {
	resp, err := c.httpClient.Get(liteLLMPricingURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing: fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var rawPricing map[string]liteLLMModel
	if err := json.Unmarshal(body, &rawPricing); err != nil {
		return nil, err
	}

	prices := make(map[string]model.ModelPricing)
	for name, data := range rawPricing {
		if data.LiteLLMProvider != "anthropic" {
			continue
		}
		prices[name] = model.ModelPricing{
			InputCostPerToken:         data.InputCostPerToken,
			OutputCostPerToken:        data.OutputCostPerToken,
			CacheCreationCostPerToken: data.CacheCreationCost,
			CacheReadCostPerToken:     data.CacheReadCost,
		}
	}
	return prices, nil
}

func (c *Client) lookup(modelName string) (model.ModelPricing, bool) {
	// Exact match first
	if p, ok := c.prices[modelName]; ok {
		return p, true
	}

	// Then match on normalized names (claude-sonnet-4-5 vs claude_sonnet_4_5 etc.)
	normalized := normalizeModelName(modelName)
	for name, p := range c.prices {
		if normalizeModelName(name) == normalized {
			return p, true
		}
	}
	return model.ModelPricing{}, false
}

// normalizeModelName normalizes model names for matching
func normalizeModelName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	return name
}

// CalculateCost calculates the cost for one usage at the given prices
func CalculateCost(usage model.TokenUsage, pricing model.ModelPricing) float64 {
	cost := float64(usage.InputTokens) * pricing.InputCostPerToken
	cost += float64(usage.OutputTokens) * pricing.OutputCostPerToken
	cost += float64(usage.CacheCreationTokens) * pricing.CacheCreationCostPerToken
	cost += float64(usage.CacheReadTokens) * pricing.CacheReadCostPerToken
	return cost
}

// embeddedPricing returns the fallback price table, used offline or when the
// LiteLLM fetch fails.
func embeddedPricing() map[string]model.ModelPricing {
	return map[string]model.ModelPricing{
		// Opus 4.5
		"claude-opus-4-5-20251101": {
			InputCostPerToken:         5e-06,
			OutputCostPerToken:        2.5e-05,
			CacheCreationCostPerToken: 6.25e-06,
			CacheReadCostPerToken:     5e-07,
		},
		"claude-opus-4-5": {
			InputCostPerToken:         5e-06,
			OutputCostPerToken:        2.5e-05,
			CacheCreationCostPerToken: 6.25e-06,
			CacheReadCostPerToken:     5e-07,
		},
		// Opus 4.1
		"claude-opus-4-1-20250805": {
			InputCostPerToken:         1.5e-05,
			OutputCostPerToken:        7.5e-05,
			CacheCreationCostPerToken: 1.875e-05,
			CacheReadCostPerToken:     1.5e-06,
		},
		"claude-opus-4-1": {
			InputCostPerToken:         1.5e-05,
			OutputCostPerToken:        7.5e-05,
			CacheCreationCostPerToken: 1.875e-05,
			CacheReadCostPerToken:     1.5e-06,
		},
		// Opus 4
		"claude-opus-4-20250514": {
			InputCostPerToken:         1.5e-05,
			OutputCostPerToken:        7.5e-05,
			CacheCreationCostPerToken: 1.875e-05,
			CacheReadCostPerToken:     1.5e-06,
		},
		// Sonnet 4.5
		"claude-sonnet-4-5-20250929": {
			InputCostPerToken:         3e-06,
			OutputCostPerToken:        1.5e-05,
			CacheCreationCostPerToken: 3.75e-06,
			CacheReadCostPerToken:     3e-07,
		},
		"claude-sonnet-4-5": {
			InputCostPerToken:         3e-06,
			OutputCostPerToken:        1.5e-05,
			CacheCreationCostPerToken: 3.75e-06,
			CacheReadCostPerToken:     3e-07,
		},
		// Sonnet 4
		"claude-sonnet-4-20250514": {
			InputCostPerToken:         3e-06,
			OutputCostPerToken:        1.5e-05,
			CacheCreationCostPerToken: 3.75e-06,
			CacheReadCostPerToken:     3e-07,
		},
		// Sonnet 3.7
		"claude-3-7-sonnet-20250219": {
			InputCostPerToken:         3e-06,
			OutputCostPerToken:        1.5e-05,
			CacheCreationCostPerToken: 3.75e-06,
			CacheReadCostPerToken:     3e-07,
		},
		// Sonnet 3.5
		"claude-3-5-sonnet-20241022": {
			InputCostPerToken:         3e-06,
			OutputCostPerToken:        1.5e-05,
			CacheCreationCostPerToken: 3.75e-06,
			CacheReadCostPerToken:     3e-07,
		},
		// Haiku 4.5
		"claude-haiku-4-5-20251001": {
			InputCostPerToken:         1e-06,
			OutputCostPerToken:        5e-06,
			CacheCreationCostPerToken: 1.25e-06,
			CacheReadCostPerToken:     1e-07,
		},
		"claude-haiku-4-5": {
			InputCostPerToken:         1e-06,
			OutputCostPerToken:        5e-06,
			CacheCreationCostPerToken: 1.25e-06,
			CacheReadCostPerToken:     1e-07,
		},
		// Haiku 3.5
		"claude-3-5-haiku-20241022": {
			InputCostPerToken:         8e-07,
			OutputCostPerToken:        4e-06,
			CacheCreationCostPerToken: 1e-06,
			CacheReadCostPerToken:     8e-08,
		},
		// Haiku 3
		"claude-3-haiku-20240307": {
			InputCostPerToken:         2.5e-07,
			OutputCostPerToken:        1.25e-06,
			CacheCreationCostPerToken: 3e-07,
			CacheReadCostPerToken:     3e-08,
		},
		// Opus 3
		"claude-3-opus-20240229": {
			InputCostPerToken:         1.5e-05,
			OutputCostPerToken:        7.5e-05,
			CacheCreationCostPerToken: 1.875e-05,
			CacheReadCostPerToken:     1.5e-06,
		},
	}
}
