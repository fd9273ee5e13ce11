package model

import "time"

// TokenUsage contains token counts from a Claude API response
type TokenUsage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
}

// Add accumulates another usage into u
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheCreationTokens += o.CacheCreationTokens
	u.CacheReadTokens += o.CacheReadTokens
}

// UsageRecord represents a single validated usage entry from a Claude Code
// JSONL log. CostUSD is nil when the log line carried no pre-computed cost,
// which is distinct from an explicit cost of zero.
type UsageRecord struct {
	Timestamp   time.Time
	Version     string
	Model       string
	ProjectPath string
	Usage       TokenUsage
	CostUSD     *float64
}

// DailyUsage is one row of the daily report, keyed by calendar date.
type DailyUsage struct {
	Date      string     `json:"date"` // YYYY-MM-DD
	Usage     TokenUsage `json:"usage"`
	TotalCost float64    `json:"total_cost"`
}

// SessionUsage is one row of the session report. Sessions are inferred from
// activity gaps, so the ID is synthesized from the session's start timestamp
// rather than read from the logs.
type SessionUsage struct {
	SessionID    string     `json:"session_id"`
	ProjectPath  string     `json:"project_path"` // single path, or "Multiple (N)"
	Usage        TokenUsage `json:"usage"`
	TotalCost    float64    `json:"total_cost"`
	LastActivity string     `json:"last_activity"` // YYYY-MM-DD of the final record
	Versions     []string   `json:"versions,omitempty"`
}

// MonthlyUsage is one row of the monthly report, keyed by calendar month.
type MonthlyUsage struct {
	Month     string     `json:"month"` // YYYY-MM
	Usage     TokenUsage `json:"usage"`
	TotalCost float64    `json:"total_cost"`
}

// ModelPricing contains pricing info for a model (per token, not per million)
type ModelPricing struct {
	InputCostPerToken         float64
	OutputCostPerToken        float64
	CacheCreationCostPerToken float64
	CacheReadCostPerToken     float64
}
