package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martin-buur/ccusage/internal/model"
)

func rec(ts time.Time, project string, cost float64) costedRecord {
	return costedRecord{
		UsageRecord: model.UsageRecord{
			Timestamp:   ts,
			ProjectPath: project,
			Usage:       model.TokenUsage{InputTokens: 1, OutputTokens: 1},
		},
		Cost: cost,
	}
}

func TestPartitionSessionsWindowBoundary(t *testing.T) {
	start := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	records := []costedRecord{
		rec(start, "p", 1),
		rec(start.Add(4*time.Hour+59*time.Minute), "p", 1),
		rec(start.Add(5*time.Hour+1*time.Minute), "p", 1),
	}

	sessions := partitionSessions(records, time.UTC)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-01-15T08:00:00", sessions[0].SessionID)
	assert.Equal(t, "2025-01-15T13:01:00", sessions[1].SessionID)
	assert.InDelta(t, 2, sessions[0].TotalCost, 1e-9)
	assert.InDelta(t, 1, sessions[1].TotalCost, 1e-9)
}

func TestPartitionSessionsExactWindowEdge(t *testing.T) {
	start := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	// Exactly 5h after the start still belongs to the session; only strictly
	// beyond the window opens a new one.
	records := []costedRecord{
		rec(start, "p", 0),
		rec(start.Add(5*time.Hour), "p", 0),
	}

	sessions := partitionSessions(records, time.UTC)
	assert.Len(t, sessions, 1)
}

func TestPartitionSessionsAnchoredAtStart(t *testing.T) {
	start := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	// Steady activity every 2h. A sliding window would keep one session going;
	// the start-anchored window closes it after 5h.
	records := []costedRecord{
		rec(start, "p", 0),
		rec(start.Add(2*time.Hour), "p", 0),
		rec(start.Add(4*time.Hour), "p", 0),
		rec(start.Add(6*time.Hour), "p", 0),
	}

	sessions := partitionSessions(records, time.UTC)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-01-15T14:00:00", sessions[1].SessionID)
}

func TestPartitionSessionsUnsortedInput(t *testing.T) {
	start := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	records := []costedRecord{
		rec(start.Add(6*time.Hour), "p", 0),
		rec(start, "p", 0),
		rec(start.Add(1*time.Hour), "p", 0),
	}

	sessions := partitionSessions(records, time.UTC)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-01-15T08:00:00", sessions[0].SessionID)
}

func TestPartitionSessionsProjectDisplay(t *testing.T) {
	start := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	single := partitionSessions([]costedRecord{
		rec(start, "alpha", 0),
		rec(start.Add(time.Minute), "alpha", 0),
	}, time.UTC)
	require.Len(t, single, 1)
	assert.Equal(t, "alpha", single[0].ProjectPath)

	multi := partitionSessions([]costedRecord{
		rec(start, "alpha", 0),
		rec(start.Add(time.Minute), "beta", 0),
		rec(start.Add(2*time.Minute), "gamma", 0),
	}, time.UTC)
	require.Len(t, multi, 1)
	assert.Equal(t, "Multiple (3)", multi[0].ProjectPath)
}

func TestPartitionSessionsVersionsAndLastActivity(t *testing.T) {
	start := time.Date(2025, 1, 15, 22, 0, 0, 0, time.UTC)

	records := []costedRecord{
		rec(start, "p", 0),
		rec(start.Add(3*time.Hour), "p", 0),
	}
	records[0].Version = "1.0.31"
	records[1].Version = "1.0.30"

	sessions := partitionSessions(records, time.UTC)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"1.0.30", "1.0.31"}, sessions[0].Versions)
	// Last activity lands past midnight, on the 16th.
	assert.Equal(t, "2025-01-16", sessions[0].LastActivity)
}

func TestPartitionSessionsEmpty(t *testing.T) {
	assert.Nil(t, partitionSessions(nil, time.UTC))
}

func TestLoadSessionsFromFiles(t *testing.T) {
	dir := writeLogs(t, map[string]string{
		"alpha/a.jsonl": `{"timestamp":"2025-01-15T08:00:00Z","version":"1.0.30","costUSD":0.1,"message":{"usage":{"input_tokens":10,"output_tokens":5}}}
{"timestamp":"2025-01-15T20:00:00Z","version":"1.0.30","costUSD":0.2,"message":{"usage":{"input_tokens":20,"output_tokens":10}}}
`,
		"beta/b.jsonl": `{"timestamp":"2025-01-15T08:30:00Z","version":"1.0.31","costUSD":0.3,"message":{"usage":{"input_tokens":30,"output_tokens":15}}}
`,
	})

	rows, err := LoadSessions(Options{DataDir: dir, Mode: CostModeDisplay, Timezone: time.UTC, Order: OrderAsc})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "2025-01-15T08:00:00", first.SessionID)
	assert.Equal(t, "Multiple (2)", first.ProjectPath)
	assert.Equal(t, []string{"1.0.30", "1.0.31"}, first.Versions)
	assert.InDelta(t, 0.4, first.TotalCost, 1e-9)

	second := rows[1]
	assert.Equal(t, "2025-01-15T20:00:00", second.SessionID)
	assert.Equal(t, "alpha", second.ProjectPath)
	assert.InDelta(t, 0.2, second.TotalCost, 1e-9)
}
