package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martin-buur/ccusage/internal/model"
)

func dailyRows(dates ...string) []model.DailyUsage {
	rows := make([]model.DailyUsage, len(dates))
	for i, d := range dates {
		rows[i] = model.DailyUsage{Date: d}
	}
	return rows
}

func dates(rows []model.DailyUsage) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Date
	}
	return out
}

func TestApplyRange(t *testing.T) {
	key := func(d model.DailyUsage) string { return d.Date }
	all := []string{"2025-01-14", "2025-01-15", "2025-01-17", "2025-01-20", "2025-01-21"}

	tests := []struct {
		name  string
		since string
		until string
		want  []string
	}{
		{
			name: "no bounds keeps everything",
			want: all,
		},
		{
			name:  "inclusive since and until",
			since: "20250115",
			until: "20250120",
			want:  []string{"2025-01-15", "2025-01-17", "2025-01-20"},
		},
		{
			name:  "since only",
			since: "20250117",
			want:  []string{"2025-01-17", "2025-01-20", "2025-01-21"},
		},
		{
			name:  "until only",
			until: "20250115",
			want:  []string{"2025-01-14", "2025-01-15"},
		},
		{
			name:  "empty window",
			since: "20250118",
			until: "20250116",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyRange(dailyRows(all...), Options{Since: tt.since, Until: tt.until}, key)
			assert.Equal(t, tt.want, dates(got))
		})
	}
}

func TestSortRows(t *testing.T) {
	key := func(d model.DailyUsage) string { return d.Date }

	rows := dailyRows("2025-01-17", "2025-01-14", "2025-01-20")
	sortRows(rows, OrderAsc, key)
	assert.Equal(t, []string{"2025-01-14", "2025-01-17", "2025-01-20"}, dates(rows))

	sortRows(rows, OrderDesc, key)
	assert.Equal(t, []string{"2025-01-20", "2025-01-17", "2025-01-14"}, dates(rows))
}
