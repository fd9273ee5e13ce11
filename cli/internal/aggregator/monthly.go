package aggregator

import (
	"github.com/martin-buur/ccusage/internal/model"
)

// LoadMonthly aggregates usage by calendar month. It regroups the daily rows
// rather than re-reading raw records, so the date filter has already been
// applied at daily granularity.
func LoadMonthly(opts Options) ([]model.MonthlyUsage, error) {
	daily, err := LoadDaily(opts)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*model.MonthlyUsage)
	for _, d := range daily {
		month := d.Date[:7]
		row, ok := byMonth[month]
		if !ok {
			row = &model.MonthlyUsage{Month: month}
			byMonth[month] = row
		}
		row.Usage.Add(d.Usage)
		row.TotalCost += d.TotalCost
	}

	rows := make([]model.MonthlyUsage, 0, len(byMonth))
	for _, row := range byMonth {
		rows = append(rows, *row)
	}

	sortRows(rows, opts.order(), func(m model.MonthlyUsage) string { return m.Month })
	return rows, nil
}
