package aggregator

import (
	"github.com/martin-buur/ccusage/internal/model"
)

// LoadDaily aggregates all usage by local calendar date.
func LoadDaily(opts Options) ([]model.DailyUsage, error) {
	records, err := loadRecords(opts)
	if err != nil {
		return nil, err
	}

	loc := opts.location()

	byDate := make(map[string]*model.DailyUsage)
	for _, r := range records {
		date := r.Timestamp.In(loc).Format("2006-01-02")
		row, ok := byDate[date]
		if !ok {
			row = &model.DailyUsage{Date: date}
			byDate[date] = row
		}
		row.Usage.Add(r.Usage)
		row.TotalCost += r.Cost
	}

	rows := make([]model.DailyUsage, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, *row)
	}

	rows = applyRange(rows, opts, func(d model.DailyUsage) string { return d.Date })
	sortRows(rows, opts.order(), func(d model.DailyUsage) string { return d.Date })
	return rows, nil
}
