package aggregator

import (
	"github.com/martin-buur/ccusage/internal/model"
	"github.com/martin-buur/ccusage/internal/parser"
	"github.com/martin-buur/ccusage/internal/pricing"
)

// priceProvider is the slice of pricing.Client the aggregator needs.
type priceProvider interface {
	CostFromTokens(usage model.TokenUsage, modelName string) (float64, error)
	Close()
}

// Swappable in tests.
var newPriceProvider = func(offline bool) priceProvider {
	return pricing.New(offline)
}

// costedRecord is a validated record with its cost resolved under the
// requested mode.
type costedRecord struct {
	model.UsageRecord
	Cost float64
}

// loadRecords discovers and parses all log files, then resolves per-record
// costs. The pricing client is created at most once, only when the mode needs
// it and there is at least one file to price, and is always released before
// returning.
func loadRecords(opts Options) ([]costedRecord, error) {
	root, err := opts.dataDir()
	if err != nil {
		return nil, err
	}

	files, err := parser.FindUsageFiles(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	mode := opts.mode()

	var prices priceProvider
	if mode != CostModeDisplay {
		prices = newPriceProvider(opts.Offline)
		defer prices.Close()
	}

	var records []costedRecord
	for _, file := range files {
		parsed, err := parser.ParseFile(file, root)
		if err != nil {
			return nil, err
		}
		for _, r := range parsed {
			cost, err := resolveCost(r, mode, prices)
			if err != nil {
				return nil, err
			}
			records = append(records, costedRecord{UsageRecord: r, Cost: cost})
		}
	}
	return records, nil
}
