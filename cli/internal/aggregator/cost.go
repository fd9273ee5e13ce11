package aggregator

import (
	"fmt"

	"github.com/martin-buur/ccusage/internal/model"
)

// resolveCost determines the cost of one record under the given mode. In
// display mode prices is never consulted and may be nil. A pricing failure
// propagates rather than being folded into a zero cost.
func resolveCost(r model.UsageRecord, mode CostMode, prices priceProvider) (float64, error) {
	switch mode {
	case CostModeDisplay:
		if r.CostUSD != nil {
			return *r.CostUSD, nil
		}
		return 0, nil
	case CostModeCalculate:
		return calculateCost(r, prices)
	case CostModeAuto:
		if r.CostUSD != nil {
			return *r.CostUSD, nil
		}
		return calculateCost(r, prices)
	}
	// Modes are validated at the option boundary.
	panic(fmt.Sprintf("unhandled cost mode %q", mode))
}

func calculateCost(r model.UsageRecord, prices priceProvider) (float64, error) {
	if r.Model == "" {
		return 0, nil
	}
	return prices.CostFromTokens(r.Usage, r.Model)
}
