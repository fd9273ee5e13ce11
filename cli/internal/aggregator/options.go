package aggregator

import (
	"fmt"
	"time"

	"github.com/martin-buur/ccusage/internal/parser"
)

// CostMode selects how the cost of each record is determined.
type CostMode string

const (
	// CostModeAuto uses the stored cost when present, otherwise calculates.
	CostModeAuto CostMode = "auto"
	// CostModeCalculate always re-derives cost from token counts.
	CostModeCalculate CostMode = "calculate"
	// CostModeDisplay only uses stored costs and never consults pricing.
	CostModeDisplay CostMode = "display"
)

// ParseCostMode validates a user-supplied cost mode string.
func ParseCostMode(s string) (CostMode, error) {
	switch CostMode(s) {
	case CostModeAuto, CostModeCalculate, CostModeDisplay:
		return CostMode(s), nil
	}
	return "", fmt.Errorf("invalid cost mode %q (want auto, calculate or display)", s)
}

// SortOrder selects the direction rows are sorted by their date key.
type SortOrder string

const (
	OrderDesc SortOrder = "desc"
	OrderAsc  SortOrder = "asc"
)

// ParseSortOrder validates a user-supplied sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case OrderAsc, OrderDesc:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("invalid sort order %q (want asc or desc)", s)
}

// Options controls a load call. The zero value means: default data directory,
// no date bounds, auto cost mode, descending order, local timezone, online
// pricing.
type Options struct {
	// Since and Until are inclusive date bounds in YYYYMMDD form. Empty means
	// unbounded.
	Since string
	Until string

	Mode  CostMode
	Order SortOrder

	// DataDir overrides the default Claude Code projects directory.
	DataDir string

	// Timezone for date extraction. Nil means time.Local.
	Timezone *time.Location

	// Offline restricts pricing to the embedded table.
	Offline bool
}

func (o Options) mode() CostMode {
	if o.Mode == "" {
		return CostModeAuto
	}
	return o.Mode
}

func (o Options) order() SortOrder {
	if o.Order == "" {
		return OrderDesc
	}
	return o.Order
}

func (o Options) location() *time.Location {
	if o.Timezone == nil {
		return time.Local
	}
	return o.Timezone
}

func (o Options) dataDir() (string, error) {
	if o.DataDir != "" {
		return o.DataDir, nil
	}
	return parser.DefaultDataDir()
}
