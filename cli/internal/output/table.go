package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/martin-buur/ccusage/internal/model"
)

const (
	compactThreshold = 100 // Terminal width below which compact mode kicks in
	defaultWidth     = 120
)

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
}

// Row is one line of a usage table.
type Row struct {
	Key   string
	Usage model.TokenUsage
	Cost  float64
}

// DailyRows converts the daily view into table rows.
func DailyRows(daily []model.DailyUsage) []Row {
	rows := make([]Row, len(daily))
	for i, d := range daily {
		rows[i] = Row{Key: d.Date, Usage: d.Usage, Cost: d.TotalCost}
	}
	return rows
}

// MonthlyRows converts the monthly view into table rows.
func MonthlyRows(monthly []model.MonthlyUsage) []Row {
	rows := make([]Row, len(monthly))
	for i, m := range monthly {
		rows[i] = Row{Key: m.Month, Usage: m.Usage, Cost: m.TotalCost}
	}
	return rows
}

// shouldUseCompact determines if compact mode should be used
func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	return getTerminalWidth() < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	if n == 0 {
		return "0"
	}

	str := fmt.Sprintf("%d", n)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}

	if negative {
		return "-" + result
	}
	return result
}

// FormatCost formats a cost value as currency
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.2f", cost)
}

// PrintTable prints usage rows as a formatted table with a totals line.
func PrintTable(rows []Row, title string, opts TableOptions) {
	if len(rows) == 0 {
		fmt.Println("No usage data found.")
		return
	}

	compact := shouldUseCompact(opts)

	keyWidth := len(title)
	for _, r := range rows {
		if len(r.Key) > keyWidth {
			keyWidth = len(r.Key)
		}
	}
	if keyWidth < 10 {
		keyWidth = 10
	}

	fmt.Println()

	if compact {
		// Compact: Key, Input, Output, Cost
		lineWidth := keyWidth + 2 + 12 + 2 + 12 + 2 + 10

		fmt.Printf("%-*s  %12s  %12s  %10s\n", keyWidth, title, "Input", "Output", "Cost")
		fmt.Println(strings.Repeat("─", lineWidth))

		for _, r := range rows {
			fmt.Printf("%-*s  %12s  %12s  %10s\n",
				keyWidth, r.Key,
				FormatNumber(r.Usage.InputTokens),
				FormatNumber(r.Usage.OutputTokens),
				FormatCost(r.Cost))
		}

		if len(rows) > 1 {
			total := Totals(rows)
			fmt.Println(strings.Repeat("─", lineWidth))
			fmt.Printf("%-*s  %12s  %12s  %10s\n",
				keyWidth, "Total",
				FormatNumber(total.Usage.InputTokens),
				FormatNumber(total.Usage.OutputTokens),
				FormatCost(total.Cost))
		}

		fmt.Println()
		fmt.Println("(Compact mode - expand terminal for full view)")
		return
	}

	// Full: Key, Input, Output, Cache Create, Cache Read, Cost
	lineWidth := keyWidth + 2 + 12 + 2 + 12 + 2 + 14 + 2 + 14 + 2 + 10

	fmt.Printf("%-*s  %12s  %12s  %14s  %14s  %10s\n",
		keyWidth, title, "Input", "Output", "Cache Create", "Cache Read", "Cost")
	fmt.Println(strings.Repeat("─", lineWidth))

	for _, r := range rows {
		fmt.Printf("%-*s  %12s  %12s  %14s  %14s  %10s\n",
			keyWidth, r.Key,
			FormatNumber(r.Usage.InputTokens),
			FormatNumber(r.Usage.OutputTokens),
			FormatNumber(r.Usage.CacheCreationTokens),
			FormatNumber(r.Usage.CacheReadTokens),
			FormatCost(r.Cost))
	}

	if len(rows) > 1 {
		total := Totals(rows)
		fmt.Println(strings.Repeat("─", lineWidth))
		fmt.Printf("%-*s  %12s  %12s  %14s  %14s  %10s\n",
			keyWidth, "Total",
			FormatNumber(total.Usage.InputTokens),
			FormatNumber(total.Usage.OutputTokens),
			FormatNumber(total.Usage.CacheCreationTokens),
			FormatNumber(total.Usage.CacheReadTokens),
			FormatCost(total.Cost))
	}

	fmt.Println()
}

// Totals sums all rows into one.
func Totals(rows []Row) Row {
	total := Row{Key: "total"}
	for _, r := range rows {
		total.Usage.Add(r.Usage)
		total.Cost += r.Cost
	}
	return total
}

// PrintSessions prints the session view. Sessions carry project and
// last-activity columns the other views lack.
func PrintSessions(sessions []model.SessionUsage, opts TableOptions) {
	if len(sessions) == 0 {
		fmt.Println("No usage data found.")
		return
	}

	compact := shouldUseCompact(opts)

	idWidth := len("Session")
	projWidth := len("Project")
	for _, s := range sessions {
		if len(s.SessionID) > idWidth {
			idWidth = len(s.SessionID)
		}
		if len(s.ProjectPath) > projWidth {
			projWidth = len(s.ProjectPath)
		}
	}
	if compact && projWidth > 20 {
		projWidth = 20
	}

	fmt.Println()

	if compact {
		lineWidth := idWidth + 2 + projWidth + 2 + 12 + 2 + 12 + 2 + 10

		fmt.Printf("%-*s  %-*s  %12s  %12s  %10s\n",
			idWidth, "Session", projWidth, "Project", "Input", "Output", "Cost")
		fmt.Println(strings.Repeat("─", lineWidth))

		for _, s := range sessions {
			proj := s.ProjectPath
			if len(proj) > projWidth {
				proj = proj[:projWidth]
			}
			fmt.Printf("%-*s  %-*s  %12s  %12s  %10s\n",
				idWidth, s.SessionID, projWidth, proj,
				FormatNumber(s.Usage.InputTokens),
				FormatNumber(s.Usage.OutputTokens),
				FormatCost(s.TotalCost))
		}

		printSessionTotals(sessions, idWidth, projWidth, compact)
		fmt.Println()
		fmt.Println("(Compact mode - expand terminal for full view)")
		return
	}

	lineWidth := idWidth + 2 + projWidth + 2 + 12 + 2 + 12 + 2 + 14 + 2 + 14 + 2 + 10 + 2 + 13

	fmt.Printf("%-*s  %-*s  %12s  %12s  %14s  %14s  %10s  %13s\n",
		idWidth, "Session", projWidth, "Project",
		"Input", "Output", "Cache Create", "Cache Read", "Cost", "Last Activity")
	fmt.Println(strings.Repeat("─", lineWidth))

	for _, s := range sessions {
		fmt.Printf("%-*s  %-*s  %12s  %12s  %14s  %14s  %10s  %13s\n",
			idWidth, s.SessionID, projWidth, s.ProjectPath,
			FormatNumber(s.Usage.InputTokens),
			FormatNumber(s.Usage.OutputTokens),
			FormatNumber(s.Usage.CacheCreationTokens),
			FormatNumber(s.Usage.CacheReadTokens),
			FormatCost(s.TotalCost),
			s.LastActivity)
	}

	printSessionTotals(sessions, idWidth, projWidth, compact)
	fmt.Println()
}

func printSessionTotals(sessions []model.SessionUsage, idWidth, projWidth int, compact bool) {
	if len(sessions) < 2 {
		return
	}

	var total model.TokenUsage
	var totalCost float64
	for _, s := range sessions {
		total.Add(s.Usage)
		totalCost += s.TotalCost
	}

	if compact {
		lineWidth := idWidth + 2 + projWidth + 2 + 12 + 2 + 12 + 2 + 10
		fmt.Println(strings.Repeat("─", lineWidth))
		fmt.Printf("%-*s  %-*s  %12s  %12s  %10s\n",
			idWidth, "Total", projWidth, "",
			FormatNumber(total.InputTokens),
			FormatNumber(total.OutputTokens),
			FormatCost(totalCost))
		return
	}

	lineWidth := idWidth + 2 + projWidth + 2 + 12 + 2 + 12 + 2 + 14 + 2 + 14 + 2 + 10 + 2 + 13
	fmt.Println(strings.Repeat("─", lineWidth))
	fmt.Printf("%-*s  %-*s  %12s  %12s  %14s  %14s  %10s  %13s\n",
		idWidth, "Total", projWidth, "",
		FormatNumber(total.InputTokens),
		FormatNumber(total.OutputTokens),
		FormatNumber(total.CacheCreationTokens),
		FormatNumber(total.CacheReadTokens),
		FormatCost(totalCost),
		"")
}

// PrintJSON writes v to stdout as indented JSON.
func PrintJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
