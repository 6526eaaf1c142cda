package cli

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/runnerr0/chargebook/internal/stats"
)

const barWidth = 24

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(a)
}

type statsJSON struct {
	Summary  stats.Summary         `json:"summary"`
	Months   []stats.MonthlyBucket `json:"months"`
	Detail   []stats.MonthlyBucket `json:"detail"`
	Currency string                `json:"currency"`
}

func (c *StatsCommand) executeWithApp(a *app) error {
	if err := checkMonths(c.Months); err != nil {
		return err
	}
	ref := a.now()
	if c.Ref != "" {
		t, err := parseMonth(c.Ref, a.loc)
		if err != nil {
			return fmt.Errorf("invalid --ref value: %w", err)
		}
		ref = t
	}

	summary, series := aggregate(a, ref, c.Months)
	detail := stats.LatestNonEmptyBuckets(series)

	if c.globals.JSON {
		return writeJSON(statsJSON{Summary: summary, Months: series, Detail: detail, Currency: a.unit.String()})
	}

	fmt.Printf("Sessions:      %d\n", summary.SessionCount)
	fmt.Printf("Total cost:    %s\n", a.money(summary.TotalCost))
	fmt.Printf("Total energy:  %s\n", formatEnergy(summary.TotalEnergy))
	fmt.Printf("Avg per kWh:   %s\n", a.money(summary.AvgCostPerKWh))

	fmt.Println()
	fmt.Printf("Last %d months\n", len(series))
	maxCost := 0.0
	for _, b := range series {
		maxCost = math.Max(maxCost, b.TotalCost)
	}
	for _, b := range series {
		fmt.Printf("  %-6s %s %14s  %s\n", b.Label, b.Period, a.money(b.TotalCost), bar(b.TotalCost, maxCost))
	}

	fmt.Println()
	if len(detail) == 0 {
		fmt.Println("No spending in this period")
		return nil
	}
	fmt.Println("Per-month detail")
	for _, b := range detail {
		word := "sessions"
		if b.Sessions == 1 {
			word = "session"
		}
		fmt.Printf("  %s  %14s  %12s  %d %s\n", b.Period, a.money(b.TotalCost), formatEnergy(b.TotalEnergy), b.Sessions, word)
	}
	return nil
}

// aggregate computes the summary over every record and the monthly series
// ending at ref. months <= 0 falls back to the configured window.
func aggregate(a *app, ref time.Time, months int) (stats.Summary, []stats.MonthlyBucket) {
	if months <= 0 {
		months = a.cfg.Display.Months
	}
	records := a.store.Records()
	return stats.Summarize(records), a.engine.MonthlySeries(records, ref, months)
}

func bar(v, max float64) string {
	if max <= 0 || v <= 0 {
		return ""
	}
	n := int(math.Round(v / max * barWidth))
	if n == 0 {
		n = 1
	}
	return strings.Repeat("#", n)
}
