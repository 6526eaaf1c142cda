package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/chargebook/internal/storage"
)

// Execute implements the go-flags Commander interface for ListCommand.
func (c *ListCommand) Execute(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(a)
}

// executeWithApp lists records from a provided app (for testing).
func (c *ListCommand) executeWithApp(a *app) error {
	now := a.now()

	var since, until time.Time
	var err error
	if c.Since != "" {
		if since, err = parseBound(c.Since, now, a.loc); err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
	}
	if c.Until != "" {
		if until, err = parseBound(c.Until, now, a.loc); err != nil {
			return fmt.Errorf("invalid --until value: %w", err)
		}
	}
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	all := storage.SortByDate(a.store.Records())
	results := make([]storage.ChargingRecord, 0, len(all))
	for _, r := range all {
		if !since.IsZero() && r.Date.Before(since) {
			continue
		}
		if !until.IsZero() && !r.Date.Before(until) {
			continue
		}
		results = append(results, r)
		if c.Limit > 0 && len(results) == c.Limit {
			break
		}
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(results)
	}
	return c.printHuman(a, results)
}

func (c *ListCommand) printHuman(a *app, results []storage.ChargingRecord) error {
	if len(results) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	word := "sessions"
	if len(results) == 1 {
		word = "session"
	}
	fmt.Printf("%d %s\n\n", len(results), word)

	fmt.Printf("%-9s %-16s %12s %9s %14s %14s  %s\n", "ID", "DATE", "ENERGY", "DURATION", "COST", "BALANCE", "LOCATION")
	for _, r := range results {
		fmt.Printf("%-9s %-16s %12s %9s %14s %14s  %s\n",
			shortID(r.ID),
			a.date(r.Date),
			formatEnergy(r.EnergyKWh),
			formatMinutes(r.DurationMinutes),
			a.money(r.Cost),
			a.balance(r.Balance),
			r.Location)
	}
	return nil
}

type jsonListOutput struct {
	Count   int                      `json:"count"`
	Results []storage.ChargingRecord `json:"results"`
}

func (c *ListCommand) printJSON(results []storage.ChargingRecord) error {
	return writeJSON(jsonListOutput{Count: len(results), Results: results})
}
