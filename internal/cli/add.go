package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/chargebook/internal/extract"
	"github.com/runnerr0/chargebook/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(ctx, a)
}

// executeWithApp runs the add logic against a provided app (used by tests).
func (c *AddCommand) executeWithApp(ctx context.Context, a *app) error {
	energy, err := parseAmount("energy", c.Energy)
	if err != nil {
		return err
	}
	cost, err := parseAmount("cost", c.Cost)
	if err != nil {
		return err
	}
	balance, err := parseAmount("balance", c.Balance)
	if err != nil {
		return err
	}
	duration, err := parseMinutes(c.Duration)
	if err != nil {
		return err
	}

	date := a.now()
	if c.Date != "" {
		if date, err = parseDate(c.Date, a.loc); err != nil {
			return err
		}
	}

	draft := storage.Draft{Date: date, Location: c.Location, Notes: c.Notes}

	var recognized extract.Result
	if c.Image != "" {
		if draft, recognized, err = c.prefill(ctx, a, draft); err != nil {
			return err
		}
	}

	// Explicit flags win over anything read from the image.
	if energy != nil {
		draft.EnergyKWh = *energy
	}
	if duration != nil {
		draft.DurationMinutes = *duration
	}
	if cost != nil {
		draft.Cost = *cost
	}
	if balance != nil {
		draft.Balance = balance
	}

	if (energy == nil && recognized.EnergyKWh == nil) || (cost == nil && recognized.Cost == nil) {
		return fmt.Errorf("--energy and --cost are required unless they can be read from --image")
	}
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	rec, err := a.store.Add(ctx, draft)
	if err != nil {
		var perr *storage.PersistenceError
		if errors.As(err, &perr) {
			return fmt.Errorf("session %s was not saved: %w", rec.ID, err)
		}
		return err
	}

	if c.globals.JSON {
		return writeJSON(rec)
	}

	fmt.Printf("Added session %s\n", rec.ID)
	printRecord(a, rec)
	return nil
}

// prefill merges values read from the image into d and reports which
// fields were recognized. A backend failure is reported on stderr and leaves
// d as it was; only an unreadable file is an error.
func (c *AddCommand) prefill(ctx context.Context, a *app, d storage.Draft) (storage.Draft, extract.Result, error) {
	req, err := readImage(c.Image, "")
	if err != nil {
		return d, extract.Result{}, err
	}

	p, err := a.prefiller(ctx, c.extractor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Image not read: %v\n", err)
		return d, extract.Result{}, nil
	}

	ctx, cancel := a.extractionContext(ctx)
	defer cancel()

	filled, res, err := p.Prefill(ctx, req, d)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read values from %s: %v\n", c.Image, err)
		fmt.Fprintln(os.Stderr, "Retry, or enter them with --energy, --duration and --cost.")
		return d, extract.Result{}, nil
	}
	if res.Empty() {
		fmt.Fprintf(os.Stderr, "Nothing recognized in %s.\n", c.Image)
	}
	return filled, res, nil
}

// parseMinutes accepts whole minutes ("45") or a Go duration ("1h30m").
func parseMinutes(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --duration value %q (minutes, or e.g. 1h30m)", s)
	}
	n := int(d.Round(time.Minute) / time.Minute)
	return &n, nil
}

// printRecord writes every field of rec.
func printRecord(a *app, rec storage.ChargingRecord) {
	fmt.Printf("  Date:      %s\n", a.date(rec.Date))
	fmt.Printf("  Energy:    %s\n", formatEnergy(rec.EnergyKWh))
	fmt.Printf("  Duration:  %s\n", formatMinutes(rec.DurationMinutes))
	fmt.Printf("  Cost:      %s\n", a.money(rec.Cost))
	fmt.Printf("  Balance:   %s\n", a.balance(rec.Balance))
	if rec.Location != "" {
		fmt.Printf("  Location:  %s\n", rec.Location)
	}
	if rec.Notes != "" {
		fmt.Printf("  Notes:     %s\n", rec.Notes)
	}
}
