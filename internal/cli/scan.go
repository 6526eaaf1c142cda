package cli

import (
	"context"
	"fmt"
)

// Execute implements the go-flags Commander interface for ScanCommand.
func (c *ScanCommand) Execute(args []string) error {
	if c.Image == "" {
		return fmt.Errorf("--image is required for scan command")
	}

	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(ctx, a)
}

// executeWithApp runs the scan against a provided app (used by tests).
func (c *ScanCommand) executeWithApp(ctx context.Context, a *app) error {
	req, err := readImage(c.Image, c.MIMEType)
	if err != nil {
		return err
	}

	p, err := a.prefiller(ctx, c.extractor)
	if err != nil {
		return err
	}

	ctx, cancel := a.extractionContext(ctx)
	defer cancel()

	res, err := p.Extract(ctx, req)
	if err != nil {
		return fmt.Errorf("%w (retry, or add the session manually)", err)
	}

	if c.globals.JSON {
		return writeJSON(res)
	}

	if res.Empty() {
		fmt.Println("Nothing recognized.")
		return nil
	}
	fmt.Printf("Energy:    %s\n", optional(res.EnergyKWh, formatEnergy))
	fmt.Printf("Duration:  %s\n", optionalInt(res.DurationMinutes, formatMinutes))
	fmt.Printf("Cost:      %s\n", optional(res.Cost, a.money))
	fmt.Printf("Balance:   %s\n", optional(res.Balance, a.money))
	return nil
}

func optional(v *float64, format func(float64) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

func optionalInt(v *int, format func(int) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}
