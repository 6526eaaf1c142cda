package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(ctx, a)
}

func (c *PurgeCommand) executeWithApp(ctx context.Context, a *app) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	count := a.store.Len()

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL recorded charging sessions.")
		fmt.Printf("  - %d sessions in %s\n", count, a.where)
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		var in io.Reader = os.Stdin
		if c.in != nil {
			in = c.in
		}
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	if err := a.store.Reset(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	// Output
	if c.globals.JSON {
		return writeJSON(map[string]interface{}{
			"purged":  true,
			"deleted": count,
			"message": "all sessions deleted",
		})
	}

	fmt.Printf("Purged %d sessions. chargebook is empty.\n", count)
	return nil
}
