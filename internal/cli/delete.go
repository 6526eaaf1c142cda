package cli

import (
	"context"
	"errors"
	"fmt"
)

// Execute implements the go-flags Commander interface for DeleteCommand.
func (c *DeleteCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for delete command")
	}

	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(ctx, a)
}

// executeWithApp deletes by full ID or by the unique prefix list prints.
// An unknown ID is reported but is not an error; an ambiguous prefix is.
func (c *DeleteCommand) executeWithApp(ctx context.Context, a *app) error {
	id := c.ID
	rec, err := findRecord(a.store, c.ID)
	switch {
	case err == nil:
		id = rec.ID
	case !errors.Is(err, errSessionNotFound):
		return err
	}
	found := err == nil

	if err := a.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	if c.globals.JSON {
		return writeJSON(map[string]interface{}{
			"id":      id,
			"deleted": found,
		})
	}

	if found {
		fmt.Printf("Deleted session %s\n", id)
	} else {
		fmt.Printf("No session with id %s, nothing deleted\n", id)
	}
	return nil
}
