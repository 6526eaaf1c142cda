package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/runnerr0/chargebook/internal/storage"
)

// Execute implements the go-flags Commander interface for ShowCommand.
func (c *ShowCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for show command")
	}

	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(a)
}

func (c *ShowCommand) executeWithApp(a *app) error {
	rec, err := findRecord(a.store, c.ID)
	if err != nil {
		return err
	}

	if c.globals.JSON {
		return writeJSON(rec)
	}

	fmt.Println(rec.ID)
	printRecord(a, rec)
	return nil
}

var errSessionNotFound = errors.New("session not found")

// findRecord looks a record up by full ID, or by a unique ID prefix as
// printed by list.
func findRecord(store *storage.RecordStore, id string) (storage.ChargingRecord, error) {
	if rec, ok := store.Get(id); ok {
		return rec, nil
	}

	var match []storage.ChargingRecord
	for _, r := range store.Records() {
		if strings.HasPrefix(r.ID, id) {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return storage.ChargingRecord{}, fmt.Errorf("%w: %s", errSessionNotFound, id)
	case 1:
		return match[0], nil
	default:
		return storage.ChargingRecord{}, fmt.Errorf("id prefix %q matches %d sessions", id, len(match))
	}
}
