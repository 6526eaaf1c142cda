package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/chargebook/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version       string `json:"version"`
	Backend       string `json:"backend"`
	Path          string `json:"path"`
	SizeBytes     int64  `json:"size_bytes"`
	SchemaVersion int    `json:"schema_version,omitempty"`
	TotalSessions int    `json:"total_sessions"`
	OldestSession string `json:"oldest_session,omitempty"`
	NewestSession string `json:"newest_session,omitempty"`
	Locale        string `json:"locale"`
	Currency      string `json:"currency"`
	Extraction    bool   `json:"extraction_enabled"`
	MQTT          bool   `json:"mqtt_enabled"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(ctx, a)
}

// executeWithApp runs status against a provided app (for testing).
func (c *StatusCommand) executeWithApp(ctx context.Context, a *app) error {
	records := storage.SortByDate(a.store.Records())

	out := statusJSON{
		Version:       c.version,
		Backend:       a.cfg.Storage.Backend,
		Path:          a.where,
		SizeBytes:     storageSize(ctx, a),
		TotalSessions: len(records),
		Locale:        a.cfg.Display.Locale,
		Currency:      a.unit.String(),
		Extraction:    a.cfg.Extraction.Enabled,
		MQTT:          a.cfg.MQTT.Enabled,
	}
	if kv, ok := a.kv.(*storage.SQLiteKV); ok {
		if v, err := storage.NewMigrationRunner(kv.DB()).Version(); err == nil {
			out.SchemaVersion = v
		}
	}

	var oldest, newest time.Time
	if len(records) > 0 {
		newest = records[0].Date
		oldest = records[len(records)-1].Date
		out.OldestSession = oldest.UTC().Format(time.RFC3339)
		out.NewestSession = newest.UTC().Format(time.RFC3339)
	}

	if c.globals != nil && c.globals.JSON {
		return writeJSON(out)
	}

	fmt.Println("chargebook status")
	fmt.Println("=================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Backend:       %s\n", out.Backend)
	fmt.Printf("Data:          %s (%s)\n", out.Path, humanize.Bytes(uint64(out.SizeBytes)))
	if out.SchemaVersion > 0 {
		fmt.Printf("Schema:        v%d\n", out.SchemaVersion)
	}
	fmt.Printf("Sessions:      %s\n", humanize.Comma(int64(out.TotalSessions)))

	if len(records) > 0 {
		fmt.Printf("Oldest:        %s\n", oldest.In(a.loc).Format("2006-01-02"))
		fmt.Printf("Newest:        %s (%s)\n", newest.In(a.loc).Format("2006-01-02"), humanize.RelTime(newest, a.now(), "ago", "from now"))
	}

	fmt.Println()
	fmt.Printf("Locale:        %s, %s\n", out.Locale, out.Currency)
	fmt.Printf("Extraction:    %s\n", enabled(out.Extraction))
	fmt.Printf("MQTT:          %s\n", enabled(out.MQTT))

	return nil
}

// storageSize returns the size of the persisted data in bytes. Files are
// stat'ed; a SQLite database that has no file reports page_count * page_size;
// anything else reports the length of the stored value.
func storageSize(ctx context.Context, a *app) int64 {
	if info, err := os.Stat(a.where); err == nil {
		return info.Size()
	}

	if kv, ok := a.kv.(*storage.SQLiteKV); ok {
		var pageCount, pageSize int64
		if err := kv.DB().QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
			return 0
		}
		if err := kv.DB().QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
			return 0
		}
		return pageCount * pageSize
	}

	data, ok, err := a.kv.Get(ctx, a.store.Key())
	if err != nil || !ok {
		return 0
	}
	return int64(len(data))
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
