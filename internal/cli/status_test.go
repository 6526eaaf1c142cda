package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/chargebook/internal/config"
	"github.com/runnerr0/chargebook/internal/storage"
)

// openStatusSQLite returns a migrated in-memory SQLite KV.
func openStatusSQLite(t *testing.T) *storage.SQLiteKV {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).WithJournalMode("DELETE").Run())

	kv, err := storage.NewSQLiteKV(db)
	require.NoError(t, err)
	return kv
}

func runStatusJSON(t *testing.T, a *app) statusJSON {
	t.Helper()
	cmd := &StatusCommand{globals: &GlobalFlags{JSON: true}, version: "dev"}

	var err error
	output := captureOutput(t, func() { err = cmd.executeWithApp(context.Background(), a) })
	require.NoError(t, err)

	var out statusJSON
	require.NoError(t, json.Unmarshal([]byte(output), &out), "output should be valid JSON: %s", output)
	return out
}

func TestStatus_Empty(t *testing.T) {
	a := newTestApp(t, nil)
	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev"}

	var err error
	output := captureOutput(t, func() { err = cmd.executeWithApp(context.Background(), a) })
	require.NoError(t, err)

	assert.Contains(t, output, "chargebook status")
	assert.Contains(t, output, "Version:       dev")
	assert.Contains(t, output, "Backend:       memory")
	assert.Contains(t, output, "Sessions:      0")
	assert.NotContains(t, output, "Oldest:")
	assert.Contains(t, output, "en, USD")
	assert.Contains(t, output, "Extraction:    enabled")
	assert.Contains(t, output, "MQTT:          disabled")
}

func TestStatus_MemoryWithData(t *testing.T) {
	kv := seedKV(t,
		record("a", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC), 10, 5),
		record("b", time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC), 12, 6),
	)
	stored, ok, err := kv.Get(context.Background(), storage.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	out := runStatusJSON(t, newTestApp(t, kv))
	assert.Equal(t, "dev", out.Version)
	assert.Equal(t, config.BackendMemory, out.Backend)
	assert.Equal(t, 2, out.TotalSessions)
	assert.Equal(t, int64(len(stored)), out.SizeBytes)
	assert.Equal(t, "2025-01-05T08:00:00Z", out.OldestSession)
	assert.Equal(t, "2025-06-14T08:00:00Z", out.NewestSession)
	assert.Zero(t, out.SchemaVersion)
	assert.Equal(t, "USD", out.Currency)
}

func TestStatus_HumanShowsRange(t *testing.T) {
	a := newTestApp(t, seedKV(t,
		record("a", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC), 10, 5),
		record("b", time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC), 12, 6),
	))
	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev"}

	output := captureOutput(t, func() { require.NoError(t, cmd.executeWithApp(context.Background(), a)) })
	assert.Contains(t, output, "Sessions:      2")
	assert.Contains(t, output, "Oldest:        2025-01-05")
	assert.Contains(t, output, "Newest:        2025-06-14")
	assert.Contains(t, output, "ago")
}

func TestStatus_SQLiteReportsSchema(t *testing.T) {
	a := newTestApp(t, openStatusSQLite(t))
	_, err := a.store.Add(context.Background(), storage.Draft{Date: testNow, EnergyKWh: 5, Cost: 3})
	require.NoError(t, err)

	out := runStatusJSON(t, a)
	assert.Equal(t, 1, out.SchemaVersion)
	assert.Equal(t, 1, out.TotalSessions)
	assert.Positive(t, out.SizeBytes)
}

func TestStatus_FileSize(t *testing.T) {
	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)

	a := newTestApp(t, kv)
	a.where = kv.Path(storage.StorageKey)
	_, err = a.store.Add(context.Background(), storage.Draft{Date: testNow, EnergyKWh: 5, Cost: 3})
	require.NoError(t, err)

	stored, _, err := kv.Get(context.Background(), storage.StorageKey)
	require.NoError(t, err)

	out := runStatusJSON(t, a)
	assert.Equal(t, int64(len(stored)), out.SizeBytes)
}
