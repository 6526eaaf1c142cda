package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/chargebook/internal/config"
	"github.com/runnerr0/chargebook/internal/extract"
	"github.com/runnerr0/chargebook/internal/log"
	"github.com/runnerr0/chargebook/internal/storage"
)

// testNow is the clock every test app runs at.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Display.Locale = "en"
	cfg.Display.Currency = "USD"
	cfg.Display.Timezone = "UTC"
	cfg.Extraction.TimeoutSeconds = 5
	return cfg
}

// newTestApp builds an app over kv (a fresh MemoryKV when nil) with a fixed clock.
func newTestApp(t *testing.T, kv storage.KV) *app {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	a, err := newApp(context.Background(), testConfig(), log.Discard(), kv, "(memory)")
	require.NoError(t, err)
	a.now = func() time.Time { return testNow }
	t.Cleanup(func() { a.Close() })
	return a
}

// seedKV returns a MemoryKV already holding records under the storage key.
func seedKV(t *testing.T, records ...storage.ChargingRecord) *storage.MemoryKV {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Put(context.Background(), storage.StorageKey, data))
	return kv
}

func record(id string, date time.Time, energy, cost float64) storage.ChargingRecord {
	return storage.ChargingRecord{ID: id, Date: date, EnergyKWh: energy, DurationMinutes: 40, Cost: cost}
}

// writeTestImage writes a file that sniffs as PNG.
func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))
	return path
}

// fakeExtractor returns a canned result or error and counts calls.
type fakeExtractor struct {
	res   extract.Result
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, req extract.Request) (extract.Result, error) {
	f.calls++
	if _, err := extract.DetectMIMEType(req); err != nil {
		return extract.Result{}, err
	}
	return f.res, f.err
}

// brokenKV loads fine and fails every write.
type brokenKV struct {
	storage.MemoryKV
}

func (b *brokenKV) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func ptr[T any](v T) *T { return &v }
