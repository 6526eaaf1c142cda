package cli

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/chargebook/internal/extract"
	"github.com/runnerr0/chargebook/internal/storage"
)

func TestAddCommand_BasicSession(t *testing.T) {
	a := newTestApp(t, nil)
	cmd := &AddCommand{
		Energy:   "21.5",
		Duration: "45",
		Cost:     "12.9",
		Balance:  "87.1",
		Date:     "2025-06-01 18:30",
		Location: "Mall P2",
		globals:  &GlobalFlags{},
	}

	var err error
	output := captureOutput(t, func() { err = cmd.executeWithApp(context.Background(), a) })
	require.NoError(t, err)
	assert.Contains(t, output, "Added session")
	assert.Contains(t, output, "21.5 kWh")
	assert.Contains(t, output, "12.9")
	assert.Contains(t, output, "Mall P2")

	records := a.store.Records()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC), r.Date)
	assert.Equal(t, 21.5, r.EnergyKWh)
	assert.Equal(t, 45, r.DurationMinutes)
	assert.Equal(t, 12.9, r.Cost)
	require.NotNil(t, r.Balance)
	assert.Equal(t, 87.1, *r.Balance)

	// Saved, not just held in memory.
	reloaded := storage.NewRecordStore(a.kv).Load(context.Background())
	assert.Equal(t, records, reloaded)
}

func TestAddCommand_DefaultsToNow(t *testing.T) {
	a := newTestApp(t, nil)
	cmd := &AddCommand{Energy: "10", Cost: "5", globals: &GlobalFlags{}}

	captureOutput(t, func() { require.NoError(t, cmd.executeWithApp(context.Background(), a)) })
	records := a.store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, testNow, records[0].Date)
	assert.Nil(t, records[0].Balance)
}

func TestAddCommand_RequiresEnergyAndCost(t *testing.T) {
	a := newTestApp(t, nil)

	for _, cmd := range []*AddCommand{
		{Cost: "5", globals: &GlobalFlags{}},
		{Energy: "5", globals: &GlobalFlags{}},
	} {
		err := cmd.executeWithApp(context.Background(), a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--energy and --cost are required")
	}
	assert.Equal(t, 0, a.store.Len())
}

func TestAddCommand_InvalidValues(t *testing.T) {
	a := newTestApp(t, nil)

	tests := []struct {
		name string
		cmd  AddCommand
		want string
	}{
		{"energy not a number", AddCommand{Energy: "lots", Cost: "1"}, "invalid --energy"},
		{"bad duration", AddCommand{Energy: "1", Cost: "1", Duration: "forever"}, "invalid --duration"},
		{"bad date", AddCommand{Energy: "1", Cost: "1", Date: "yesterday"}, "invalid date"},
		{"negative cost", AddCommand{Energy: "1", Cost: "-3"}, "cost must be"},
		{"negative duration", AddCommand{Energy: "1", Cost: "1", Duration: "-5"}, "duration must be"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := tc.cmd
			cmd.globals = &GlobalFlags{}
			err := cmd.executeWithApp(context.Background(), a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	assert.Equal(t, 0, a.store.Len())
}

func TestAddCommand_ImagePrefill(t *testing.T) {
	a := newTestApp(t, nil)
	fake := &fakeExtractor{res: extract.Result{
		EnergyKWh:       ptr(30.0),
		DurationMinutes: ptr(50),
		Cost:            ptr(21.0),
		Balance:         ptr(29.0),
	}}
	cmd := &AddCommand{Image: writeTestImage(t), globals: &GlobalFlags{}, extractor: fake}

	captureOutput(t, func() { require.NoError(t, cmd.executeWithApp(context.Background(), a)) })
	assert.Equal(t, 1, fake.calls)

	records := a.store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 30.0, records[0].EnergyKWh)
	assert.Equal(t, 50, records[0].DurationMinutes)
	assert.Equal(t, 21.0, records[0].Cost)
	assert.Equal(t, 29.0, *records[0].Balance)
}

func TestAddCommand_ExplicitFlagsWinOverImage(t *testing.T) {
	a := newTestApp(t, nil)
	fake := &fakeExtractor{res: extract.Result{EnergyKWh: ptr(30.0), Cost: ptr(21.0)}}
	cmd := &AddCommand{
		Image:     writeTestImage(t),
		Cost:      "0",
		Balance:   "64",
		globals:   &GlobalFlags{},
		extractor: fake,
	}

	captureOutput(t, func() { require.NoError(t, cmd.executeWithApp(context.Background(), a)) })
	r := a.store.Records()[0]
	assert.Equal(t, 30.0, r.EnergyKWh, "unset flag takes the image value")
	assert.Equal(t, 0.0, r.Cost, "explicit zero is kept")
	assert.Equal(t, 64.0, *r.Balance)
}

func TestAddCommand_ImageFailureFallsBackToFlags(t *testing.T) {
	a := newTestApp(t, nil)
	fake := &fakeExtractor{err: &extract.Error{Op: "request", Err: errors.New("quota exceeded")}}
	cmd := &AddCommand{
		Image:     writeTestImage(t),
		Energy:    "12",
		Cost:      "8",
		globals:   &GlobalFlags{},
		extractor: fake,
	}

	captureOutput(t, func() { require.NoError(t, cmd.executeWithApp(context.Background(), a)) })
	r := a.store.Records()[0]
	assert.Equal(t, 12.0, r.EnergyKWh)
	assert.Equal(t, 8.0, r.Cost)
}

func TestAddCommand_ImageFailureWithoutFlagsAddsNothing(t *testing.T) {
	a := newTestApp(t, nil)
	fake := &fakeExtractor{err: errors.New("connection refused")}
	cmd := &AddCommand{Image: writeTestImage(t), globals: &GlobalFlags{}, extractor: fake}

	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls, "no automatic retry")
	assert.Equal(t, 0, a.store.Len())
}

func TestAddCommand_NothingRecognizedStillNeedsFlags(t *testing.T) {
	a := newTestApp(t, nil)
	fake := &fakeExtractor{res: extract.Result{}}
	cmd := &AddCommand{Image: writeTestImage(t), globals: &GlobalFlags{}, extractor: fake}

	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--energy and --cost are required")
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 0, a.store.Len())
}

func TestAddCommand_PartialImageNeedsMissingFlag(t *testing.T) {
	a := newTestApp(t, nil)
	fake := &fakeExtractor{res: extract.Result{EnergyKWh: ptr(18.0)}}

	cmd := &AddCommand{Image: writeTestImage(t), globals: &GlobalFlags{}, extractor: fake}
	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err, "cost was neither recognized nor given")
	assert.Equal(t, 0, a.store.Len())

	cmd = &AddCommand{Image: writeTestImage(t), Cost: "9.5", globals: &GlobalFlags{}, extractor: fake}
	captureOutput(t, func() { require.NoError(t, cmd.executeWithApp(context.Background(), a)) })
	r := a.store.Records()[0]
	assert.Equal(t, 18.0, r.EnergyKWh)
	assert.Equal(t, 9.5, r.Cost)
}

func TestApp_PrefillerIsShared(t *testing.T) {
	a := newTestApp(t, nil)
	fake := &fakeExtractor{res: extract.Result{EnergyKWh: ptr(5.0), Cost: ptr(2.0)}}

	first, err := a.prefiller(context.Background(), fake)
	require.NoError(t, err)
	// Later callers get the same Prefiller without needing a client or API key.
	second, err := a.prefiller(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	res, err := second.Extract(context.Background(), extract.Request{Image: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")})
	require.NoError(t, err)
	assert.Equal(t, 5.0, *res.EnergyKWh)
	assert.Equal(t, 1, fake.calls)
}

func TestAddCommand_MissingImageFile(t *testing.T) {
	a := newTestApp(t, nil)
	cmd := &AddCommand{
		Image:     filepath.Join(t.TempDir(), "nope.jpg"),
		globals:   &GlobalFlags{},
		extractor: &fakeExtractor{},
	}

	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading image")
}

func TestAddCommand_ExtractionDisabled(t *testing.T) {
	a := newTestApp(t, nil)
	a.cfg.Extraction.Enabled = false
	cmd := &AddCommand{Image: writeTestImage(t), Energy: "3", Cost: "2", globals: &GlobalFlags{}}

	captureOutput(t, func() { require.NoError(t, cmd.executeWithApp(context.Background(), a)) })
	assert.Equal(t, 1, a.store.Len())
}

func TestAddCommand_JSONOutput(t *testing.T) {
	a := newTestApp(t, nil)
	cmd := &AddCommand{Energy: "7.5", Cost: "4", Notes: "slow", globals: &GlobalFlags{JSON: true}}

	var err error
	output := captureOutput(t, func() { err = cmd.executeWithApp(context.Background(), a) })
	require.NoError(t, err)

	var got storage.ChargingRecord
	require.NoError(t, json.Unmarshal([]byte(output), &got), "output should be valid JSON: %s", output)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, 7.5, got.EnergyKWh)
	assert.Equal(t, "slow", got.Notes)
}

func TestAddCommand_WriteFailureSurfaces(t *testing.T) {
	a := newTestApp(t, &brokenKV{})
	cmd := &AddCommand{Energy: "1", Cost: "1", globals: &GlobalFlags{}}

	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrPersistence)
	assert.Contains(t, err.Error(), "was not saved")
}

func TestParseMinutes(t *testing.T) {
	got, err := parseMinutes("45")
	require.NoError(t, err)
	assert.Equal(t, 45, *got)

	got, err = parseMinutes("1h30m")
	require.NoError(t, err)
	assert.Equal(t, 90, *got)

	got, err = parseMinutes("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseMinutes("soon")
	assert.Error(t, err)
}
