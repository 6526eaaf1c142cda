package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/runnerr0/chargebook/internal/config"
	"github.com/runnerr0/chargebook/internal/extract"
	"github.com/runnerr0/chargebook/internal/log"
	"github.com/runnerr0/chargebook/internal/stats"
	"github.com/runnerr0/chargebook/internal/storage"
)

// app is everything a command needs once config is loaded and the store is open.
type app struct {
	cfg     *config.Config
	log     *log.Logger
	kv      storage.KV
	store   *storage.RecordStore
	engine  *stats.Engine
	printer *message.Printer
	unit    currency.Unit
	loc     *time.Location
	where   string // backing file or database, for status output
	now     func() time.Time
	closers []io.Closer

	prefill *extract.Prefiller // built on first use
}

// openApp loads the config named by the global flags, opens the configured
// backend and loads the records.
func openApp(ctx context.Context, globals *GlobalFlags) (*app, error) {
	cfgPath := globals.Config
	if cfgPath == "" {
		p, err := config.ExpandPath(config.DefaultConfigPath)
		if err != nil {
			return nil, err
		}
		cfgPath = p
	}

	cfg, err := config.LoadOrCreateAt(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(cfgPath); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	logger, logFile, err := newLogger(cfg.Logging, globals.Verbose)
	if err != nil {
		return nil, err
	}

	kv, where, err := openKV(cfg.Storage)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}

	a, err := newApp(ctx, cfg, logger, kv, where)
	if err != nil {
		kv.Close()
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}
	if logFile != nil {
		a.closers = append(a.closers, logFile)
	}
	a.log.DebugContext(ctx, "Opened storage",
		log.FieldBackend, cfg.Storage.Backend,
		log.FieldPath, where,
		log.FieldRecords, a.store.Len())
	return a, nil
}

// newApp wires an app around an already-open KV and loads the records.
func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger, kv storage.KV, where string) (*app, error) {
	loc, err := cfg.Display.Location()
	if err != nil {
		return nil, err
	}
	unit, err := currency.ParseISO(cfg.Display.Currency)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", cfg.Display.Currency, err)
	}
	tag, err := language.Parse(cfg.Display.Locale)
	if err != nil {
		tag = language.English
	}

	store := storage.NewRecordStore(kv, storage.WithLogger(logger))
	store.Load(ctx)

	return &app{
		cfg:     cfg,
		log:     logger.WithComponent(log.ComponentCLI),
		kv:      kv,
		store:   store,
		engine:  stats.NewEngine(cfg.Display.Locale, loc),
		printer: message.NewPrinter(tag),
		unit:    unit,
		loc:     loc,
		where:   where,
		now:     time.Now,
	}, nil
}

// Close releases the backend and any log file.
func (a *app) Close() error {
	err := a.kv.Close()
	for _, c := range a.closers {
		c.Close()
	}
	return err
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.LoggingConfig, verbose bool) (*log.Logger, *os.File, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	lc := log.DefaultConfig()
	lc.Level = level

	var file *os.File
	if cfg.File != "" {
		path, err := config.ExpandPath(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		lc.Output = file
	}
	return log.New(lc), file, nil
}

// openKV opens the configured backend and says where its data lives.
func openKV(cfg config.StorageConfig) (storage.KV, string, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryKV(), "(memory)", nil
	case config.BackendFile:
		dir, err := cfg.DataDir()
		if err != nil {
			return nil, "", err
		}
		kv, err := storage.NewFileKV(dir)
		if err != nil {
			return nil, "", err
		}
		return kv, kv.Path(storage.StorageKey), nil
	default:
		path, err := cfg.SQLitePath()
		if err != nil {
			return nil, "", err
		}
		kv, err := storage.OpenSQLiteKV(path, storage.WithSQLiteJournalMode(cfg.SQLiteJournalMode))
		if err != nil {
			return nil, "", err
		}
		return kv, path, nil
	}
}

// newExtractor builds the configured image extraction backend.
func newExtractor(ctx context.Context, cfg config.ExtractionConfig, logger *log.Logger) (extract.Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("image extraction is disabled in config")
	}
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("set %s in the environment or a .env file next to the config to use image extraction", cfg.APIKeyEnv)
	}
	return extract.NewGeminiClient(ctx, extract.GeminiConfig{
		APIKey: key,
		Model:  cfg.Model,
		Logger: logger,
	})
}

// prefiller returns the app's Prefiller, so every extraction made through
// one app shares a single in-flight call per image. client replaces the
// configured backend when the Prefiller is first built.
func (a *app) prefiller(ctx context.Context, client extract.Client) (*extract.Prefiller, error) {
	if a.prefill != nil {
		return a.prefill, nil
	}
	if client == nil {
		var err error
		if client, err = newExtractor(ctx, a.cfg.Extraction, a.log); err != nil {
			return nil, err
		}
	}
	a.prefill = extract.NewPrefiller(client, a.log)
	return a.prefill, nil
}

// checkMonths validates a --months flag; 0 means the configured window.
func checkMonths(n int) error {
	if n < 0 {
		return fmt.Errorf("--months must not be negative")
	}
	if n > stats.MaxWindow {
		return fmt.Errorf("--months must be at most %d", stats.MaxWindow)
	}
	return nil
}

// readImage loads the image at path as an extraction request.
func readImage(path, mimeType string) (extract.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Request{}, fmt.Errorf("reading image: %w", err)
	}
	return extract.Request{Image: data, MIMEType: mimeType}, nil
}

// extractionContext bounds an extraction call by the configured timeout.
func (a *app) extractionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.cfg.Extraction.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// money formats an amount in the configured currency and locale.
func (a *app) money(v float64) string {
	return a.printer.Sprint(currency.Symbol(a.unit.Amount(v)))
}

// balance formats an optional balance.
func (a *app) balance(v *float64) string {
	if v == nil {
		return "-"
	}
	return a.money(*v)
}

// date formats t in the display time zone.
func (a *app) date(t time.Time) string {
	return t.In(a.loc).Format("2006-01-02 15:04")
}

func formatEnergy(kwh float64) string {
	return humanize.CommafWithDigits(kwh, 2) + " kWh"
}

func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

// shortID trims a UUID to its first group for tables.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAmount parses an optional numeric flag. An empty value is unset.
func parseAmount(flag, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value %q", flag, s)
	}
	return &v, nil
}

var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDate accepts RFC 3339, or a local date with an optional time of day.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD, 'YYYY-MM-DD HH:MM' or RFC 3339)", s)
}

// parseMonth accepts YYYY-MM or anything parseDate does.
func parseMonth(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(stats.PeriodLayout, strings.TrimSpace(s), loc); err == nil {
		return t, nil
	}
	return parseDate(s, loc)
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// parseBound turns a --since/--until value into an instant: a duration
// counts back from now, anything else must be a date.
func parseBound(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if d, err := parseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	return parseDate(s, loc)
}
