package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/runnerr0/chargebook/internal/log"
	"github.com/runnerr0/chargebook/internal/stats"
)

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLiteFile == "" {
			errs = append(errs, errors.New("storage.sqlite_file is required for the sqlite backend"))
		}
		switch strings.ToLower(c.Storage.SQLiteJournalMode) {
		case "", "wal", "delete", "truncate", "persist", "memory", "off":
		default:
			errs = append(errs, fmt.Errorf("storage.sqlite_journal_mode %q is not a SQLite journal mode", c.Storage.SQLiteJournalMode))
		}
		fallthrough
	case BackendFile:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be one of sqlite, file, memory", c.Storage.Backend))
	}

	if _, err := language.Parse(c.Display.Locale); err != nil {
		errs = append(errs, fmt.Errorf("display.locale %q: %w", c.Display.Locale, err))
	}
	if _, err := currency.ParseISO(c.Display.Currency); err != nil {
		errs = append(errs, fmt.Errorf("display.currency %q: %w", c.Display.Currency, err))
	}
	if _, err := c.Display.Location(); err != nil {
		errs = append(errs, fmt.Errorf("display.timezone: %w", err))
	}
	if c.Display.Months < 0 || c.Display.Months > stats.MaxWindow {
		errs = append(errs, fmt.Errorf("display.months must be between 0 and %d", stats.MaxWindow))
	}

	if c.Extraction.Enabled {
		if c.Extraction.APIKeyEnv == "" {
			errs = append(errs, errors.New("extraction.api_key_env is required when extraction is enabled"))
		}
		if c.Extraction.TimeoutSeconds < 0 {
			errs = append(errs, errors.New("extraction.timeout_seconds must not be negative"))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
			errs = append(errs, fmt.Errorf("mqtt.topic_prefix %q must not contain wildcards", c.MQTT.TopicPrefix))
		}
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}
