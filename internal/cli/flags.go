package cli

import (
	"io"

	"github.com/runnerr0/chargebook/internal/extract"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// AddCommand records a charging session. Numeric flags are strings so an
// explicit 0 can be told apart from an unset flag.
type AddCommand struct {
	Energy   string `long:"energy" description:"Energy delivered in kWh"`
	Duration string `long:"duration" description:"Session length in minutes"`
	Cost     string `long:"cost" description:"Amount paid"`
	Balance  string `long:"balance" description:"Card or account balance after the session"`
	Date     string `long:"date" description:"Session date (YYYY-MM-DD, 'YYYY-MM-DD HH:MM' or RFC 3339); default now"`
	Location string `long:"location" description:"Where the car was charged"`
	Notes    string `long:"notes" description:"Free-form notes"`
	Image    string `long:"image" description:"Photo of the charger screen or receipt to pre-fill values from"`

	globals   *GlobalFlags
	version   string
	extractor extract.Client // injectable for testing; nil means build from config
}

// ScanCommand reads values from an image without saving anything.
type ScanCommand struct {
	Image    string `long:"image" description:"Photo of the charger screen or receipt (required)"`
	MIMEType string `long:"mime-type" description:"Image content type; sniffed when omitted"`

	globals   *GlobalFlags
	version   string
	extractor extract.Client
}

// ListCommand prints records newest first.
type ListCommand struct {
	Since string `long:"since" description:"Only sessions on or after a date or within a duration (e.g. 2025-01-01, 30d, 2w)"`
	Until string `long:"until" description:"Only sessions before a date or older than a duration"`
	Limit int    `long:"limit" description:"Maximum results (0 for all)" default:"20"`

	globals *GlobalFlags
	version string
}

// ShowCommand prints one record.
type ShowCommand struct {
	ID string `long:"id" description:"Record ID (required)"`

	globals *GlobalFlags
	version string
}

// DeleteCommand removes one record.
type DeleteCommand struct {
	ID string `long:"id" description:"Record ID (required)"`

	globals *GlobalFlags
	version string
}

// StatsCommand prints the summary, the monthly series and per-month detail.
type StatsCommand struct {
	Months int    `long:"months" description:"Months in the series (default from config)"`
	Ref    string `long:"ref" description:"Last month of the series (YYYY-MM or a date); default now"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows storage health and record statistics.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// PublishCommand pushes the summary and monthly series to MQTT.
type PublishCommand struct {
	Months int `long:"months" description:"Months in the series (default from config)"`

	globals   *GlobalFlags
	version   string
	publisher snapshotPublisher // injectable for testing; nil means connect per config
}

// PurgeCommand deletes every record with a safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	in      io.Reader // confirmation input; nil means stdin
}
