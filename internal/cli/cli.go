package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Add     *AddCommand
	Scan    *ScanCommand
	List    *ListCommand
	Show    *ShowCommand
	Delete  *DeleteCommand
	Stats   *StatsCommand
	Status  *StatusCommand
	Publish *PublishCommand
	Purge   *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "chargebook"
	parser.LongDescription = "Log EV charging sessions locally and see what they cost, month by month."

	cmds := &commands{
		Add:     &AddCommand{globals: &globals, version: version},
		Scan:    &ScanCommand{globals: &globals, version: version},
		List:    &ListCommand{globals: &globals, version: version},
		Show:    &ShowCommand{globals: &globals, version: version},
		Delete:  &DeleteCommand{globals: &globals, version: version},
		Stats:   &StatsCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Publish: &PublishCommand{globals: &globals, version: version},
		Purge:   &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("add", "Record a charging session", "Record a charging session. Values can be pre-filled from a photo with --image; flags given explicitly always win.", cmds.Add)
	parser.AddCommand("scan", "Read values from a photo", "Read energy, duration, cost and balance from a photo of a charger screen or receipt without saving anything.", cmds.Scan)
	parser.AddCommand("list", "List sessions, newest first", "List recorded sessions, newest first, with optional date filters.", cmds.List)
	parser.AddCommand("show", "Print one session", "Print every field of one recorded session.", cmds.Show)
	parser.AddCommand("delete", "Delete one session", "Delete one recorded session by ID.", cmds.Delete)
	parser.AddCommand("stats", "Show totals and the monthly series", "Show whole-history totals, the monthly cost and energy series, and per-month detail.", cmds.Stats)
	parser.AddCommand("status", "Show storage health and statistics", "Show the storage backend, its size and record statistics.", cmds.Status)
	parser.AddCommand("publish", "Publish aggregates to MQTT", "Publish the summary and monthly series to the configured MQTT broker as retained messages.", cmds.Publish)
	parser.AddCommand("purge", "Delete ALL sessions", "Delete ALL recorded sessions. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the chargebook CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("chargebook %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
