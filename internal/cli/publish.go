package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/chargebook/internal/publisher"
)

// snapshotPublisher is the part of *publisher.Publisher the command uses.
type snapshotPublisher interface {
	Publish(publisher.Snapshot) error
	Close()
}

// Execute implements the go-flags Commander interface for PublishCommand.
func (c *PublishCommand) Execute(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(a)
}

func (c *PublishCommand) executeWithApp(a *app) error {
	if err := checkMonths(c.Months); err != nil {
		return err
	}

	pub := c.publisher
	if pub == nil {
		p, err := publisher.New(a.cfg.MQTT, a.log)
		if err != nil {
			return err
		}
		pub = p
	}
	defer pub.Close()

	now := a.now()
	summary, series := aggregate(a, now, c.Months)
	snap := publisher.Snapshot{
		Summary:  summary,
		Series:   series,
		Currency: a.unit.String(),
		At:       now,
	}
	if err := pub.Publish(snap); err != nil {
		return err
	}

	if c.globals.JSON {
		return writeJSON(map[string]interface{}{
			"published": true,
			"sessions":  summary.SessionCount,
			"months":    len(series),
		})
	}
	fmt.Printf("Published summary of %d sessions and %d months\n", summary.SessionCount, len(series))
	return nil
}
