package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
	"github.com/etnz/pnl/renderer"
	"github.com/google/subcommands"
)

type calendarCmd struct {
	from, to string
	json     bool
}

func (*calendarCmd) Name() string     { return "calendar" }
func (*calendarCmd) Synopsis() string { return "display the daily PnL calendar of a period" }
func (*calendarCmd) Usage() string {
	return `pnlc calendar [-from <date>] [-to <date>] [-json]

  Displays one line per trading day: legacy, new and carry PnL, realized and
  unrealized PnL. Days with missing official closes carry no figure and list
  the missing symbols.
`
}

func (c *calendarCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "-1m", "First day of the period. See the user manual for supported date formats.")
	f.StringVar(&c.to, "to", "0d", "Last day of the period")
	f.BoolVar(&c.json, "json", false, "print JSON lines instead of markdown")
}

func (c *calendarCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, err := parseRange(c.from, c.to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing period: %v\n", err)
		return subcommands.ExitUsageError
	}
	a, status := start(ctx)
	if a == nil {
		return status
	}
	defer a.close()

	report, err := a.engine.Calendar(ctx, *account, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing calendar: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.json {
		if err := pnl.EncodeResults(os.Stdout, report.Days); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.RenderCalendar(renderer.NewCalendar(report, a.config.Currency)))
	return subcommands.ExitSuccess
}

// parseRange parses the boundaries of a period.
func parseRange(from, to string) (date.Range, error) {
	f, err := date.Parse(from)
	if err != nil {
		return date.Range{}, err
	}
	t, err := date.Parse(to)
	if err != nil {
		return date.Range{}, err
	}
	r := date.Range{From: f, To: t}
	if r.IsEmpty() {
		return r, fmt.Errorf("period %s is empty", r)
	}
	return r, nil
}
