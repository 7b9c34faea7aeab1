package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/pnl"
	"github.com/google/subcommands"
)

type closesCmd struct {
	from, to string
}

func (*closesCmd) Name() string     { return "closes" }
func (*closesCmd) Synopsis() string { return "print the official closes a calendar needs" }
func (*closesCmd) Usage() string {
	return `pnlc closes [-from <date>] [-to <date>]

  Prints, in the -closes file format, every official close the calendar of
  the period reads. Closes not available yet are printed as null, ready to
  be filled in and loaded back with -closes.
`
}

func (c *closesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "-1m", "First day of the period")
	f.StringVar(&c.to, "to", "0d", "Last day of the period")
}

func (c *closesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	days, err := a.engine.RequiredCloses(ctx, *account, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing closes: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := pnl.EncodeCloses(os.Stdout, days); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
