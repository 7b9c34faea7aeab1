package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/pnl/renderer"
	"github.com/google/subcommands"
)

type realizedCmd struct {
	from, to string
	json     bool
}

func (*realizedCmd) Name() string     { return "realized" }
func (*realizedCmd) Synopsis() string { return "display the realized PnL audit trail of a period" }
func (*realizedCmd) Usage() string {
	return `pnlc realized [-from <date>] [-to <date>] [-json]

  Lists every lot closed during the period with its opening and closing
  prices and the PnL it realized.
`
}

func (c *realizedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "-1y", "First day of the period")
	f.StringVar(&c.to, "to", "0d", "Last day of the period")
	f.BoolVar(&c.json, "json", false, "print JSON lines instead of markdown")
}

func (c *realizedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	trail, warnings, err := a.engine.RealizedTrail(ctx, *account, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing realized trail: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.json {
		enc := json.NewEncoder(os.Stdout)
		for _, rec := range trail {
			if err := enc.Encode(rec); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return subcommands.ExitFailure
			}
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.RenderRealized(renderer.NewRealized(*account, r, trail, warnings, a.config.Currency)))
	return subcommands.ExitSuccess
}
