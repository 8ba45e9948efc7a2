package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
)

type exportCmd struct {
	req    requestFlags
	format string
	output string

	stderr io.Writer
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "save a simulation as csv, xlsx or a png chart" }
func (*exportCmd) Usage() string {
	return `investgraph export -ticker <symbol> -amount <n> [-format csv|xlsx|png] [-o <file>]

  Runs a simulation on the server and saves the result. The default
  output file is <TICKER>_dca.<format>.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.req.register(f)
	f.StringVar(&c.format, "format", "csv", "Output format: csv, xlsx or png")
	f.StringVar(&c.output, "o", "", "Output file")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stderr := c.stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if err := c.req.check(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	format := strings.ToLower(c.format)
	data, err := c.req.client().Export(ctx, c.req.raw(), format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	output := c.output
	if output == "" {
		output = fmt.Sprintf("%s_dca.%s", strings.ToUpper(strings.TrimSpace(c.req.ticker)), format)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stderr, "Saved %s (%d bytes)\n", output, len(data))
	return subcommands.ExitSuccess
}
