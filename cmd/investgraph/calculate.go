package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/0rShemesh/InvestGraph/internal/client"
)

type calculateCmd struct {
	req      requestFlags
	style    string
	width    int
	markdown bool

	stdout io.Writer
	stderr io.Writer
}

func (*calculateCmd) Name() string     { return "calculate" }
func (*calculateCmd) Synopsis() string { return "simulate monthly purchases of a ticker" }
func (*calculateCmd) Usage() string {
	return `investgraph calculate -ticker <symbol> -amount <n> [-day <1-31>] [-months <n>] [-server <url>]

  Simulates investing a fixed amount every month and prints the
  purchase history with the running profit.
`
}

func (c *calculateCmd) SetFlags(f *flag.FlagSet) {
	c.req.register(f)
	f.StringVar(&c.style, "style", "", "glamour style (dark, light, notty); empty detects the terminal")
	f.IntVar(&c.width, "width", 120, "Word wrap width")
	f.BoolVar(&c.markdown, "markdown", false, "Print raw markdown instead of rendering it")
}

func (c *calculateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stdout, stderr := c.streams()
	if err := c.req.check(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	cl := c.req.client(client.WithStateObserver(func(s client.State) {
		if _, ok := s.(client.Loading); ok {
			fmt.Fprint(stderr, client.Markdown(s))
		}
	}))
	state := cl.Calculate(ctx, c.req.raw())

	out := client.Markdown(state)
	if !c.markdown {
		rendered, err := client.Render(state, c.style, c.width)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		} else {
			out = rendered
		}
	}
	fmt.Fprint(stdout, out)

	if _, failed := state.(client.Failed); failed {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *calculateCmd) streams() (io.Writer, io.Writer) {
	stdout, stderr := c.stdout, c.stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
