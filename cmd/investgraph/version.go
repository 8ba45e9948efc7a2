package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/0rShemesh/InvestGraph/pkg/contracts"
)

type versionCmd struct {
	stdout io.Writer
}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the client version" }
func (*versionCmd) Usage() string            { return "investgraph version\n" }
func (*versionCmd) SetFlags(f *flag.FlagSet) {}

func (c *versionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w := c.stdout
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintln(w, contracts.GetFullVersionString())
	return subcommands.ExitSuccess
}
