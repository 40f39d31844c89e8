package commands

import (
	"flag"
	"fmt"

	"github.com/rgnets/wlanpi-netctl/internal/core"
)

func CreateLeaseCommand() *LeaseCommand {
	return &LeaseCommand{
		fs: flag.NewFlagSet("lease", flag.ExitOnError),
	}
}

// LeaseCommand prints the current DHCP lease for an interface, parsed from
// its lease file.
type LeaseCommand struct {
	fs   *flag.FlagSet
	deps *core.AppDependencies

	Interface string
}

func (g *LeaseCommand) Name() string {
	return g.fs.Name()
}

func (g *LeaseCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	if g.fs.NArg() != 1 {
		return fmt.Errorf("usage: lease IFACE")
	}
	g.Interface = g.fs.Arg(0)

	_, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.deps = deps

	return nil
}

func (g *LeaseCommand) Run() error {
	info := g.deps.DHCPClient().LeaseInfo(g.Interface)
	if info == nil {
		return fmt.Errorf("no lease found for %s", g.Interface)
	}
	return printJSON(info)
}
