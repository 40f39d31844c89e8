package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

func CreateTeardownCommand() *TeardownCommand {
	return &TeardownCommand{
		fs: flag.NewFlagSet("teardown", flag.ExitOnError),
	}
}

// TeardownCommand removes an interface's policy routing state and stops its
// DHCP client.
type TeardownCommand struct {
	fs   *flag.FlagSet
	deps *core.AppDependencies

	Interface string
}

func (g *TeardownCommand) Name() string {
	return g.fs.Name()
}

func (g *TeardownCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	if g.fs.NArg() != 1 {
		return fmt.Errorf("usage: teardown IFACE")
	}
	g.Interface = g.fs.Arg(0)

	_, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.deps = deps

	return nil
}

func (g *TeardownCommand) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	if _, err := g.deps.Manager().HandleCommand(ctx, bus.RemoveInterface{InterfaceName: g.Interface}); err != nil {
		return fmt.Errorf("failed to tear down %s: %v", g.Interface, err)
	}

	log.Infof("Interface %s torn down", g.Interface)
	return nil
}
