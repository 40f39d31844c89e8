package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/domain"
)

func CreateStatusCommand() *StatusCommand {
	return &StatusCommand{
		fs: flag.NewFlagSet("status", flag.ExitOnError),
	}
}

// StatusCommand prints routing and lease status for one interface, or for
// every interface named in the configuration.
type StatusCommand struct {
	fs   *flag.FlagSet
	cfg  *config.Config
	deps *core.AppDependencies

	Interface string
}

func (g *StatusCommand) Name() string {
	return g.fs.Name()
}

func (g *StatusCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	if g.fs.NArg() > 1 {
		return fmt.Errorf("usage: status [IFACE]")
	}
	g.Interface = g.fs.Arg(0)

	cfg, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.deps = deps

	return nil
}

func (g *StatusCommand) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	if g.Interface != "" {
		result, err := g.deps.Manager().HandleCommand(ctx, bus.GetInterfaceStatus{InterfaceName: g.Interface})
		if err != nil {
			return fmt.Errorf("failed to query status: %v", err)
		}
		return printJSON(result)
	}

	// A one-shot process manages nothing, so iterate the configured
	// interfaces instead of the (empty) managed set.
	statuses := make(map[string]domain.InterfaceStatus)
	if g.cfg.NetworkControl != nil {
		for _, name := range g.cfg.NetworkControl.Interfaces {
			for k, v := range g.deps.Manager().Status(name) {
				statuses[k] = v
			}
		}
	}
	return printJSON(statuses)
}
