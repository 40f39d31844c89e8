package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/core"
)

// oneShotTimeout bounds one-shot commands that may wait on a DHCP handshake.
const oneShotTimeout = 60 * time.Second

func CreateConfigureCommand() *ConfigureCommand {
	gc := &ConfigureCommand{
		fs: flag.NewFlagSet("configure", flag.ExitOnError),
	}

	gc.fs.BoolVar(&gc.ForceDHCP, "force-dhcp", false, "Restart the DHCP client even if the interface already has an address")

	return gc
}

// ConfigureCommand sets up policy routing (and DHCP when needed) for one
// interface, then exits.
type ConfigureCommand struct {
	fs   *flag.FlagSet
	deps *core.AppDependencies

	ForceDHCP bool
	Interface string
}

func (g *ConfigureCommand) Name() string {
	return g.fs.Name()
}

func (g *ConfigureCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	if g.fs.NArg() != 1 {
		return fmt.Errorf("usage: configure [-force-dhcp] IFACE")
	}
	g.Interface = g.fs.Arg(0)

	_, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.deps = deps

	return nil
}

func (g *ConfigureCommand) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	result, err := g.deps.Manager().HandleCommand(ctx, bus.ConfigureInterface{
		InterfaceName: g.Interface,
		ForceDHCP:     g.ForceDHCP,
	})
	if err != nil {
		return fmt.Errorf("failed to configure %s: %v", g.Interface, err)
	}

	return printJSON(result)
}

// printJSON writes a command result to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
