package commands

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/netmon"
)

func CreateInterfacesCommand() *InterfacesCommand {
	return &InterfacesCommand{
		fs: flag.NewFlagSet("interfaces", flag.ExitOnError),
	}
}

// InterfacesCommand lists kernel interfaces with their classification,
// address and derived routing table ID.
type InterfacesCommand struct {
	fs   *flag.FlagSet
	cfg  *config.Config
	deps *core.AppDependencies
}

func (g *InterfacesCommand) Name() string {
	return g.fs.Name()
}

func (g *InterfacesCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	cfg, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.deps = deps

	return nil
}

func (g *InterfacesCommand) Run() error {
	infos, err := netmon.ListInterfaces(g.deps.Netlink())
	if err != nil {
		return fmt.Errorf("failed to list interfaces: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSTATE\tADDRESS\tTABLE\tMANAGED")
	for _, info := range infos {
		table := "-"
		managed := "no"
		if g.cfg.NetworkControl.ManagesInterface(info.Name) {
			table = fmt.Sprintf("%d", g.deps.RoutingManager().TableIDFor(info.Name))
			managed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Name, info.Type, info.State, info.IPString(), table, managed)
	}
	return w.Flush()
}
