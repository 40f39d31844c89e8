package commands

import (
	"flag"
	"fmt"
	"net"

	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/routing"
)

func CreateResolveCommand() *ResolveCommand {
	return &ResolveCommand{
		fs: flag.NewFlagSet("resolve", flag.ExitOnError),
	}
}

// ResolveCommand resolves a host through an interface's lease DNS servers,
// the same path host-route commands use.
type ResolveCommand struct {
	fs   *flag.FlagSet
	deps *core.AppDependencies

	Host      string
	Interface string
}

func (g *ResolveCommand) Name() string {
	return g.fs.Name()
}

func (g *ResolveCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	if g.fs.NArg() != 2 {
		return fmt.Errorf("usage: resolve HOST IFACE")
	}
	g.Host = g.fs.Arg(0)
	g.Interface = g.fs.Arg(1)

	_, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.deps = deps

	return nil
}

func (g *ResolveCommand) Run() error {
	var localIP net.IP
	if info, err := g.deps.Monitor().InterfaceInfo(g.Interface); err == nil && info.HasIP() {
		localIP = info.IPAddress.IP
	}

	servers := g.deps.DHCPClient().Lease(g.Interface).DNSServers()

	ip, err := routing.ResolveHostViaInterface(g.Host, localIP, servers)
	if err != nil {
		return fmt.Errorf("failed to resolve %s via %s: %v", g.Host, g.Interface, err)
	}

	return printJSON(map[string]interface{}{
		"host":        g.Host,
		"interface":   g.Interface,
		"resolved_ip": ip.String(),
		"dns_servers": servers,
	})
}
