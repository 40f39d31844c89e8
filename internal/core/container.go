package core

import (
	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/dhcp"
	"github.com/rgnets/wlanpi-netctl/internal/metrics"
	"github.com/rgnets/wlanpi-netctl/internal/netctl"
	"github.com/rgnets/wlanpi-netctl/internal/netmon"
	"github.com/rgnets/wlanpi-netctl/internal/routing"
)

// AppDependencies is a dependency injection container that holds the agent's
// long-lived collaborators: the netlink handle, the message bus, the routing
// and DHCP managers, the interface monitor and the control core built on top
// of them.
//
// The container keeps construction in one place so commands and components
// get fully wired instances instead of assembling them ad hoc, and so tests
// can substitute fakes at any seam.
type AppDependencies struct {
	netlink routing.Netlink
	bus     *bus.Bus

	routingManager *routing.Manager
	dhcpClient     *dhcp.Client
	monitor        *netmon.Monitor
	manager        *netctl.Manager

	configHasher *config.ConfigHasher
	collector    *metrics.Collector
}

// NewAppDependencies creates a container with production implementations
// wired from the given configuration.
func NewAppDependencies(cfg *config.Config, configPath string) *AppDependencies {
	nl := &routing.KernelNetlink{}
	b := bus.NewBus()

	routingManager := routing.NewManager(nl, cfg.NetworkControl)
	dhcpClient := dhcp.NewClient(cfg.DHCP, dhcp.ExecRunner{})

	var interfaces []string
	if cfg.NetworkControl != nil {
		interfaces = cfg.NetworkControl.Interfaces
	}
	monitor := netmon.NewMonitor(nl, interfaces)

	manager := netctl.NewManager(cfg.NetworkControl, monitor, routingManager, dhcpClient, b)

	return &AppDependencies{
		netlink:        nl,
		bus:            b,
		routingManager: routingManager,
		dhcpClient:     dhcpClient,
		monitor:        monitor,
		manager:        manager,
		configHasher:   config.NewConfigHasher(configPath),
		collector:      metrics.NewCollector(manager, routingManager, b, dhcpClient),
	}
}

// Netlink returns the kernel netlink handle.
func (d *AppDependencies) Netlink() routing.Netlink {
	return d.netlink
}

// Bus returns the agent-wide message bus.
func (d *AppDependencies) Bus() *bus.Bus {
	return d.bus
}

// RoutingManager returns the policy routing manager.
func (d *AppDependencies) RoutingManager() *routing.Manager {
	return d.routingManager
}

// DHCPClient returns the DHCP subprocess driver.
func (d *AppDependencies) DHCPClient() *dhcp.Client {
	return d.dhcpClient
}

// Monitor returns the netlink interface monitor.
func (d *AppDependencies) Monitor() *netmon.Monitor {
	return d.monitor
}

// Manager returns the network control core.
func (d *AppDependencies) Manager() *netctl.Manager {
	return d.manager
}

// ConfigHasher returns the config change tracker.
func (d *AppDependencies) ConfigHasher() *config.ConfigHasher {
	return d.configHasher
}

// Collector returns the Prometheus collector over the live agent state.
func (d *AppDependencies) Collector() *metrics.Collector {
	return d.collector
}
