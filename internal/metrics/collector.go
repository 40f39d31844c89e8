// Package metrics exposes the agent's state to Prometheus through a custom
// collector: every scrape reads live manager/bus/DHCP state instead of
// maintaining counters in parallel with it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rgnets/wlanpi-netctl/internal/domain"
)

// ManagerSource is the slice of the control manager the collector scrapes.
type ManagerSource interface {
	Running() bool
	ManagedInterfaces() map[string]domain.InterfaceInfo
}

// RoutingSource reports per-interface routing state.
type RoutingSource interface {
	Status(name string) *domain.RoutingStatus
}

// BusSource reports bus delivery counters.
type BusSource interface {
	Stats() (published, dropped uint64)
	SubscriberCount() int
}

// DHCPSource reports DHCP negotiation counters.
type DHCPSource interface {
	Stats() (starts, failures uint64)
}

// Collector implements prometheus.Collector over the live agent state.
type Collector struct {
	manager ManagerSource
	routing RoutingSource
	bus     BusSource
	dhcp    DHCPSource

	up              *prometheus.Desc
	managedIfaces   *prometheus.Desc
	ifaceConfigured *prometheus.Desc
	tableRoutes     *prometheus.Desc
	shadowRoutes    *prometheus.Desc
	busPublished    *prometheus.Desc
	busDropped      *prometheus.Desc
	busSubscribers  *prometheus.Desc
	dhcpStarts      *prometheus.Desc
	dhcpFailures    *prometheus.Desc
}

// NewCollector creates a collector over the given sources.
func NewCollector(manager ManagerSource, routing RoutingSource, bus BusSource, dhcp DHCPSource) *Collector {
	return &Collector{
		manager: manager,
		routing: routing,
		bus:     bus,
		dhcp:    dhcp,

		up: prometheus.NewDesc(
			"netctl_up",
			"Whether the network control manager is running.",
			nil, nil,
		),
		managedIfaces: prometheus.NewDesc(
			"netctl_managed_interfaces",
			"Managed interfaces by link state.",
			[]string{"state"}, nil,
		),
		ifaceConfigured: prometheus.NewDesc(
			"netctl_interface_routing_configured",
			"Whether policy routing is configured for the interface.",
			[]string{"interface"}, nil,
		),
		tableRoutes: prometheus.NewDesc(
			"netctl_interface_table_routes",
			"Routes currently present in the interface's policy table.",
			[]string{"interface"}, nil,
		),
		shadowRoutes: prometheus.NewDesc(
			"netctl_interface_shadow_routes",
			"Tracked fallback default routes in the main table.",
			[]string{"interface"}, nil,
		),
		busPublished: prometheus.NewDesc(
			"netctl_bus_messages_published_total",
			"Messages published on the internal bus.",
			nil, nil,
		),
		busDropped: prometheus.NewDesc(
			"netctl_bus_messages_dropped_total",
			"Bus deliveries dropped because a subscriber buffer was full.",
			nil, nil,
		),
		busSubscribers: prometheus.NewDesc(
			"netctl_bus_subscribers",
			"Attached bus subscriber channels.",
			nil, nil,
		),
		dhcpStarts: prometheus.NewDesc(
			"netctl_dhcp_negotiations_total",
			"DHCP negotiations started.",
			nil, nil,
		),
		dhcpFailures: prometheus.NewDesc(
			"netctl_dhcp_failures_total",
			"DHCP negotiations that failed.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.managedIfaces
	ch <- c.ifaceConfigured
	ch <- c.tableRoutes
	ch <- c.shadowRoutes
	ch <- c.busPublished
	ch <- c.busDropped
	ch <- c.busSubscribers
	ch <- c.dhcpStarts
	ch <- c.dhcpFailures
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	running := 0.0
	if c.manager.Running() {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, running)

	managed := c.manager.ManagedInterfaces()
	byState := make(map[domain.InterfaceState]int)
	for name, info := range managed {
		byState[info.State]++

		status := c.routing.Status(name)
		configured := 0.0
		if status.Configured {
			configured = 1
		}
		ch <- prometheus.MustNewConstMetric(c.ifaceConfigured, prometheus.GaugeValue, configured, name)
		ch <- prometheus.MustNewConstMetric(c.tableRoutes, prometheus.GaugeValue, float64(status.RouteCount), name)
		ch <- prometheus.MustNewConstMetric(c.shadowRoutes, prometheus.GaugeValue, float64(status.MainTableRoutes), name)
	}
	for _, state := range []domain.InterfaceState{
		domain.InterfaceStateUp, domain.InterfaceStateDown, domain.InterfaceStateUnknown,
	} {
		ch <- prometheus.MustNewConstMetric(c.managedIfaces, prometheus.GaugeValue,
			float64(byState[state]), string(state))
	}

	published, dropped := c.bus.Stats()
	ch <- prometheus.MustNewConstMetric(c.busPublished, prometheus.CounterValue, float64(published))
	ch <- prometheus.MustNewConstMetric(c.busDropped, prometheus.CounterValue, float64(dropped))
	ch <- prometheus.MustNewConstMetric(c.busSubscribers, prometheus.GaugeValue, float64(c.bus.SubscriberCount()))

	starts, failures := c.dhcp.Stats()
	ch <- prometheus.MustNewConstMetric(c.dhcpStarts, prometheus.CounterValue, float64(starts))
	ch <- prometheus.MustNewConstMetric(c.dhcpFailures, prometheus.CounterValue, float64(failures))
}

// Handler returns an HTTP handler serving the collector from a private
// registry, keeping Go runtime metrics out of the scrape.
func Handler(c *Collector) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
