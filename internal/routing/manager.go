package routing

import (
	"fmt"
	"net"
	"sync"

	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/errors"
	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/rgnets/wlanpi-netctl/internal/utils"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Manager owns per-interface policy routing: one routing table per interface
// plus the pair of rules steering that interface's traffic into it.
//
// Every mutation is idempotent (exists-check before add) so events replayed
// by the monitor or commands repeated over the API converge instead of
// erroring. Shadow default routes added to the main table are tracked as
// exact tuples and only those tuples are removed on teardown; routes the
// agent did not add are never touched.
type Manager struct {
	nl      Netlink
	cfg     *config.NetworkControlConfig
	resolve HostResolver

	mu         sync.Mutex
	tableIDs   map[string]int
	configured map[string]bool
	mainRoutes map[string][]*netlink.Route
}

// NewManager creates a routing manager on top of the given netlink handle.
func NewManager(nl Netlink, cfg *config.NetworkControlConfig) *Manager {
	return &Manager{
		nl:         nl,
		cfg:        cfg,
		resolve:    ResolveHostViaInterface,
		tableIDs:   make(map[string]int),
		configured: make(map[string]bool),
		mainRoutes: make(map[string][]*netlink.Route),
	}
}

// TableIDFor returns the routing table assigned to the interface.
func (m *Manager) TableIDFor(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tableIDForLocked(name)
}

func (m *Manager) tableIDForLocked(name string) int {
	if id, ok := m.tableIDs[name]; ok {
		return id
	}
	id := DeriveTableID(name, m.cfg.GetBaseTableID())
	m.tableIDs[name] = id
	log.Debugf("[%s] Assigned routing table %d", name, id)
	return id
}

// ConfigureInterfaceRouting sets up policy routing for an interface that has
// an address: subnet route and default route in its own table, a shadow
// default route in the main table, and the rule pair steering traffic.
// A missing gateway skips both default routes (subnet-only configuration).
func (m *Manager) ConfigureInterfaceRouting(iface *domain.InterfaceInfo, gateway net.IP) error {
	if !iface.HasIP() {
		return errors.NewRoutingError(fmt.Sprintf("interface %s has no IP address", iface.Name), nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.tableIDForLocked(iface.Name)
	subnet := utils.NetworkOf(iface.IPAddress)

	log.Infof("[%s] Configuring policy routing (table %d)", iface.Name, table)

	added, err := BuildSubnetRoute(m.nl, subnet, iface.Index, iface.IPAddress.IP, table).AddIfNotExists()
	if err != nil {
		return errors.NewRoutingError(fmt.Sprintf("failed to add subnet route for %s", iface.Name), err)
	}
	if added {
		log.Infof("[%s] Added subnet route %s to table %d", iface.Name, subnet, table)
	}

	if gateway != nil {
		added, err = BuildDefaultRoute(m.nl, gateway, iface.Index, table, 0).AddIfNotExists()
		if err != nil {
			return errors.NewRoutingError(fmt.Sprintf("failed to add default route for %s", iface.Name), err)
		}
		if added {
			log.Infof("[%s] Added default route via %s to table %d", iface.Name, gateway, table)
		}

		// Main table shadow is best effort: policy routing works without
		// it, it only helps locally originated traffic.
		m.ensureMainShadowLocked(iface, gateway)
	} else {
		log.Debugf("[%s] No gateway known, skipping default routes", iface.Name)
	}

	src := utils.HostPrefix(iface.IPAddress.IP)
	added, err = BuildSrcRule(m.nl, src, table, table).AddIfNotExists()
	if err != nil {
		return errors.NewRoutingError(fmt.Sprintf("failed to add source rule for %s", iface.Name), err)
	}
	if added {
		log.Infof("[%s] Added rule from %s lookup %d (prio %d)", iface.Name, src, table, table)
	}

	added, err = BuildDstRule(m.nl, subnet, table, table+1).AddIfNotExists()
	if err != nil {
		return errors.NewRoutingError(fmt.Sprintf("failed to add destination rule for %s", iface.Name), err)
	}
	if added {
		log.Infof("[%s] Added rule to %s lookup %d (prio %d)", iface.Name, subnet, table, table+1)
	}

	m.configured[iface.Name] = true
	log.Infof("[%s] Policy routing configured (table %d)", iface.Name, table)
	return nil
}

// ensureMainShadowLocked adds a low-priority default route to the main table
// so locally originated traffic can use the interface. The exact tuple is
// remembered for teardown. Failures only warn.
func (m *Manager) ensureMainShadowLocked(iface *domain.InterfaceInfo, gateway net.IP) {
	metric := m.mainRouteMetricLocked()
	route := BuildDefaultRoute(m.nl, gateway, iface.Index, unix.RT_TABLE_MAIN, metric)

	added, err := route.AddIfNotExists()
	if err != nil {
		log.Warnf("[%s] Failed to add main table default route via %s (metric %d): %v",
			iface.Name, gateway, metric, err)
		return
	}
	if added {
		log.Infof("[%s] Added main table default route via %s (metric %d)", iface.Name, gateway, metric)
		m.mainRoutes[iface.Name] = append(m.mainRoutes[iface.Name], route.Route)
	}
}

// mainRouteMetricLocked picks a metric strictly worse than every default
// route already in the main table, so the shadow never preempts the
// appliance's primary uplink.
func (m *Manager) mainRouteMetricLocked() int {
	routes, err := m.nl.RouteListFiltered(netlink.FAMILY_V4,
		&netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		fallback := m.cfg.GetFallbackMetric()
		log.Warnf("Failed to scan main table, using fallback metric %d: %v", fallback, err)
		return fallback
	}

	lowest := -1
	for i := range routes {
		if dstKey(routes[i].Dst) != "default" {
			continue
		}
		if lowest == -1 || routes[i].Priority < lowest {
			lowest = routes[i].Priority
		}
	}
	if lowest == -1 {
		lowest = defaultRouteMetric
	}
	return lowest + m.cfg.GetMetricOffset()
}

// RemoveInterfaceRouting tears down everything ConfigureInterfaceRouting set
// up. Returns false when the interface has no routing configured, which is
// an expected outcome, not an error. Teardown continues past individual
// failures so a half-removed state still converges.
func (m *Manager) RemoveInterfaceRouting(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.configured[name] {
		log.Debugf("[%s] Routing not configured, nothing to remove", name)
		return false, nil
	}

	table := m.tableIDForLocked(name)
	log.Infof("[%s] Removing policy routing (table %d)", name, table)

	var firstErr error
	for _, prio := range []int{table, table + 1} {
		if _, err := BuildBareRule(m.nl, table, prio).DelIfExists(); err != nil {
			log.Warnf("[%s] Failed to delete rule priority %d: %v", name, prio, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := FlushTable(m.nl, table); err != nil {
		log.Warnf("[%s] Failed to flush table %d: %v", name, table, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, route := range m.mainRoutes[name] {
		shadow := &IPRoute{Route: route, nl: m.nl}
		if _, err := shadow.DelIfExists(); err != nil {
			log.Warnf("[%s] Failed to delete main table default route: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	delete(m.mainRoutes, name)
	delete(m.configured, name)
	delete(m.tableIDs, name)

	if firstErr != nil {
		return true, errors.NewRoutingError(fmt.Sprintf("routing teardown for %s completed with errors", name), firstErr)
	}
	log.Infof("[%s] Policy routing removed (table %d)", name, table)
	return true, nil
}

// AddHostRoute resolves host (IP literal or FQDN) through the interface's
// DNS servers and pins a host route to the interface. tableID zero selects
// the interface's own table.
func (m *Manager) AddHostRoute(host, ifaceName string, tableID int, dnsServers []string) (net.IP, error) {
	link, localIP, err := m.lookupLinkAndSource(ifaceName)
	if err != nil {
		return nil, err
	}

	ip, err := m.resolve(host, localIP, dnsServers)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table := tableID
	if table == 0 {
		table = m.tableIDForLocked(ifaceName)
	}

	route := BuildHostRoute(m.nl, ip, link.Attrs().Index, localIP, table)
	added, err := route.AddIfNotExists()
	if err != nil {
		return nil, errors.NewRoutingError(fmt.Sprintf("failed to add host route %s -> %s", host, ip), err)
	}
	if added {
		log.Infof("[%s] Added host route %s (%s) to table %d", ifaceName, host, ip, table)
	} else {
		log.Debugf("[%s] Host route %s (%s) already in table %d", ifaceName, host, ip, table)
	}
	return ip, nil
}

// RemoveHostRoute removes a host route previously added with AddHostRoute.
func (m *Manager) RemoveHostRoute(host, ifaceName string, tableID int, dnsServers []string) (net.IP, error) {
	link, localIP, err := m.lookupLinkAndSource(ifaceName)
	if err != nil {
		return nil, err
	}

	ip, err := m.resolve(host, localIP, dnsServers)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table := tableID
	if table == 0 {
		table = m.tableIDForLocked(ifaceName)
	}

	route := BuildHostRoute(m.nl, ip, link.Attrs().Index, localIP, table)
	deleted, err := route.DelIfExists()
	if err != nil {
		return nil, errors.NewRoutingError(fmt.Sprintf("failed to remove host route %s -> %s", host, ip), err)
	}
	if deleted {
		log.Infof("[%s] Removed host route %s (%s) from table %d", ifaceName, host, ip, table)
	} else {
		log.Debugf("[%s] Host route %s (%s) not present in table %d", ifaceName, host, ip, table)
	}
	return ip, nil
}

func (m *Manager) lookupLinkAndSource(ifaceName string) (netlink.Link, net.IP, error) {
	link, err := m.nl.LinkByName(ifaceName)
	if err != nil {
		return nil, nil, errors.NewInterfaceError(fmt.Sprintf("interface %s not found", ifaceName), err)
	}

	localIP := m.preferredSourceIP(link)
	if localIP == nil {
		return nil, nil, errors.NewInterfaceError(fmt.Sprintf("interface %s has no usable IPv4 address", ifaceName), nil)
	}
	return link, localIP, nil
}

// preferredSourceIP picks the first non-link-local IPv4 address on the link.
func (m *Manager) preferredSourceIP(link netlink.Link) net.IP {
	addrs, err := m.nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		log.Warnf("Failed to list addresses for %s: %v", link.Attrs().Name, err)
		return nil
	}
	for _, addr := range addrs {
		if addr.IP == nil || utils.IsLinkLocal(addr.IP) {
			continue
		}
		if v4 := addr.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// FlushRouteTable removes every route from one table.
func (m *Manager) FlushRouteTable(tableID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := FlushTable(m.nl, tableID); err != nil {
		return errors.NewRoutingError(fmt.Sprintf("failed to flush table %d", tableID), err)
	}
	log.Infof("Flushed routing table %d", tableID)
	return nil
}

// StartupCleanup removes rules and routes left over from a previous run.
// Table assignment is deterministic, so everything inside the managed range
// belongs to this agent. Shadow routes in the main table are not recovered;
// their tracking is in-memory only and the main table is never scanned
// destructively.
func (m *Manager) StartupCleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.cfg.GetBaseTableID()
	span := config.TableIDSpan

	log.Infof("Cleaning up stale policy routing state (tables %d-%d)", base, base+span-1)

	rules, err := ListRulesInRange(m.nl, base, span)
	if err != nil {
		return errors.NewRoutingError("failed to list policy rules", err)
	}
	removedRules := 0
	for _, rule := range rules {
		if err := rule.Del(); err != nil {
			log.Warnf("Failed to delete stale rule [%v]: %v", rule, err)
			continue
		}
		removedRules++
	}

	routes, err := ListRoutesInRange(m.nl, base, span)
	if err != nil {
		return errors.NewRoutingError("failed to dump routing tables", err)
	}
	removedRoutes := 0
	for _, route := range routes {
		if err := route.Del(); err != nil {
			log.Warnf("Failed to delete stale route [%v]: %v", route, err)
			continue
		}
		removedRoutes++
	}

	if removedRules > 0 || removedRoutes > 0 {
		log.Infof("Startup cleanup removed %d rules and %d routes", removedRules, removedRoutes)
	} else {
		log.Debugf("Startup cleanup found no stale routing state")
	}
	return nil
}

// Status reports the routing state of one interface.
func (m *Manager) Status(name string) *domain.RoutingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.tableIDForLocked(name)
	status := &domain.RoutingStatus{
		Configured:      m.configured[name],
		TableID:         table,
		MainTableRoutes: len(m.mainRoutes[name]),
	}
	if routes, err := ListRoutesInTable(m.nl, table); err == nil {
		status.RouteCount = len(routes)
	}
	return status
}

// IsConfigured reports whether policy routing is currently in place for the
// interface.
func (m *Manager) IsConfigured(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configured[name]
}

// ConfiguredInterfaces returns the interfaces with routing currently applied.
func (m *Manager) ConfiguredInterfaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.configured))
	for name := range m.configured {
		names = append(names, name)
	}
	return names
}

// SetResolver overrides hostname resolution.
func (m *Manager) SetResolver(resolve HostResolver) {
	m.resolve = resolve
}
