package netctl

import (
	"context"
	"net"
	"sync"

	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/rgnets/wlanpi-netctl/internal/netmon"
	"github.com/rgnets/wlanpi-netctl/internal/utils"
)

// WPA supplicant states that mean the association is gone. The supplicant
// sees the loss before the kernel drops the link, so these drive the same
// teardown as a netlink link-down, just earlier.
const (
	wpaStateDisconnected      = "disconnected"
	wpaStateInactive          = "inactive"
	wpaStateInterfaceDisabled = "interface_disabled"
	wpaStateCompleted         = "completed"
)

// RoutingManager is the slice of the routing layer the orchestrator drives.
type RoutingManager interface {
	ConfigureInterfaceRouting(iface *domain.InterfaceInfo, gateway net.IP) error
	RemoveInterfaceRouting(name string) (bool, error)
	AddHostRoute(host, ifaceName string, tableID int, dnsServers []string) (net.IP, error)
	RemoveHostRoute(host, ifaceName string, tableID int, dnsServers []string) (net.IP, error)
	FlushRouteTable(tableID int) error
	StartupCleanup() error
	TableIDFor(name string) int
	Status(name string) *domain.RoutingStatus
}

// DHCPClient is the slice of the DHCP layer the orchestrator drives.
type DHCPClient interface {
	StartClient(ctx context.Context, iface string) bool
	StopClient(ctx context.Context, iface string)
	ReleaseLease(ctx context.Context, iface string) bool
	RenewLease(ctx context.Context, iface string) bool
	Lease(iface string) *domain.DHCPLease
	LeaseInfo(iface string) *domain.LeaseInfo
	Cleanup(ctx context.Context)
}

// Monitor is the slice of the netlink monitor the orchestrator consumes.
type Monitor interface {
	Start() error
	Stop()
	AddCallback(name string, cb netmon.Callback)
	RemoveCallback(name string)
	InterfaceInfo(name string) (*domain.InterfaceInfo, error)
}

const callbackName = "netctl-manager"

// Manager coordinates the monitor, the routing manager and the DHCP client
// for the configured interface set. All event handling is serialized by one
// mutex: a netlink event and a supplicant notification for the same interface
// may arrive in either order or concurrently, and every path through here is
// idempotent, so ordering between the two sources does not matter.
type Manager struct {
	cfg     *config.NetworkControlConfig
	monitor Monitor
	routing RoutingManager
	dhcp    DHCPClient
	bus     *bus.Bus

	mu      sync.Mutex
	managed map[string]*domain.InterfaceInfo
	running bool

	wifiCh   <-chan bus.Message
	wifiQuit chan struct{}
	wifiDone chan struct{}
}

// NewManager wires the orchestrator. The bus handle is injected; the manager
// publishes notifications onto it and subscribes to the supplicant's
// disconnect messages when started.
func NewManager(cfg *config.NetworkControlConfig, monitor Monitor, routing RoutingManager, dhcp DHCPClient, b *bus.Bus) *Manager {
	return &Manager{
		cfg:     cfg,
		monitor: monitor,
		routing: routing,
		dhcp:    dhcp,
		bus:     b,
		managed: make(map[string]*domain.InterfaceInfo),
	}
}

// Running reports whether the manager has been started and not yet stopped.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start brings the manager up: crash recovery first, then the monitor, then
// the supplicant subscription, then active discovery of interfaces that are
// already up (an already-up interface never re-fires the events that would
// otherwise configure it).
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	log.Infof("Starting network control for interfaces %v", m.cfg.Interfaces)

	if err := m.routing.StartupCleanup(); err != nil {
		// Orphaned tables are cleaned opportunistically as interfaces
		// reconfigure; a failed sweep is not fatal.
		log.Warnf("Startup routing cleanup failed: %v", err)
	}

	m.monitor.AddCallback(callbackName, m.handleMonitorEvent)
	if err := m.monitor.Start(); err != nil {
		m.monitor.RemoveCallback(callbackName)
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	m.wifiCh = m.bus.Subscribe(64, bus.KindWifiDisconnected, bus.KindWifiStateChanged)
	m.wifiQuit = make(chan struct{})
	m.wifiDone = make(chan struct{})
	go m.wifiLoop(m.wifiCh, m.wifiQuit, m.wifiDone)

	m.DiscoverInterfaces()

	log.Infof("Network control started")
	return nil
}

// Stop shuts the manager down: monitor first so no new events arrive
// mid-teardown, then routing teardown for every managed interface, then the
// DHCP sweep.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	wifiQuit, wifiDone, wifiCh := m.wifiQuit, m.wifiDone, m.wifiCh
	m.mu.Unlock()

	m.monitor.Stop()
	m.monitor.RemoveCallback(callbackName)

	if wifiQuit != nil {
		close(wifiQuit)
		<-wifiDone
		m.bus.Unsubscribe(wifiCh)
	}

	m.mu.Lock()
	names := make([]string, 0, len(m.managed))
	for name := range m.managed {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		if removed, err := m.routing.RemoveInterfaceRouting(name); err != nil {
			log.Warnf("[%s] Routing teardown during shutdown failed: %v", name, err)
		} else if removed {
			m.bus.Publish(bus.RouteRemoved{InterfaceName: name, TableID: m.routing.TableIDFor(name)})
		}
	}

	m.dhcp.Cleanup(context.Background())
	log.Infof("Network control stopped")
}

// DiscoverInterfaces queries current kernel state for every configured
// interface and configures routing for any that are already up with an
// address. Safe to call again at runtime (SIGUSR1 re-sync); missing
// interfaces are hotplug radios that may appear later.
func (m *Manager) DiscoverInterfaces() {
	for _, name := range m.cfg.Interfaces {
		info, err := m.monitor.InterfaceInfo(name)
		if err != nil {
			log.Warnf("[%s] Not present yet, will manage it when it appears", name)
			continue
		}

		m.mu.Lock()
		m.decorate(info)
		m.managed[name] = info
		log.Infof("[%s] Discovered: state=%s ip=%s", name, info.State, info.IPString())

		if info.IsUp() && info.HasIP() {
			m.configureRoutingLocked(info)
		}
		m.mu.Unlock()
	}
}

// ManagedInterfaces returns a snapshot copy of the managed interface map.
func (m *Manager) ManagedInterfaces() map[string]domain.InterfaceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]domain.InterfaceInfo, len(m.managed))
	for name, info := range m.managed {
		out[name] = *info
	}
	return out
}

// decorate fills the fields of a fresh kernel snapshot that only this layer
// knows: the routing table assignment, the lease-derived gateway, and the
// lease-present flag. Caller holds m.mu.
func (m *Manager) decorate(info *domain.InterfaceInfo) {
	info.TableID = m.routing.TableIDFor(info.Name)

	lease := m.dhcp.Lease(info.Name)
	info.HasDHCPLease = lease != nil
	if gw := lease.Gateway(); gw != "" {
		info.Gateway = net.ParseIP(gw)
	}
}

// handleMonitorEvent is the netlink entry point, invoked on the monitor's
// event goroutine.
func (m *Manager) handleMonitorEvent(ev netmon.Event) {
	switch ev.Kind {
	case netmon.EventLinkChanged:
		m.handleLinkChanged(ev.Interface)
	case netmon.EventAddrAdded:
		m.handleAddrAdded(ev.Interface)
	case netmon.EventAddrRemoved:
		m.handleAddrRemoved(ev.Interface)
	case netmon.EventRouteChanged:
		// Route changes are informational; the agent owns its own tables and
		// never reacts to third-party routing churn.
		log.Debugf("Route change observed (iface=%q gw=%v)", ev.InterfaceName, ev.Gateway)
	}
}

func (m *Manager) handleLinkChanged(info *domain.InterfaceInfo) {
	if info == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.managed[info.Name]
	m.decorate(info)
	m.managed[info.Name] = info

	wasUp := prev.IsUp()

	switch {
	case info.IsUp() && !wasUp:
		log.Infof("[%s] Link up", info.Name)
		m.bus.Publish(bus.InterfaceUp{Interface: *info})

		if !info.HasIP() {
			m.triggerDHCPLocked(context.Background(), info)
		} else {
			m.configureRoutingLocked(info)
		}

	case !info.IsUp() && wasUp:
		log.Infof("[%s] Link down", info.Name)
		m.teardownLocked(context.Background(), info)
		m.bus.Publish(bus.InterfaceDown{Interface: *info})

	default:
		log.Debugf("[%s] Link event without state transition (state=%s)", info.Name, info.State)
	}
}

func (m *Manager) handleAddrAdded(info *domain.InterfaceInfo) {
	if info == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.decorate(info)
	m.managed[info.Name] = info

	log.Infof("[%s] Address assigned: %s", info.Name, info.IPString())
	m.bus.Publish(bus.InterfaceAddressAssigned{Interface: *info})

	if info.HasIP() {
		m.configureRoutingLocked(info)
	}
}

func (m *Manager) handleAddrRemoved(info *domain.InterfaceInfo) {
	if info == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.decorate(info)
	m.managed[info.Name] = info

	log.Infof("[%s] Address removed", info.Name)
	m.bus.Publish(bus.InterfaceAddressRemoved{Interface: *info})

	// Routing only: DHCP client state is the link-down/disconnect path's
	// responsibility, and the client may be mid-renegotiation right now.
	m.removeRoutingLocked(info.Name)
}

// wifiLoop consumes supplicant notifications until quit is closed.
func (m *Manager) wifiLoop(ch <-chan bus.Message, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case msg := <-ch:
			m.handleWifiMessage(msg)
		}
	}
}

func (m *Manager) handleWifiMessage(msg bus.Message) {
	switch msg := msg.(type) {
	case bus.WifiDisconnected:
		reason := msg.Reason
		if reason == "" {
			reason = "wifi disconnected"
		}
		m.handleDisconnect(msg.InterfaceName, reason)

	case bus.WifiStateChanged:
		switch msg.State {
		case wpaStateDisconnected, wpaStateInactive, wpaStateInterfaceDisabled:
			m.handleDisconnect(msg.InterfaceName, "wpa state "+msg.State)
		case wpaStateCompleted:
			// Association complete; the upcoming netlink address event
			// drives DHCP and routing, nothing to do here.
		default:
			log.Debugf("[%s] Ignoring wpa state %q", msg.InterfaceName, msg.State)
		}
	}
}

// handleDisconnect is the wireless fast path: the supplicant noticed the loss
// before the kernel did, so tear down now instead of waiting for link-down.
func (m *Manager) handleDisconnect(name, reason string) {
	if !m.cfg.ManagesInterface(name) {
		log.Debugf("[%s] Disconnect for unmanaged interface ignored", name)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log.Infof("[%s] Connectivity lost (%s)", name, reason)

	info := m.managed[name]
	if info == nil {
		info = &domain.InterfaceInfo{Name: name, State: domain.InterfaceStateDown}
		m.managed[name] = info
	}

	m.teardownLocked(context.Background(), info)
	m.bus.Publish(bus.ConnectivityLost{Interface: *info, Reason: reason})
}

// teardownLocked removes routing, stops the DHCP client and clears the
// in-memory address state. Idempotent: running it twice in a row, or from
// the netlink path after the wifi path already ran it, is harmless.
func (m *Manager) teardownLocked(ctx context.Context, info *domain.InterfaceInfo) {
	m.removeRoutingLocked(info.Name)
	m.dhcp.StopClient(ctx, info.Name)

	info.IPAddress = nil
	info.Gateway = nil
	info.HasDHCPLease = false
}

// removeRoutingLocked tears down policy routing, publishing RouteRemoved when
// something was actually removed.
func (m *Manager) removeRoutingLocked(name string) {
	removed, err := m.routing.RemoveInterfaceRouting(name)
	if err != nil {
		log.Warnf("[%s] Routing teardown failed: %v", name, err)
		m.publishError(name, "remove_routing", err)
	}
	if removed {
		m.bus.Publish(bus.RouteRemoved{InterfaceName: name, TableID: m.routing.TableIDFor(name)})
	}
}

// configureRoutingLocked programs policy routing for an interface that has an
// address, using the lease-derived gateway when one is known.
func (m *Manager) configureRoutingLocked(info *domain.InterfaceInfo) {
	if err := m.routing.ConfigureInterfaceRouting(info, info.Gateway); err != nil {
		log.Warnf("[%s] Routing configuration failed: %v", info.Name, err)
		m.publishError(info.Name, "configure_routing", err)
		return
	}
	m.bus.Publish(bus.RouteConfigured{Interface: *info, TableID: info.TableID})
}

// triggerDHCPLocked starts a DHCP negotiation and, on success, refreshes the
// lease-derived fields and publishes DHCPLeaseAcquired. Routing is NOT
// configured here: the kernel's address-assigned event drives that, so the
// address the kernel actually installed is the one routing sees.
func (m *Manager) triggerDHCPLocked(ctx context.Context, info *domain.InterfaceInfo) bool {
	if !m.dhcp.StartClient(ctx, info.Name) {
		m.publishError(info.Name, "dhcp_start", errDHCPFailed(info.Name))
		return false
	}

	lease := m.dhcp.Lease(info.Name)
	info.HasDHCPLease = lease != nil
	if gw := lease.Gateway(); gw != "" {
		info.Gateway = net.ParseIP(gw)
	}

	// The kernel can lag behind a fresh negotiation; trust the leased
	// address until the addr event catches up.
	if !info.HasIP() && lease.FixedIP() != nil {
		if ipnet, err := utils.IPv4ToNetmask(lease.FixedAddress, lease.Option(domain.LeaseOptionSubnetMask)); err == nil {
			info.IPAddress = ipnet
		}
	}

	m.bus.Publish(bus.DHCPLeaseAcquired{Interface: *info, Lease: lease.Flatten()})
	return true
}

func (m *Manager) publishError(name, operation string, err error) {
	m.bus.Publish(bus.NetworkControlError{
		InterfaceName: name,
		Operation:     operation,
		ErrorMessage:  err.Error(),
	})
}
