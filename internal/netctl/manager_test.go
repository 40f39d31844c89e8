package netctl

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/netmon"
)

type fakeRouting struct {
	mu         sync.Mutex
	configured map[string]net.IP
	removed    []string
	flushed    []int
	cleanups   int
}

func newFakeRouting() *fakeRouting {
	return &fakeRouting{configured: make(map[string]net.IP)}
}

func (f *fakeRouting) ConfigureInterfaceRouting(iface *domain.InterfaceInfo, gateway net.IP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured[iface.Name] = gateway
	return nil
}

func (f *fakeRouting) RemoveInterfaceRouting(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	if _, ok := f.configured[name]; !ok {
		return false, nil
	}
	delete(f.configured, name)
	return true, nil
}

func (f *fakeRouting) AddHostRoute(host, iface string, tableID int, dns []string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4(), nil
	}
	return nil, fmt.Errorf("cannot resolve %q", host)
}

func (f *fakeRouting) RemoveHostRoute(host, iface string, tableID int, dns []string) (net.IP, error) {
	return f.AddHostRoute(host, iface, tableID, dns)
}

func (f *fakeRouting) FlushRouteTable(tableID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, tableID)
	return nil
}

func (f *fakeRouting) StartupCleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return nil
}

func (f *fakeRouting) TableIDFor(name string) int { return 1100 }

func (f *fakeRouting) Status(name string) *domain.RoutingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, configured := f.configured[name]
	return &domain.RoutingStatus{Configured: configured, TableID: 1100}
}

func (f *fakeRouting) gatewayFor(name string) net.IP {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured[name]
}

func (f *fakeRouting) isConfigured(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.configured[name]
	return ok
}

type fakeDHCP struct {
	mu       sync.Mutex
	startOK  bool
	leases   map[string]*domain.DHCPLease
	started  []string
	stopped  []string
	cleanups int
}

func newFakeDHCP() *fakeDHCP {
	return &fakeDHCP{startOK: true, leases: make(map[string]*domain.DHCPLease)}
}

func (f *fakeDHCP) setLease(iface, addr, gateway string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leases[iface] = &domain.DHCPLease{
		Interface:    iface,
		FixedAddress: addr,
		Options:      map[string]string{domain.LeaseOptionRouters: gateway},
	}
}

func (f *fakeDHCP) StartClient(ctx context.Context, iface string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, iface)
	return f.startOK
}

func (f *fakeDHCP) StopClient(ctx context.Context, iface string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, iface)
}

func (f *fakeDHCP) ReleaseLease(ctx context.Context, iface string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.leases, iface)
	return true
}

func (f *fakeDHCP) RenewLease(ctx context.Context, iface string) bool { return true }

func (f *fakeDHCP) Lease(iface string) *domain.DHCPLease {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leases[iface]
}

func (f *fakeDHCP) LeaseInfo(iface string) *domain.LeaseInfo {
	return f.Lease(iface).Flatten()
}

func (f *fakeDHCP) Cleanup(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
}

func (f *fakeDHCP) startCount(iface string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, name := range f.started {
		if name == iface {
			n++
		}
	}
	return n
}

type fakeMonitor struct {
	mu        sync.Mutex
	callbacks map[string]netmon.Callback
	infos     map[string]*domain.InterfaceInfo
	running   bool
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{
		callbacks: make(map[string]netmon.Callback),
		infos:     make(map[string]*domain.InterfaceInfo),
	}
}

func (f *fakeMonitor) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeMonitor) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeMonitor) AddCallback(name string, cb netmon.Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[name] = cb
}

func (f *fakeMonitor) RemoveCallback(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.callbacks, name)
}

func (f *fakeMonitor) InterfaceInfo(name string) (*domain.InterfaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.infos[name]; ok {
		copied := *info
		return &copied, nil
	}
	return nil, fmt.Errorf("interface %s not found", name)
}

func (f *fakeMonitor) setInfo(info *domain.InterfaceInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[info.Name] = info
}

// fire dispatches an event through every registered callback, the way the
// real monitor's event goroutine would.
func (f *fakeMonitor) fire(ev netmon.Event) {
	f.mu.Lock()
	cbs := make([]netmon.Callback, 0, len(f.callbacks))
	for _, cb := range f.callbacks {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

type harness struct {
	mgr     *Manager
	routing *fakeRouting
	dhcp    *fakeDHCP
	monitor *fakeMonitor
	bus     *bus.Bus
	events  <-chan bus.Message
}

func newHarness(t *testing.T, kinds ...bus.Kind) *harness {
	t.Helper()

	h := &harness{
		routing: newFakeRouting(),
		dhcp:    newFakeDHCP(),
		monitor: newFakeMonitor(),
		bus:     bus.NewBus(),
	}
	cfg := &config.NetworkControlConfig{Interfaces: []string{"wlan0", "eth0"}}
	h.mgr = NewManager(cfg, h.monitor, h.routing, h.dhcp, h.bus)
	h.events = h.bus.Subscribe(64, kinds...)

	if err := h.mgr.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(h.mgr.Stop)
	return h
}

func (h *harness) nextEvent(t *testing.T) bus.Message {
	t.Helper()
	select {
	case msg := <-h.events:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
		return nil
	}
}

func (h *harness) noEvent(t *testing.T) {
	t.Helper()
	select {
	case msg := <-h.events:
		t.Fatalf("unexpected message %s", msg.Kind())
	case <-time.After(100 * time.Millisecond):
	}
}

func upInterface(name string, index int, cidr string) *domain.InterfaceInfo {
	info := &domain.InterfaceInfo{
		Name:  name,
		Index: index,
		State: domain.InterfaceStateUp,
		Type:  domain.InterfaceTypeWireless,
	}
	if cidr != "" {
		ip, ipNet, _ := net.ParseCIDR(cidr)
		info.IPAddress = &net.IPNet{IP: ip, Mask: ipNet.Mask}
	}
	return info
}

func TestStartRunsCrashRecovery(t *testing.T) {
	h := newHarness(t)
	if h.routing.cleanups != 1 {
		t.Errorf("StartupCleanup ran %d times, want 1", h.routing.cleanups)
	}
	if !h.monitor.running {
		t.Error("monitor not started")
	}
	if !h.mgr.Running() {
		t.Error("Running() = false after Start")
	}
}

func TestDiscoveryConfiguresAlreadyUpInterface(t *testing.T) {
	routing := newFakeRouting()
	dhcp := newFakeDHCP()
	monitor := newFakeMonitor()
	b := bus.NewBus()

	monitor.setInfo(upInterface("wlan0", 3, "192.168.1.50/24"))
	dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	cfg := &config.NetworkControlConfig{Interfaces: []string{"wlan0"}}
	mgr := NewManager(cfg, monitor, routing, dhcp, b)
	events := b.Subscribe(16, bus.KindRouteConfigured)

	if err := mgr.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer mgr.Stop()

	select {
	case msg := <-events:
		rc := msg.(bus.RouteConfigured)
		if rc.Interface.Name != "wlan0" {
			t.Errorf("RouteConfigured for %q, want wlan0", rc.Interface.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("no RouteConfigured after discovery of an up interface")
	}

	if gw := routing.gatewayFor("wlan0"); gw == nil || gw.String() != "192.168.1.1" {
		t.Errorf("configured gateway = %v, want 192.168.1.1 from the lease", gw)
	}
}

func TestLinkUpWithoutAddressTriggersDHCP(t *testing.T) {
	h := newHarness(t, bus.KindInterfaceUp, bus.KindDHCPLeaseAcquired)

	h.monitor.fire(netmon.Event{
		Kind:          netmon.EventLinkChanged,
		Interface:     upInterface("wlan0", 3, ""),
		InterfaceName: "wlan0",
	})

	if msg := h.nextEvent(t); msg.Kind() != bus.KindInterfaceUp {
		t.Fatalf("first message %s, want interface_up", msg.Kind())
	}
	if msg := h.nextEvent(t); msg.Kind() != bus.KindDHCPLeaseAcquired {
		t.Fatalf("second message %s, want dhcp_lease_acquired", msg.Kind())
	}
	if h.dhcp.startCount("wlan0") != 1 {
		t.Errorf("DHCP started %d times, want 1", h.dhcp.startCount("wlan0"))
	}
}

func TestAddressAssignedConfiguresRouting(t *testing.T) {
	h := newHarness(t, bus.KindInterfaceAddressAssigned, bus.KindRouteConfigured)
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	h.monitor.fire(netmon.Event{
		Kind:          netmon.EventAddrAdded,
		Interface:     upInterface("wlan0", 3, "192.168.1.50/24"),
		InterfaceName: "wlan0",
	})

	if msg := h.nextEvent(t); msg.Kind() != bus.KindInterfaceAddressAssigned {
		t.Fatalf("first message %s, want interface_address_assigned", msg.Kind())
	}

	msg := h.nextEvent(t)
	rc, ok := msg.(bus.RouteConfigured)
	if !ok {
		t.Fatalf("second message %T, want RouteConfigured", msg)
	}
	if rc.Interface.GatewayString() != "192.168.1.1" {
		t.Errorf("RouteConfigured gateway = %q, want 192.168.1.1", rc.Interface.GatewayString())
	}
	if gw := h.routing.gatewayFor("wlan0"); gw == nil || gw.String() != "192.168.1.1" {
		t.Errorf("routing configured with gateway %v, want 192.168.1.1", gw)
	}
}

func TestLinkDownTearsDown(t *testing.T) {
	h := newHarness(t, bus.KindInterfaceDown, bus.KindRouteRemoved)
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	// Bring it up first.
	h.monitor.fire(netmon.Event{
		Kind:      netmon.EventAddrAdded,
		Interface: upInterface("wlan0", 3, "192.168.1.50/24"),
	})
	h.monitor.fire(netmon.Event{
		Kind:      netmon.EventLinkChanged,
		Interface: upInterface("wlan0", 3, "192.168.1.50/24"),
	})

	down := &domain.InterfaceInfo{Name: "wlan0", Index: 3, State: domain.InterfaceStateDown}
	h.monitor.fire(netmon.Event{Kind: netmon.EventLinkChanged, Interface: down})

	if msg := h.nextEvent(t); msg.Kind() != bus.KindRouteRemoved {
		t.Fatalf("first message %s, want route_removed", msg.Kind())
	}
	if msg := h.nextEvent(t); msg.Kind() != bus.KindInterfaceDown {
		t.Fatalf("second message %s, want interface_down", msg.Kind())
	}

	if h.routing.isConfigured("wlan0") {
		t.Error("routing still configured after link-down")
	}
	if len(h.dhcp.stopped) == 0 {
		t.Error("DHCP client not stopped on link-down")
	}
}

func TestAddressRemovedTearsDownRoutingOnly(t *testing.T) {
	h := newHarness(t, bus.KindInterfaceAddressRemoved, bus.KindRouteRemoved)
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	h.monitor.fire(netmon.Event{
		Kind:      netmon.EventAddrAdded,
		Interface: upInterface("wlan0", 3, "192.168.1.50/24"),
	})

	stopsBefore := len(h.dhcp.stopped)
	h.monitor.fire(netmon.Event{
		Kind:      netmon.EventAddrRemoved,
		Interface: upInterface("wlan0", 3, ""),
	})

	if msg := h.nextEvent(t); msg.Kind() != bus.KindInterfaceAddressRemoved {
		t.Fatalf("first message %s, want interface_address_removed", msg.Kind())
	}
	if msg := h.nextEvent(t); msg.Kind() != bus.KindRouteRemoved {
		t.Fatalf("second message %s, want route_removed", msg.Kind())
	}

	if len(h.dhcp.stopped) != stopsBefore {
		t.Error("address-removed must not stop the DHCP client")
	}
}

func TestWifiDisconnectFastPath(t *testing.T) {
	h := newHarness(t, bus.KindConnectivityLost)
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	h.monitor.fire(netmon.Event{
		Kind:      netmon.EventAddrAdded,
		Interface: upInterface("wlan0", 3, "192.168.1.50/24"),
	})

	h.bus.Publish(bus.WifiDisconnected{InterfaceName: "wlan0"})

	msg := h.nextEvent(t)
	lost, ok := msg.(bus.ConnectivityLost)
	if !ok {
		t.Fatalf("message %T, want ConnectivityLost", msg)
	}
	if lost.Interface.Name != "wlan0" {
		t.Errorf("ConnectivityLost for %q, want wlan0", lost.Interface.Name)
	}
	if lost.Interface.HasIP() || lost.Interface.Gateway != nil || lost.Interface.HasDHCPLease {
		t.Errorf("ConnectivityLost fields not reset: ip=%q gw=%q lease=%v",
			lost.Interface.IPString(), lost.Interface.GatewayString(), lost.Interface.HasDHCPLease)
	}

	h.noEvent(t)

	if h.routing.isConfigured("wlan0") {
		t.Error("routing still configured after wifi disconnect")
	}
}

func TestWifiStateChangeFiltering(t *testing.T) {
	tests := []struct {
		state string
		want  int
	}{
		{"disconnected", 1},
		{"inactive", 1},
		{"interface_disabled", 1},
		{"completed", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			h := newHarness(t, bus.KindConnectivityLost)

			h.bus.Publish(bus.WifiStateChanged{InterfaceName: "wlan0", State: tt.state})

			if tt.want == 0 {
				h.noEvent(t)
				return
			}
			if msg := h.nextEvent(t); msg.Kind() != bus.KindConnectivityLost {
				t.Fatalf("message %s, want connectivity_lost", msg.Kind())
			}
			h.noEvent(t)
		})
	}
}

func TestDisconnectForUnmanagedInterfaceIgnored(t *testing.T) {
	h := newHarness(t, bus.KindConnectivityLost)

	h.bus.Publish(bus.WifiDisconnected{InterfaceName: "wlan9"})
	h.noEvent(t)
}

func TestDoubleDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t, bus.KindConnectivityLost)

	h.bus.Publish(bus.WifiDisconnected{InterfaceName: "wlan0"})
	h.nextEvent(t)

	// Second disconnect (or a late link-down) finds nothing to tear down
	// but still reports the loss.
	h.bus.Publish(bus.WifiDisconnected{InterfaceName: "wlan0"})
	if msg := h.nextEvent(t); msg.Kind() != bus.KindConnectivityLost {
		t.Fatalf("message %s, want connectivity_lost", msg.Kind())
	}
}

func TestStopTearsEverythingDown(t *testing.T) {
	h := newHarness(t)
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	h.monitor.fire(netmon.Event{
		Kind:      netmon.EventAddrAdded,
		Interface: upInterface("wlan0", 3, "192.168.1.50/24"),
	})

	h.mgr.Stop()

	if h.monitor.running {
		t.Error("monitor still running after Stop")
	}
	if h.routing.isConfigured("wlan0") {
		t.Error("routing still configured after Stop")
	}
	if h.dhcp.cleanups != 1 {
		t.Errorf("DHCP Cleanup ran %d times, want 1", h.dhcp.cleanups)
	}
	if h.mgr.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestHandleCommandGetInterfaceStatus(t *testing.T) {
	h := newHarness(t)
	h.monitor.setInfo(upInterface("wlan0", 3, "192.168.1.50/24"))
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	reply, err := h.mgr.HandleCommand(context.Background(), bus.GetInterfaceStatus{InterfaceName: "wlan0"})
	if err != nil {
		t.Fatalf("HandleCommand() error: %v", err)
	}

	statuses := reply.(map[string]domain.InterfaceStatus)
	status, ok := statuses["wlan0"]
	if !ok {
		t.Fatalf("reply missing wlan0: %v", statuses)
	}
	if status.Interface == nil || status.Interface.IPString() != "192.168.1.50/24" {
		t.Errorf("status interface = %+v", status.Interface)
	}
	if status.Lease == nil || status.Lease.Gateway != "192.168.1.1" {
		t.Errorf("status lease = %+v", status.Lease)
	}
	if status.Routing == nil || status.Routing.TableID != 1100 {
		t.Errorf("status routing = %+v", status.Routing)
	}
}

func TestHandleCommandConfigureInterfaceForceDHCP(t *testing.T) {
	h := newHarness(t)
	h.monitor.setInfo(upInterface("wlan0", 3, "192.168.1.50/24"))
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	_, err := h.mgr.HandleCommand(context.Background(),
		bus.ConfigureInterface{InterfaceName: "wlan0", ForceDHCP: true})
	if err != nil {
		t.Fatalf("HandleCommand() error: %v", err)
	}

	if h.dhcp.startCount("wlan0") != 1 {
		t.Errorf("DHCP started %d times, want 1 (forced)", h.dhcp.startCount("wlan0"))
	}
	if !h.routing.isConfigured("wlan0") {
		t.Error("routing not configured by ConfigureInterface")
	}
}

func TestHandleCommandConfigureDownInterface(t *testing.T) {
	h := newHarness(t, bus.KindNetworkControlError)
	h.monitor.setInfo(&domain.InterfaceInfo{Name: "wlan0", Index: 3, State: domain.InterfaceStateDown})

	if _, err := h.mgr.HandleCommand(context.Background(),
		bus.ConfigureInterface{InterfaceName: "wlan0"}); err == nil {
		t.Fatal("HandleCommand() on a down interface succeeded, want error")
	}

	if msg := h.nextEvent(t); msg.Kind() != bus.KindNetworkControlError {
		t.Fatalf("message %s, want network_control_error", msg.Kind())
	}
}

func TestHandleCommandFlushRoutes(t *testing.T) {
	h := newHarness(t)

	if _, err := h.mgr.HandleCommand(context.Background(), bus.FlushRoutes{TableID: 1234}); err != nil {
		t.Fatalf("HandleCommand() error: %v", err)
	}
	if len(h.routing.flushed) != 1 || h.routing.flushed[0] != 1234 {
		t.Errorf("flushed tables %v, want [1234]", h.routing.flushed)
	}
}

func TestHandleCommandHostRoutes(t *testing.T) {
	h := newHarness(t)

	reply, err := h.mgr.HandleCommand(context.Background(),
		bus.AddHostRoute{Host: "10.20.30.40", InterfaceName: "wlan0"})
	if err != nil {
		t.Fatalf("HandleCommand() error: %v", err)
	}

	result := reply.(*domain.HostRouteResult)
	if !result.Success || result.ResolvedIP != "10.20.30.40" {
		t.Errorf("AddHostRoute result = %+v", result)
	}
	if result.TableID != 1100 {
		t.Errorf("result table = %d, want the interface table 1100", result.TableID)
	}
}

func TestHandleCommandHostRouteResolutionFailure(t *testing.T) {
	h := newHarness(t, bus.KindNetworkControlError)

	reply, err := h.mgr.HandleCommand(context.Background(),
		bus.AddHostRoute{Host: "unresolvable.invalid", InterfaceName: "wlan0"})
	if err != nil {
		t.Fatalf("HandleCommand() error: %v (failures belong in the result)", err)
	}

	result := reply.(*domain.HostRouteResult)
	if result.Success || result.ErrorMessage == "" {
		t.Errorf("result = %+v, want failure with message", result)
	}
	if msg := h.nextEvent(t); msg.Kind() != bus.KindNetworkControlError {
		t.Fatalf("message %s, want network_control_error", msg.Kind())
	}
}

func TestReleaseLeasePublishes(t *testing.T) {
	h := newHarness(t, bus.KindDHCPLeaseReleased)
	h.dhcp.setLease("wlan0", "192.168.1.50", "192.168.1.1")

	if !h.mgr.ReleaseLease(context.Background(), "wlan0") {
		t.Fatal("ReleaseLease() = false, want true")
	}
	if msg := h.nextEvent(t); msg.Kind() != bus.KindDHCPLeaseReleased {
		t.Fatalf("message %s, want dhcp_lease_released", msg.Kind())
	}
}
