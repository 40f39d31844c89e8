package netmon

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/errors"
	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/rgnets/wlanpi-netctl/internal/routing"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// updateBuffer sizes the kernel update channels. Bursts (interface flaps,
// DHCP renews across several interfaces) must not stall the netlink socket.
const updateBuffer = 64

// EventKind classifies a monitor event.
type EventKind string

const (
	EventLinkChanged  EventKind = "link_changed"
	EventAddrAdded    EventKind = "addr_added"
	EventAddrRemoved  EventKind = "addr_removed"
	EventRouteChanged EventKind = "route_changed"
)

// Event is one observed kernel state change. Link and addr events are
// limited to watched interfaces; route events pass through for everything.
// Interface is a fresh snapshot taken after the change; it is nil for route
// events, which carry only destination, gateway and best-effort interface
// name (nil Dst means the default route).
type Event struct {
	Kind          EventKind
	Interface     *domain.InterfaceInfo
	InterfaceName string
	Addr          *net.IPNet
	Dst           *net.IPNet
	Gateway       net.IP
	Added         bool
}

// Callback receives monitor events. Callbacks run on the monitor's single
// event goroutine: one event is fully handled before the next is read, so
// implementations see changes in kernel order.
type Callback func(Event)

// SubscribeFuncs are the netlink subscription entry points, injectable for
// tests that feed fabricated updates.
type SubscribeFuncs struct {
	Link  func(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error
	Addr  func(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error
	Route func(ch chan<- netlink.RouteUpdate, done <-chan struct{}) error
}

// DefaultSubscribeFuncs subscribes against the kernel.
func DefaultSubscribeFuncs() SubscribeFuncs {
	return SubscribeFuncs{
		Link:  netlink.LinkSubscribe,
		Addr:  netlink.AddrSubscribe,
		Route: netlink.RouteSubscribe,
	}
}

// Monitor watches netlink for link, address and route changes and dispatches
// snapshots to registered callbacks. Link and addr events are filtered to a
// fixed set of watched interfaces; route events are not.
type Monitor struct {
	nl   routing.Netlink
	subs SubscribeFuncs

	mu        sync.RWMutex
	watched   map[string]bool
	callbacks map[string]Callback
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMonitor creates a monitor for the given interface names.
func NewMonitor(nl routing.Netlink, interfaces []string) *Monitor {
	watched := make(map[string]bool, len(interfaces))
	for _, name := range interfaces {
		watched[name] = true
	}
	return &Monitor{
		nl:        nl,
		subs:      DefaultSubscribeFuncs(),
		watched:   watched,
		callbacks: make(map[string]Callback),
	}
}

// AddCallback registers a named callback. Registering the same name again
// replaces the previous callback.
func (m *Monitor) AddCallback(name string, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[name] = cb
}

// RemoveCallback unregisters a named callback.
func (m *Monitor) RemoveCallback(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.callbacks, name)
}

// Watches reports whether the monitor cares about an interface.
func (m *Monitor) Watches(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watched[name]
}

// Running reports whether the event loop is active.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Start subscribes to kernel updates and launches the event loop. Starting
// a running monitor is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	fail := func(err error) error {
		cancel()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	linkCh := make(chan netlink.LinkUpdate, updateBuffer)
	if err := m.subs.Link(linkCh, ctx.Done()); err != nil {
		return fail(errors.NewNetlinkError("failed to subscribe to link updates", err))
	}

	addrCh := make(chan netlink.AddrUpdate, updateBuffer)
	if err := m.subs.Addr(addrCh, ctx.Done()); err != nil {
		return fail(errors.NewNetlinkError("failed to subscribe to address updates", err))
	}

	// Route updates only feed logging and the event stream; the monitor
	// stays useful without them.
	routeCh := make(chan netlink.RouteUpdate, updateBuffer)
	if err := m.subs.Route(routeCh, ctx.Done()); err != nil {
		log.Warnf("Route subscription unavailable: %v", err)
		routeCh = nil
	}

	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx, linkCh, addrCh, routeCh)

	log.Infof("Netlink monitor started (watching %v)", m.watchedNames())
	return nil
}

// Stop cancels the subscriptions and waits for the event loop to drain.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	log.Infof("Netlink monitor stopped")
}

func (m *Monitor) loop(ctx context.Context, linkCh chan netlink.LinkUpdate, addrCh chan netlink.AddrUpdate, routeCh chan netlink.RouteUpdate) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			return

		case update, ok := <-linkCh:
			if !ok {
				// Socket error surfaces as a closed channel; keep serving
				// the remaining subscriptions.
				log.Warnf("Link update channel closed")
				linkCh = nil
				continue
			}
			m.handleLink(update)

		case update, ok := <-addrCh:
			if !ok {
				log.Warnf("Address update channel closed")
				addrCh = nil
				continue
			}
			m.handleAddr(update)

		case update, ok := <-routeCh:
			if !ok {
				// Route subscription is optional; keep serving the rest.
				routeCh = nil
				continue
			}
			m.handleRoute(update)
		}
	}
}

func (m *Monitor) handleLink(update netlink.LinkUpdate) {
	if update.Link == nil {
		return
	}
	name := update.Link.Attrs().Name
	if !m.Watches(name) {
		return
	}

	// Re-query for fresh state; the update itself may already be stale.
	info := m.snapshot(name, update.Link)

	log.Debugf("[%s] Link changed: state=%s", name, info.State)
	m.dispatch(Event{
		Kind:          EventLinkChanged,
		Interface:     info,
		InterfaceName: name,
	})
}

func (m *Monitor) handleAddr(update netlink.AddrUpdate) {
	if update.LinkAddress.IP == nil || update.LinkAddress.IP.To4() == nil {
		return
	}

	link, err := m.nl.LinkByIndex(update.LinkIndex)
	if err != nil {
		// Interface vanished; the link event path covers teardown.
		log.Debugf("Address update for unknown link index %d: %v", update.LinkIndex, err)
		return
	}
	name := link.Attrs().Name
	if !m.Watches(name) {
		return
	}

	kind := EventAddrAdded
	if !update.NewAddr {
		kind = EventAddrRemoved
	}

	addr := update.LinkAddress
	info := buildInterfaceInfo(m.nl, link)

	log.Debugf("[%s] Address %s: %s", name, kind, addr.String())
	m.dispatch(Event{
		Kind:          kind,
		Interface:     info,
		InterfaceName: name,
		Addr:          &addr,
		Added:         update.NewAddr,
	})
}

func (m *Monitor) handleRoute(update netlink.RouteUpdate) {
	// Route updates bypass the interface filter: a route has no single
	// interface target, and consumers want the full routing churn.
	name := ""
	if update.Route.LinkIndex > 0 {
		if link, err := m.nl.LinkByIndex(update.Route.LinkIndex); err == nil {
			name = link.Attrs().Name
		}
	}

	added := update.Type == unix.RTM_NEWROUTE

	log.Debugf("Route %s: dst=%s gw=%v iface=%q", routeChangeWord(added), dstString(update.Route.Dst), update.Route.Gw, name)
	m.dispatch(Event{
		Kind:          EventRouteChanged,
		InterfaceName: name,
		Dst:           update.Route.Dst,
		Gateway:       update.Route.Gw,
		Added:         added,
	})
}

func dstString(dst *net.IPNet) string {
	if dst == nil {
		return "default"
	}
	return dst.String()
}

func routeChangeWord(added bool) string {
	if added {
		return "added"
	}
	return "removed"
}

// snapshot returns a fresh InterfaceInfo for name, falling back to a
// synthesized down-state snapshot when the link is gone.
func (m *Monitor) snapshot(name string, last netlink.Link) *domain.InterfaceInfo {
	link, err := m.nl.LinkByName(name)
	if err == nil {
		return buildInterfaceInfo(m.nl, link)
	}

	info := &domain.InterfaceInfo{
		Name:  name,
		State: domain.InterfaceStateDown,
		Type:  ClassifyInterface(name),
	}
	if last != nil {
		info.Index = last.Attrs().Index
		info.MACAddress = last.Attrs().HardwareAddr.String()
	}
	return info
}

// InterfaceInfo returns a fresh snapshot for a watched interface.
func (m *Monitor) InterfaceInfo(name string) (*domain.InterfaceInfo, error) {
	link, err := m.nl.LinkByName(name)
	if err != nil {
		return nil, errors.NewInterfaceError(fmt.Sprintf("interface %s not found", name), err)
	}
	return buildInterfaceInfo(m.nl, link), nil
}

// dispatch invokes every callback with the event, isolating panics so one
// broken consumer cannot kill the event loop.
func (m *Monitor) dispatch(ev Event) {
	m.mu.RLock()
	cbs := make([]Callback, 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		cbs = append(cbs, cb)
	}
	m.mu.RUnlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Monitor callback panicked on %s event: %v", ev.Kind, r)
				}
			}()
			cb(ev)
		}()
	}
}

func (m *Monitor) watchedNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.watched))
	for name := range m.watched {
		names = append(names, name)
	}
	return names
}
