package netctl

import (
	"context"
	"fmt"
	"net"

	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/errors"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

var _ bus.Handler = (*Manager)(nil)

func errDHCPFailed(name string) error {
	return errors.NewDHCPError(fmt.Sprintf("DHCP negotiation failed for %s", name), nil)
}

// HandleCommand executes one typed command. The switch is exhaustive over
// the sealed bus.Command set. Errors are published as NetworkControlError in
// addition to being returned, so bus observers see failures the same way the
// HTTP caller does.
func (m *Manager) HandleCommand(ctx context.Context, cmd bus.Command) (interface{}, error) {
	switch cmd := cmd.(type) {
	case bus.ConfigureInterface:
		return m.configureInterface(ctx, cmd)

	case bus.RemoveInterface:
		return m.removeInterface(ctx, cmd)

	case bus.FlushRoutes:
		if err := m.routing.FlushRouteTable(cmd.TableID); err != nil {
			m.publishError("", "flush_routes", err)
			return nil, err
		}
		return map[string]int{"flushed_table": cmd.TableID}, nil

	case bus.GetInterfaceStatus:
		return m.Status(cmd.InterfaceName), nil

	case bus.AddHostRoute:
		return m.hostRoute(cmd.Host, cmd.InterfaceName, cmd.TableID, true), nil

	case bus.RemoveHostRoute:
		return m.hostRoute(cmd.Host, cmd.InterfaceName, cmd.TableID, false), nil

	default:
		err := errors.NewInternalError(fmt.Sprintf("unknown command type %T", cmd), nil)
		m.publishError("", "dispatch", err)
		return nil, err
	}
}

func (m *Manager) configureInterface(ctx context.Context, cmd bus.ConfigureInterface) (interface{}, error) {
	name := cmd.InterfaceName

	info, err := m.monitor.InterfaceInfo(name)
	if err != nil {
		m.publishError(name, "configure_interface", err)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.decorate(info)
	m.managed[name] = info

	if !info.IsUp() {
		err := errors.NewInterfaceError(fmt.Sprintf("interface %s is not up", name), nil)
		m.publishError(name, "configure_interface", err)
		return nil, err
	}

	if cmd.ForceDHCP || !info.HasIP() {
		if m.triggerDHCPLocked(ctx, info) {
			// The kernel may have installed the leased address while the
			// negotiation blocked; re-query rather than trusting the lease.
			if fresh, err := m.monitor.InterfaceInfo(name); err == nil {
				m.decorate(fresh)
				info = fresh
				m.managed[name] = info
			}
		}
	}

	if info.HasIP() {
		m.configureRoutingLocked(info)
	} else {
		log.Infof("[%s] No address yet, routing deferred until one is assigned", name)
	}

	return m.statusLocked(name), nil
}

func (m *Manager) removeInterface(ctx context.Context, cmd bus.RemoveInterface) (interface{}, error) {
	name := cmd.InterfaceName

	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.managed[name]
	if info == nil {
		info = &domain.InterfaceInfo{Name: name, State: domain.InterfaceStateUnknown}
	}

	m.teardownLocked(ctx, info)
	delete(m.managed, name)

	return m.statusLocked(name), nil
}

// hostRoute adds or removes a /32 route, resolving FQDNs through the
// interface's lease DNS servers. Failures come back in the result payload
// rather than as errors: a missing route on remove is an expected outcome.
func (m *Manager) hostRoute(host, iface string, tableID int, add bool) *domain.HostRouteResult {
	result := &domain.HostRouteResult{Host: host, InterfaceName: iface, TableID: tableID}

	dnsServers := m.dhcp.Lease(iface).DNSServers()

	var resolved net.IP
	var err error
	if add {
		resolved, err = m.routing.AddHostRoute(host, iface, tableID, dnsServers)
	} else {
		resolved, err = m.routing.RemoveHostRoute(host, iface, tableID, dnsServers)
	}

	if err != nil {
		op := "add_host_route"
		if !add {
			op = "remove_host_route"
		}
		m.publishError(iface, op, err)
		result.ErrorMessage = err.Error()
		return result
	}

	result.Success = true
	result.ResolvedIP = resolved.String()
	if result.TableID == 0 {
		result.TableID = m.routing.TableIDFor(iface)
	}
	return result
}

// Status returns per-interface status. An empty name returns every managed
// interface; a specific name works for unmanaged interfaces too, so operators
// can inspect an interface before adding it to the config.
func (m *Manager) Status(name string) map[string]domain.InterfaceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name != "" {
		return map[string]domain.InterfaceStatus{name: m.statusLocked(name)}
	}

	out := make(map[string]domain.InterfaceStatus, len(m.managed))
	for iface := range m.managed {
		out[iface] = m.statusLocked(iface)
	}
	return out
}

func (m *Manager) statusLocked(name string) domain.InterfaceStatus {
	status := domain.InterfaceStatus{
		Routing: m.routing.Status(name),
		Lease:   m.dhcp.LeaseInfo(name),
	}

	if info, err := m.monitor.InterfaceInfo(name); err == nil {
		m.decorate(info)
		status.Interface = info
	} else if cached := m.managed[name]; cached != nil {
		copied := *cached
		status.Interface = &copied
	}

	return status
}

// ReleaseLease releases the interface's DHCP lease and publishes
// DHCPLeaseReleased on success.
func (m *Manager) ReleaseLease(ctx context.Context, name string) bool {
	if !m.dhcp.ReleaseLease(ctx, name) {
		return false
	}

	m.mu.Lock()
	if info := m.managed[name]; info != nil {
		info.HasDHCPLease = false
	}
	m.mu.Unlock()

	m.bus.Publish(bus.DHCPLeaseReleased{InterfaceName: name})
	return true
}

// RenewLease renews the interface's DHCP lease, publishing DHCPLeaseAcquired
// with the refreshed lease on success.
func (m *Manager) RenewLease(ctx context.Context, name string) bool {
	if !m.dhcp.RenewLease(ctx, name) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.managed[name]
	if info == nil {
		info = &domain.InterfaceInfo{Name: name}
	}

	lease := m.dhcp.Lease(name)
	info.HasDHCPLease = lease != nil

	m.bus.Publish(bus.DHCPLeaseAcquired{Interface: *info, Lease: lease.Flatten()})
	return true
}

// LeaseInfo exposes the flattened lease for the HTTP API and CLI.
func (m *Manager) LeaseInfo(name string) *domain.LeaseInfo {
	return m.dhcp.LeaseInfo(name)
}
