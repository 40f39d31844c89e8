package domain

import (
	"encoding/json"
	"net"
	"strings"
	"time"
)

// InterfaceState is the administrative/operational state of a network interface
// as derived from netlink link flags.
type InterfaceState string

const (
	InterfaceStateUp      InterfaceState = "up"
	InterfaceStateDown    InterfaceState = "down"
	InterfaceStateUnknown InterfaceState = "unknown"
)

// InterfaceType is a coarse classification used for display and for the
// wireless-specific teardown fast path.
type InterfaceType string

const (
	InterfaceTypeWireless InterfaceType = "wireless"
	InterfaceTypeEthernet InterfaceType = "ethernet"
	InterfaceTypeLoopback InterfaceType = "loopback"
	InterfaceTypeOther    InterfaceType = "other"
)

// InterfaceInfo is a snapshot of everything the control core tracks about a
// single network interface. It is rebuilt from netlink state on every event,
// never mutated in place by consumers.
type InterfaceInfo struct {
	Name         string
	Index        int
	State        InterfaceState
	Type         InterfaceType
	MACAddress   string
	IPAddress    *net.IPNet
	Gateway      net.IP
	TableID      int
	HasDHCPLease bool
}

// HasIP reports whether the interface currently has a usable IPv4 address.
func (i *InterfaceInfo) HasIP() bool {
	return i != nil && i.IPAddress != nil && i.IPAddress.IP != nil && !i.IPAddress.IP.IsUnspecified()
}

// IsUp reports whether the interface is operationally up.
func (i *InterfaceInfo) IsUp() bool {
	return i != nil && i.State == InterfaceStateUp
}

// IPString returns the interface address in CIDR notation, or "" when unset.
func (i *InterfaceInfo) IPString() string {
	if !i.HasIP() {
		return ""
	}
	return i.IPAddress.String()
}

// GatewayString returns the gateway address, or "" when unset.
func (i *InterfaceInfo) GatewayString() string {
	if i == nil || i.Gateway == nil {
		return ""
	}
	return i.Gateway.String()
}

type interfaceInfoJSON struct {
	Name         string         `json:"name"`
	Index        int            `json:"index"`
	State        InterfaceState `json:"state"`
	Type         InterfaceType  `json:"type"`
	MACAddress   string         `json:"mac_address,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	Gateway      string         `json:"gateway,omitempty"`
	TableID      int            `json:"table_id,omitempty"`
	HasDHCPLease bool           `json:"has_dhcp_lease"`
}

// MarshalJSON renders addresses in their text forms (CIDR for the interface
// address) so the API and event stream stay human-readable.
func (i InterfaceInfo) MarshalJSON() ([]byte, error) {
	out := interfaceInfoJSON{
		Name:         i.Name,
		Index:        i.Index,
		State:        i.State,
		Type:         i.Type,
		MACAddress:   i.MACAddress,
		TableID:      i.TableID,
		HasDHCPLease: i.HasDHCPLease,
	}
	if i.HasIP() {
		out.IPAddress = i.IPAddress.String()
	}
	if i.Gateway != nil {
		out.Gateway = i.Gateway.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the same shape MarshalJSON produces.
func (i *InterfaceInfo) UnmarshalJSON(data []byte) error {
	var in interfaceInfoJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	i.Name = in.Name
	i.Index = in.Index
	i.State = in.State
	i.Type = in.Type
	i.MACAddress = in.MACAddress
	i.TableID = in.TableID
	i.HasDHCPLease = in.HasDHCPLease
	i.IPAddress = nil
	i.Gateway = nil
	if in.IPAddress != "" {
		ip, ipNet, err := net.ParseCIDR(in.IPAddress)
		if err != nil {
			return err
		}
		i.IPAddress = &net.IPNet{IP: ip, Mask: ipNet.Mask}
	}
	if in.Gateway != "" {
		i.Gateway = net.ParseIP(in.Gateway)
	}
	return nil
}

// RoutingStatus describes the policy-routing state of one interface.
type RoutingStatus struct {
	Configured      bool `json:"configured"`
	TableID         int  `json:"table_id"`
	RouteCount      int  `json:"route_count"`
	MainTableRoutes int  `json:"main_table_routes"`
}

// InterfaceStatus is the combined view returned by status queries: link
// snapshot, routing state and the current DHCP lease, when any.
type InterfaceStatus struct {
	Interface *InterfaceInfo `json:"interface,omitempty"`
	Routing   *RoutingStatus `json:"routing,omitempty"`
	Lease     *LeaseInfo     `json:"lease,omitempty"`
}

// HostRouteResult reports the outcome of a host route add or remove,
// including the address the host resolved to.
type HostRouteResult struct {
	Success       bool   `json:"success"`
	Host          string `json:"host"`
	ResolvedIP    string `json:"resolved_ip,omitempty"`
	InterfaceName string `json:"interface,omitempty"`
	TableID       int    `json:"table_id,omitempty"`
	ErrorMessage  string `json:"error,omitempty"`
}

// LeaseDate is a single timestamp from a dhclient lease block. The lease
// file expresses "no expiry" as the literal string "never".
type LeaseDate struct {
	Time  time.Time
	Never bool
}

// IsZero reports whether the date carries no value at all.
func (d *LeaseDate) IsZero() bool {
	return d == nil || (!d.Never && d.Time.IsZero())
}

func (d *LeaseDate) String() string {
	if d == nil {
		return ""
	}
	if d.Never {
		return "never"
	}
	if d.Time.IsZero() {
		return ""
	}
	return d.Time.UTC().Format("2006-01-02 15:04:05 MST")
}

// MarshalJSON renders the date as its display string.
func (d LeaseDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Lease option keys after normalization (dashes become underscores).
const (
	LeaseOptionRouters    = "routers"
	LeaseOptionDNSServers = "domain_name_servers"
	LeaseOptionSubnetMask = "subnet_mask"
	LeaseOptionLeaseTime  = "dhcp_lease_time"
)

// DHCPLease is one parsed "lease { ... }" block from a dhclient lease file.
// Values are kept as the raw file text; accessors parse on demand.
type DHCPLease struct {
	Interface    string
	FixedAddress string
	Options      map[string]string
	Renew        *LeaseDate
	Rebind       *LeaseDate
	Expire       *LeaseDate
}

// FixedIP parses the leased address, returning nil when absent or malformed.
func (l *DHCPLease) FixedIP() net.IP {
	if l == nil {
		return nil
	}
	return net.ParseIP(l.FixedAddress)
}

// Option returns the named option value, "" when unset.
func (l *DHCPLease) Option(key string) string {
	if l == nil || l.Options == nil {
		return ""
	}
	return l.Options[key]
}

// Gateway returns the first router offered by the lease, "" when none.
func (l *DHCPLease) Gateway() string {
	routers := splitLeaseList(l.Option(LeaseOptionRouters))
	if len(routers) == 0 {
		return ""
	}
	return routers[0]
}

// DNSServers returns the offered DNS servers, nil when none.
func (l *DHCPLease) DNSServers() []string {
	servers := l.Option(LeaseOptionDNSServers)
	if servers == "" {
		return nil
	}
	return splitLeaseList(servers)
}

// Flatten reduces the lease to the summary shape exposed over the API.
func (l *DHCPLease) Flatten() *LeaseInfo {
	if l == nil {
		return nil
	}
	info := &LeaseInfo{
		Interface:  l.Interface,
		IPAddress:  l.FixedAddress,
		Gateway:    l.Gateway(),
		DNSServers: l.DNSServers(),
		SubnetMask: l.Option(LeaseOptionSubnetMask),
		LeaseTime:  l.Option(LeaseOptionLeaseTime),
	}
	if !l.Expire.IsZero() {
		info.Expires = l.Expire.String()
	}
	return info
}

// splitLeaseList splits a lease option value on commas and/or whitespace.
// dhclient writes "1.2.3.4, 5.6.7.8" for some options and space-separated
// values for others.
func splitLeaseList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// LeaseInfo is the flattened DHCP lease summary served by the API and
// attached to lease lifecycle events.
type LeaseInfo struct {
	Interface  string   `json:"interface"`
	IPAddress  string   `json:"ip_address,omitempty"`
	Gateway    string   `json:"gateway,omitempty"`
	DNSServers []string `json:"dns_servers,omitempty"`
	SubnetMask string   `json:"subnet_mask,omitempty"`
	LeaseTime  string   `json:"lease_time,omitempty"`
	Expires    string   `json:"expires,omitempty"`
}
