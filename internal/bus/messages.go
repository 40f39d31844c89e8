package bus

import (
	"github.com/rgnets/wlanpi-netctl/internal/domain"
)

// Kind identifies a message type on the bus.
type Kind string

const (
	// Outbound notifications published by the control core.
	KindInterfaceUp              Kind = "interface_up"
	KindInterfaceDown            Kind = "interface_down"
	KindInterfaceAddressAssigned Kind = "interface_address_assigned"
	KindInterfaceAddressRemoved  Kind = "interface_address_removed"
	KindRouteConfigured          Kind = "route_configured"
	KindRouteRemoved             Kind = "route_removed"
	KindDHCPLeaseAcquired        Kind = "dhcp_lease_acquired"
	KindDHCPLeaseReleased        Kind = "dhcp_lease_released"
	KindConnectivityLost         Kind = "connectivity_lost"
	KindNetworkControlError      Kind = "network_control_error"

	// Inbound notifications from the wireless supplicant layer.
	KindWifiDisconnected Kind = "wifi_disconnected"
	KindWifiStateChanged Kind = "wifi_state_changed"
)

// Message is the closed set of payloads carried by the bus. Every message
// type lives in this package; consumers dispatch with a type switch and can
// rely on Kind for filtering and serialization.
type Message interface {
	Kind() Kind
}

// InterfaceUp reports a managed link transitioning to the up state.
type InterfaceUp struct {
	Interface domain.InterfaceInfo `json:"interface"`
}

func (InterfaceUp) Kind() Kind { return KindInterfaceUp }

// InterfaceDown reports a managed link transitioning to the down state.
type InterfaceDown struct {
	Interface domain.InterfaceInfo `json:"interface"`
}

func (InterfaceDown) Kind() Kind { return KindInterfaceDown }

// InterfaceAddressAssigned reports an IPv4 address appearing on a managed link.
type InterfaceAddressAssigned struct {
	Interface domain.InterfaceInfo `json:"interface"`
}

func (InterfaceAddressAssigned) Kind() Kind { return KindInterfaceAddressAssigned }

// InterfaceAddressRemoved reports an IPv4 address leaving a managed link.
type InterfaceAddressRemoved struct {
	Interface domain.InterfaceInfo `json:"interface"`
}

func (InterfaceAddressRemoved) Kind() Kind { return KindInterfaceAddressRemoved }

// RouteConfigured reports that policy routing is in place for an interface.
type RouteConfigured struct {
	Interface domain.InterfaceInfo `json:"interface"`
	TableID   int                  `json:"table_id"`
}

func (RouteConfigured) Kind() Kind { return KindRouteConfigured }

// RouteRemoved reports that policy routing was torn down for an interface.
type RouteRemoved struct {
	InterfaceName string `json:"interface"`
	TableID       int    `json:"table_id"`
}

func (RouteRemoved) Kind() Kind { return KindRouteRemoved }

// DHCPLeaseAcquired reports a fresh lease on a managed interface.
type DHCPLeaseAcquired struct {
	Interface domain.InterfaceInfo `json:"interface"`
	Lease     *domain.LeaseInfo    `json:"lease,omitempty"`
}

func (DHCPLeaseAcquired) Kind() Kind { return KindDHCPLeaseAcquired }

// DHCPLeaseReleased reports that a lease was released or the client stopped.
type DHCPLeaseReleased struct {
	InterfaceName string `json:"interface"`
}

func (DHCPLeaseReleased) Kind() Kind { return KindDHCPLeaseReleased }

// ConnectivityLost reports that an interface lost its network, either from a
// link drop or a wireless disconnection. Interface carries the post-teardown
// snapshot: address, gateway and lease flag already cleared.
type ConnectivityLost struct {
	Interface domain.InterfaceInfo `json:"interface"`
	Reason    string               `json:"reason,omitempty"`
}

func (ConnectivityLost) Kind() Kind { return KindConnectivityLost }

// NetworkControlError reports a failed operation; command failures surface
// here as well as in the command reply.
type NetworkControlError struct {
	InterfaceName string `json:"interface,omitempty"`
	Operation     string `json:"operation,omitempty"`
	ErrorMessage  string `json:"error"`
}

func (NetworkControlError) Kind() Kind { return KindNetworkControlError }

// WifiDisconnected is published by the supplicant layer when an association
// is lost. The control core consumes it for the wireless teardown fast path.
type WifiDisconnected struct {
	InterfaceName string `json:"interface"`
	Reason        string `json:"reason,omitempty"`
}

func (WifiDisconnected) Kind() Kind { return KindWifiDisconnected }

// WifiStateChanged is published by the supplicant layer on WPA state machine
// transitions, e.g. "completed", "disconnected", "inactive".
type WifiStateChanged struct {
	InterfaceName string `json:"interface"`
	State         string `json:"state"`
}

func (WifiStateChanged) Kind() Kind { return KindWifiStateChanged }
