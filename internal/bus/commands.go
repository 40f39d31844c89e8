package bus

import "context"

// Command is the closed set of operations accepted by the control core.
// The isCommand marker keeps the set sealed to this package so the core's
// type switch can be exhaustive.
type Command interface {
	isCommand()
}

// ConfigureInterface requests policy routing (and optionally DHCP) for an
// interface that already has an address, or a DHCP trigger when it does not.
type ConfigureInterface struct {
	InterfaceName string `json:"interface"`
	ForceDHCP     bool   `json:"force_dhcp,omitempty"`
}

func (ConfigureInterface) isCommand() {}

// RemoveInterface requests a full teardown of an interface's routing state
// and DHCP client.
type RemoveInterface struct {
	InterfaceName string `json:"interface"`
}

func (RemoveInterface) isCommand() {}

// FlushRoutes requests removal of every route in one routing table.
type FlushRoutes struct {
	TableID int `json:"table_id"`
}

func (FlushRoutes) isCommand() {}

// GetInterfaceStatus requests the status snapshot for one interface, or for
// every managed interface when InterfaceName is empty.
type GetInterfaceStatus struct {
	InterfaceName string `json:"interface,omitempty"`
}

func (GetInterfaceStatus) isCommand() {}

// AddHostRoute requests a host route for Host (IP or FQDN) via the given
// interface. TableID zero means the interface's own policy table.
type AddHostRoute struct {
	Host          string `json:"host"`
	InterfaceName string `json:"interface"`
	TableID       int    `json:"table_id,omitempty"`
}

func (AddHostRoute) isCommand() {}

// RemoveHostRoute requests removal of a host route added by AddHostRoute.
type RemoveHostRoute struct {
	Host          string `json:"host"`
	InterfaceName string `json:"interface"`
	TableID       int    `json:"table_id,omitempty"`
}

func (RemoveHostRoute) isCommand() {}

// Handler executes commands. The control core is the sole implementation in
// the agent; tests substitute their own.
type Handler interface {
	HandleCommand(ctx context.Context, cmd Command) (interface{}, error)
}
