package components

import (
	"fmt"
	"sync"

	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

var _ Component = (*NetctlService)(nil)

// NetctlService runs the network control core: crash recovery sweep, netlink
// monitoring, interface discovery and event-driven routing/DHCP management.
type NetctlService struct {
	deps    *core.AppDependencies
	running bool
	mu      sync.Mutex
}

// NewNetctlService creates the network control service component.
func NewNetctlService(deps *core.AppDependencies) *NetctlService {
	return &NetctlService{deps: deps}
}

// Start starts the control core.
func (n *NetctlService) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("network control service is already running")
	}

	log.Infof("Starting network control service...")
	if err := n.deps.Manager().Start(); err != nil {
		return fmt.Errorf("failed to start network control manager: %w", err)
	}

	n.running = true
	log.Infof("Network control service started successfully")
	return nil
}

// Stop tears down managed interfaces and stops the control core.
func (n *NetctlService) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return fmt.Errorf("network control service is not running")
	}

	log.Infof("Stopping network control service...")
	n.deps.Manager().Stop()

	n.running = false
	log.Infof("Network control service stopped")
	return nil
}

// IsRunning returns whether the service is running.
func (n *NetctlService) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Name returns the component name for logging.
func (n *NetctlService) Name() string {
	return "network-control"
}
