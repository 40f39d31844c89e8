package dhcp

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/rgnets/wlanpi-netctl/internal/utils"
)

// Client drives one external DHCP client process per interface and exposes
// the latest parsed lease. All verbs are best effort: failures are logged and
// reported as false, never escalated, because the caller's reaction to a
// failed negotiation is the same as to no negotiation at all (wait for the
// next event and retry).
type Client struct {
	cfg    *config.DHCPConfig
	runner Runner

	mu      sync.Mutex
	parsers map[string]*LeaseParser
	tracked map[string]bool

	starts   uint64
	failures uint64
}

// NewClient creates a DHCP client driver with the given subprocess runner.
func NewClient(cfg *config.DHCPConfig, runner Runner) *Client {
	return &Client{
		cfg:     cfg,
		runner:  runner,
		parsers: make(map[string]*LeaseParser),
		tracked: make(map[string]bool),
	}
}

// renderTemplate substitutes the {interface} placeholder.
func renderTemplate(tmpl, iface string) string {
	return fasttemplate.ExecuteString(tmpl, "{", "}",
		map[string]interface{}{"interface": iface})
}

// commandArgv renders a command template and splits it into an argument
// vector. Command templates are plain words, no shell quoting.
func commandArgv(tmpl, iface string) []string {
	return strings.Fields(renderTemplate(tmpl, iface))
}

func (c *Client) leasePath(iface string) string {
	// The lease-file template may be absolute already (single shared file
	// setups); otherwise it is resolved against the lease directory.
	return utils.GetAbsolutePath(renderTemplate(c.cfg.GetLeaseFile(), iface), c.cfg.GetLeaseDir())
}

func (c *Client) run(ctx context.Context, iface string, argv []string) (string, bool) {
	if len(argv) == 0 {
		log.Errorf("[%s] Empty DHCP command", iface)
		return "", false
	}

	stdout, stderr, err := c.runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		log.Warnf("[%s] %s failed: %v (stderr: %s)", iface, argv[0], err, strings.TrimSpace(stderr))
		return stderr, false
	}
	_ = stdout
	return stderr, true
}

// StartClient stops any client already running for the interface, then runs a
// one-shot DHCP negotiation to completion under the configured timeout.
// Returns true when the negotiation succeeded.
func (c *Client) StartClient(ctx context.Context, iface string) bool {
	atomic.AddUint64(&c.starts, 1)

	// Idempotent restart: a dhclient left over from a previous attempt would
	// fight the new one over the lease file.
	c.StopClient(ctx, iface)

	timeout := time.Duration(c.cfg.GetTimeoutSeconds()) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Infof("[%s] Starting DHCP negotiation (timeout %s)", iface, timeout)

	_, ok := c.run(runCtx, iface, commandArgv(c.cfg.GetStartCommand(), iface))
	if !ok {
		atomic.AddUint64(&c.failures, 1)
		log.Warnf("[%s] DHCP negotiation failed", iface)
		return false
	}

	c.mu.Lock()
	c.tracked[iface] = true
	if _, exists := c.parsers[iface]; !exists {
		c.parsers[iface] = NewLeaseParser(iface, c.leasePath(iface))
	}
	c.mu.Unlock()

	log.Infof("[%s] DHCP negotiation completed", iface)
	return true
}

// StopClient kills any DHCP client process associated with the interface.
// Matching is by command-line pattern rather than PID: the process may have
// been started out-of-band. pkill exiting non-zero means no process matched,
// which is the normal case and not an error.
func (c *Client) StopClient(ctx context.Context, iface string) {
	pattern := renderTemplate(c.cfg.GetStopPattern(), iface)

	_, _, err := c.runner.Run(ctx, "pkill", "-f", pattern)
	if err != nil {
		log.Debugf("[%s] No DHCP client process matched %q", iface, pattern)
	} else {
		log.Infof("[%s] Stopped DHCP client", iface)
	}

	c.mu.Lock()
	delete(c.tracked, iface)
	c.mu.Unlock()
}

// ReleaseLease tells the DHCP client to release the current lease.
func (c *Client) ReleaseLease(ctx context.Context, iface string) bool {
	log.Infof("[%s] Releasing DHCP lease", iface)
	_, ok := c.run(ctx, iface, commandArgv(c.cfg.GetReleaseCommand(), iface))
	if ok {
		c.mu.Lock()
		delete(c.tracked, iface)
		c.mu.Unlock()
	}
	return ok
}

// RenewLease attempts a lightweight renew and falls back to a fresh
// negotiation when that fails. A failed renew usually means the lease is
// gone, so the fallback is the recovery path rather than an optimization.
func (c *Client) RenewLease(ctx context.Context, iface string) bool {
	log.Infof("[%s] Renewing DHCP lease", iface)
	if _, ok := c.run(ctx, iface, commandArgv(c.cfg.GetRenewCommand(), iface)); ok {
		return true
	}

	log.Warnf("[%s] Renew failed, starting fresh negotiation", iface)
	return c.StartClient(ctx, iface)
}

// Lease returns the latest parsed lease for the interface, nil when no lease
// file exists yet. A parser is created lazily so a lease negotiated before
// this process started is still visible.
func (c *Client) Lease(iface string) *domain.DHCPLease {
	c.mu.Lock()
	parser, ok := c.parsers[iface]
	if !ok {
		parser = NewLeaseParser(iface, c.leasePath(iface))
		c.parsers[iface] = parser
	}
	c.mu.Unlock()

	lease, err := parser.LatestLease()
	if err != nil {
		log.Warnf("[%s] Failed to parse lease file %s: %v", iface, parser.Path(), err)
		return nil
	}
	return lease
}

// LeaseInfo returns the flattened lease summary, nil when no lease exists.
func (c *Client) LeaseInfo(iface string) *domain.LeaseInfo {
	return c.Lease(iface).Flatten()
}

// TrackedInterfaces returns the interfaces with a client this process started.
func (c *Client) TrackedInterfaces() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.tracked))
	for name := range c.tracked {
		names = append(names, name)
	}
	return names
}

// Cleanup stops every tracked client. Used at shutdown; individual stop
// failures do not abort the sweep.
func (c *Client) Cleanup(ctx context.Context) {
	for _, iface := range c.TrackedInterfaces() {
		c.StopClient(ctx, iface)
	}
}

// Stats returns the number of negotiations started and failed since process
// start, for the metrics collector.
func (c *Client) Stats() (starts, failures uint64) {
	return atomic.LoadUint64(&c.starts), atomic.LoadUint64(&c.failures)
}
