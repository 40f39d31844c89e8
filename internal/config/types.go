package config

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultBaseTableID is the first table ID of the private policy-routing
	// range when the config does not set one.
	DefaultBaseTableID = 1000

	// TableIDSpan is the size of the private table-ID range. Table IDs are
	// assigned in [base, base+TableIDSpan).
	TableIDSpan = 1000

	defaultAPIListen       = "0.0.0.0:8642"
	defaultMetricOffset    = 100
	defaultFallbackMetric  = 1200
	defaultLeaseDir        = "/var/lib/dhcp"
	defaultLeaseFile       = "dhclient.{interface}.leases"
	defaultStartCommand    = "dhclient -v -1 {interface}"
	defaultReleaseCommand  = "dhclient -r {interface}"
	defaultRenewCommand    = "dhclient -n {interface}"
	defaultStopPattern     = "dhclient.*{interface}"
	defaultDHCPTimeoutSecs = 30
)

type Config struct {
	// ConfigVersion is the configuration file version.
	ConfigVersion uint8 `toml:"config_version" json:"config_version"`
	// General holds general daemon configuration.
	General *GeneralConfig `toml:"general" json:"general"`
	// NetworkControl configures the managed interfaces and policy routing.
	NetworkControl *NetworkControlConfig `toml:"network_control" json:"network_control"`
	// DHCP configures the external DHCP client invocation and lease files.
	DHCP *DHCPConfig `toml:"dhcp,omitempty" json:"dhcp,omitempty"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// APIEnabled enables the local HTTP API and event stream (default: true).
	APIEnabled *bool `toml:"api_enabled" json:"api_enabled"`
	// APIListen is the HTTP API listen address (default: "0.0.0.0:8642"). The API is additionally restricted to private subnets.
	APIListen string `toml:"api_listen" json:"api_listen" validate:"hostport_or_empty"`
	// Verbose enables debug logging (default: false).
	Verbose bool `toml:"verbose" json:"verbose"`
}

type NetworkControlConfig struct {
	// Interfaces is the list of interfaces to manage (e.g. ["wlan0", "wlan1", "eth0"]). Interfaces not present at startup are managed once they appear.
	Interfaces []string `toml:"interfaces" json:"interfaces" validate:"required,min=1,dive,iface_name"`
	// BaseTableID is the first routing table ID of the private range used for per-interface tables. Tables are assigned in [base, base+1000) (default: 1000).
	BaseTableID int `toml:"base_table_id" json:"base_table_id" validate:"omitempty,min=1,max=2146000000"`
	// MetricOffset is added to the lowest existing main-table default metric when installing fallback default routes into the main table (default: 100).
	MetricOffset int `toml:"metric_offset" json:"metric_offset" validate:"omitempty,min=1"`
	// FallbackMetric is the main-table fallback metric used when existing routes cannot be inspected (default: 1200).
	FallbackMetric int `toml:"fallback_metric" json:"fallback_metric" validate:"omitempty,min=1"`
}

type DHCPConfig struct {
	// LeaseDir is the directory holding DHCP client lease files (default: "/var/lib/dhcp").
	LeaseDir string `toml:"lease_dir" json:"lease_dir"`
	// LeaseFile is the per-interface lease file name; {interface} is replaced with the interface name (default: "dhclient.{interface}.leases").
	LeaseFile string `toml:"lease_file" json:"lease_file" validate:"omitempty,iface_template"`
	// StartCommand is the one-shot DHCP negotiation command; {interface} is replaced (default: "dhclient -v -1 {interface}").
	StartCommand string `toml:"start_command" json:"start_command" validate:"omitempty,iface_template"`
	// ReleaseCommand releases the current lease (default: "dhclient -r {interface}").
	ReleaseCommand string `toml:"release_command" json:"release_command" validate:"omitempty,iface_template"`
	// RenewCommand performs a lightweight renew (default: "dhclient -n {interface}").
	RenewCommand string `toml:"renew_command" json:"renew_command" validate:"omitempty,iface_template"`
	// StopPattern is the process command-line pattern used to stop clients, passed to pkill -f; {interface} is replaced (default: "dhclient.*{interface}").
	StopPattern string `toml:"stop_pattern" json:"stop_pattern" validate:"omitempty,iface_template"`
	// TimeoutSeconds bounds a single DHCP negotiation (default: 30).
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds" validate:"omitempty,min=1,max=600"`
}

func (c *Config) GetConfigDir() string {
	return filepath.Dir(c._absConfigFilePath)
}

func (c *Config) GetConfigPath() string {
	return c._absConfigFilePath
}

// IsAPIEnabled reports whether the HTTP API should be started (default: true).
func (g *GeneralConfig) IsAPIEnabled() bool {
	if g == nil || g.APIEnabled == nil {
		return true
	}
	return *g.APIEnabled
}

// GetAPIListen returns the API bind address, falling back to the default.
func (g *GeneralConfig) GetAPIListen() string {
	if g == nil || g.APIListen == "" {
		return defaultAPIListen
	}
	return g.APIListen
}

// GetBaseTableID returns the configured base table ID, falling back to the default.
func (n *NetworkControlConfig) GetBaseTableID() int {
	if n == nil || n.BaseTableID == 0 {
		return DefaultBaseTableID
	}
	return n.BaseTableID
}

// GetMetricOffset returns the main-table metric offset, falling back to the default.
func (n *NetworkControlConfig) GetMetricOffset() int {
	if n == nil || n.MetricOffset == 0 {
		return defaultMetricOffset
	}
	return n.MetricOffset
}

// GetFallbackMetric returns the fallback main-table metric, falling back to the default.
func (n *NetworkControlConfig) GetFallbackMetric() int {
	if n == nil || n.FallbackMetric == 0 {
		return defaultFallbackMetric
	}
	return n.FallbackMetric
}

// ManagesInterface reports whether name is in the managed interface list.
func (n *NetworkControlConfig) ManagesInterface(name string) bool {
	if n == nil {
		return false
	}
	for _, iface := range n.Interfaces {
		if iface == name {
			return true
		}
	}
	return false
}

func (d *DHCPConfig) GetLeaseDir() string {
	if d == nil || d.LeaseDir == "" {
		return defaultLeaseDir
	}
	return d.LeaseDir
}

func (d *DHCPConfig) GetLeaseFile() string {
	if d == nil || d.LeaseFile == "" {
		return defaultLeaseFile
	}
	return d.LeaseFile
}

func (d *DHCPConfig) GetStartCommand() string {
	if d == nil || d.StartCommand == "" {
		return defaultStartCommand
	}
	return d.StartCommand
}

func (d *DHCPConfig) GetReleaseCommand() string {
	if d == nil || d.ReleaseCommand == "" {
		return defaultReleaseCommand
	}
	return d.ReleaseCommand
}

func (d *DHCPConfig) GetRenewCommand() string {
	if d == nil || d.RenewCommand == "" {
		return defaultRenewCommand
	}
	return d.RenewCommand
}

func (d *DHCPConfig) GetStopPattern() string {
	if d == nil || d.StopPattern == "" {
		return defaultStopPattern
	}
	return d.StopPattern
}

func (d *DHCPConfig) GetTimeoutSeconds() int {
	if d == nil || d.TimeoutSeconds == 0 {
		return defaultDHCPTimeoutSecs
	}
	return d.TimeoutSeconds
}

// interfaceTemplateVar is the placeholder replaced with the interface name in
// DHCP command and lease-file templates.
const interfaceTemplateVar = "{interface}"

func templateMentionsInterface(tmpl string) bool {
	return strings.Contains(tmpl, interfaceTemplateVar)
}
