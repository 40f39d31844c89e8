// Package config provides configuration management for wlanpi-netctl.
//
// Configuration is a TOML file (default /etc/wlanpi-netctl/config.toml) with
// three sections:
//
//   - [general]: HTTP API and logging settings
//   - [network_control]: managed interfaces and the private routing-table range
//   - [dhcp]: external DHCP client command templates and lease file locations
//
// All sections except network_control are optional; accessor methods supply
// defaults for omitted fields, so a minimal working config is:
//
//	[network_control]
//	interfaces = ["wlan0", "eth0"]
//
// Validation uses go-playground/validator with custom tag validators for
// interface names, listen addresses, and {interface} command templates, and
// reports every problem at once with TOML-level field paths.
//
// ConfigHasher fingerprints the decoded configuration so SIGHUP handling and
// the status API can tell whether the file on disk differs from what the
// running service applied.
package config
