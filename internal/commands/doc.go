// Package commands implements CLI command handlers for wlanpi-netctl.
//
// This package provides the command-line interface layer for the agent,
// implementing subcommands like service, configure, teardown, status and
// self-check. Each command implements the Runner interface and delegates
// business logic to the control core.
//
// # Command Structure
//
// All commands follow a consistent pattern:
//   - Init(): Parse arguments and validate configuration
//   - Run(): Execute command against the control core
//   - Name(): Return command name for routing
//
// # Available Commands
//
//   - service: Run as a daemon with netlink monitoring and the HTTP API
//   - configure: One-shot policy routing (and DHCP) setup for an interface
//   - teardown: Remove an interface's routing state and DHCP client
//   - status: Query per-interface routing and lease status
//   - interfaces: List kernel interfaces with classification
//   - lease: Inspect the current DHCP lease for an interface
//   - resolve: Resolve a host through an interface's DNS servers
//   - recover: Sweep orphaned routing tables and rules
//   - self-check: Verify configuration and runtime prerequisites
//
// Commands are thin wrappers that orchestrate the control core, keeping CLI
// concerns separate from business logic.
package commands
