// Package netctl is the orchestration core of the agent: it is the only
// place that mutates per-interface managed state and decides when monitor
// events and supplicant notifications turn into DHCP and routing actions.
package netctl
