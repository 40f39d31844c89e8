// Package dhcp drives the external DHCP client (dhclient by default) and
// parses its on-disk lease files.
//
// The package never speaks DHCP itself: negotiation, release and renew are
// subprocess invocations built from configurable command templates, and lease
// state is read back from the client's lease file. This keeps the agent
// interoperable with whatever DHCP client the appliance image ships.
package dhcp
