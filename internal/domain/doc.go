// Package domain holds the shared data model of the network control agent:
// interface snapshots, routing status, DHCP leases and the summary shapes
// served over the API. It has no dependencies on the packages that produce
// or consume these values.
package domain
