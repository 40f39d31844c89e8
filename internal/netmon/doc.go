// Package netmon watches kernel netlink for link, address and route changes
// on a fixed set of interfaces and hands fresh interface snapshots to
// registered callbacks. A single goroutine reads all subscriptions, so
// consumers observe changes serialized in kernel order.
package netmon
