// Package routing manages per-interface policy routing for the agent: a
// deterministic routing table per interface, the rule pair that steers the
// interface's traffic into it, host routes pinned to an interface, and the
// startup cleanup that reclaims state from a previous run.
//
// All kernel access goes through the Netlink interface so the logic is
// testable without privileges; KernelNetlink is the production
// implementation.
package routing
