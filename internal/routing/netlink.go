package routing

import (
	"github.com/vishvananda/netlink"
)

// Netlink is the slice of kernel netlink operations the routing layer uses.
// Production code goes through KernelNetlink; tests substitute a fake so the
// full routing logic runs without CAP_NET_ADMIN.
type Netlink interface {
	LinkByName(name string) (netlink.Link, error)
	LinkByIndex(index int) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	RouteAdd(route *netlink.Route) error
	RouteDel(route *netlink.Route) error
	RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
	RuleAdd(rule *netlink.Rule) error
	RuleDel(rule *netlink.Rule) error
	RuleListFiltered(family int, filter *netlink.Rule, filterMask uint64) ([]netlink.Rule, error)
}

// KernelNetlink forwards every operation to the kernel via the process's
// network namespace.
type KernelNetlink struct{}

var _ Netlink = KernelNetlink{}

func (KernelNetlink) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (KernelNetlink) LinkByIndex(index int) (netlink.Link, error) {
	return netlink.LinkByIndex(index)
}

func (KernelNetlink) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

func (KernelNetlink) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

func (KernelNetlink) RouteAdd(route *netlink.Route) error {
	return netlink.RouteAdd(route)
}

func (KernelNetlink) RouteDel(route *netlink.Route) error {
	return netlink.RouteDel(route)
}

func (KernelNetlink) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	return netlink.RouteListFiltered(family, filter, filterMask)
}

func (KernelNetlink) RuleAdd(rule *netlink.Rule) error {
	return netlink.RuleAdd(rule)
}

func (KernelNetlink) RuleDel(rule *netlink.Rule) error {
	return netlink.RuleDel(rule)
}

func (KernelNetlink) RuleListFiltered(family int, filter *netlink.Rule, filterMask uint64) ([]netlink.Rule, error) {
	return netlink.RuleListFiltered(family, filter, filterMask)
}
