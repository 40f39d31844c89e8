// Package mocks provides shared fakes for testing.
//
// This package should ONLY be imported in test files (_test.go). The Go
// toolchain excludes it from production builds since no production code
// imports it.
package mocks

import (
	"fmt"
	"net"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Link is a minimal netlink.Link for tests. Up models the usual healthy
// pairing of IFF_UP with OperUp; NoCarrier keeps the admin flag while
// reporting the operational state down (unassociated wlan, unplugged eth).
type Link struct {
	LinkName  string
	LinkIndex int
	Up        bool
	NoCarrier bool
	LinkType  string
	MAC       string
}

func (l *Link) Attrs() *netlink.LinkAttrs {
	flags := net.Flags(0)
	var oper netlink.LinkOperState = netlink.OperDown
	if l.Up {
		flags |= net.FlagUp
		if l.NoCarrier {
			oper = netlink.OperLowerLayerDown
		} else {
			flags |= net.FlagRunning
			oper = netlink.OperUp
		}
	}
	var hw net.HardwareAddr
	if l.MAC != "" {
		hw, _ = net.ParseMAC(l.MAC)
	}
	return &netlink.LinkAttrs{
		Name:         l.LinkName,
		Index:        l.LinkIndex,
		Flags:        flags,
		OperState:    oper,
		HardwareAddr: hw,
	}
}

func (l *Link) Type() string {
	if l.LinkType == "" {
		return "device"
	}
	return l.LinkType
}

// FakeNetlink is an in-memory stand-in for the kernel routing state. It
// mimics the filter and error semantics the routing code relies on: table
// zero in a route filter means "all tables", deleting a missing route fails
// with ESRCH, adding a duplicate rule fails with EEXIST.
//
// Error fields, when set, make the corresponding operation fail.
type FakeNetlink struct {
	mu sync.Mutex

	Links  []*Link
	Addrs  map[int][]netlink.Addr
	Routes []netlink.Route
	Rules  []netlink.Rule

	LinkByNameErr error
	AddrListErr   error
	RouteAddErr   error
	RouteDelErr   error
	RouteListErr  error
	RuleAddErr    error
	RuleDelErr    error
	RuleListErr   error

	Calls []string
}

// NewFakeNetlink creates an empty fake.
func NewFakeNetlink() *FakeNetlink {
	return &FakeNetlink{Addrs: make(map[int][]netlink.Addr)}
}

// AddLink registers a link, returning it for convenience.
func (f *FakeNetlink) AddLink(name string, index int, up bool) *Link {
	f.mu.Lock()
	defer f.mu.Unlock()

	link := &Link{LinkName: name, LinkIndex: index, Up: up}
	f.Links = append(f.Links, link)
	return link
}

// SetAddr assigns a single IPv4 address (CIDR form) to a link index.
func (f *FakeNetlink) SetAddr(index int, cidr string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("mocks: bad CIDR %q: %v", cidr, err))
	}
	addr := netlink.Addr{IPNet: &net.IPNet{IP: ip, Mask: ipNet.Mask}}
	f.Addrs[index] = []netlink.Addr{addr}
}

func (f *FakeNetlink) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeNetlink) LinkByName(name string) (netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LinkByName " + name)

	if f.LinkByNameErr != nil {
		return nil, f.LinkByNameErr
	}
	for _, l := range f.Links {
		if l.LinkName == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("link %s not found", name)
}

func (f *FakeNetlink) LinkByIndex(index int) (netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, l := range f.Links {
		if l.LinkIndex == index {
			return l, nil
		}
	}
	return nil, fmt.Errorf("link index %d not found", index)
}

func (f *FakeNetlink) LinkList() ([]netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]netlink.Link, 0, len(f.Links))
	for _, l := range f.Links {
		out = append(out, l)
	}
	return out, nil
}

func (f *FakeNetlink) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AddrListErr != nil {
		return nil, f.AddrListErr
	}
	return append([]netlink.Addr(nil), f.Addrs[link.Attrs().Index]...), nil
}

func (f *FakeNetlink) RouteAdd(route *netlink.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("RouteAdd table=%d dst=%s", effectiveTable(route.Table), dstText(route.Dst)))

	if f.RouteAddErr != nil {
		return f.RouteAddErr
	}

	stored := *route
	stored.Table = effectiveTable(route.Table)
	for i := range f.Routes {
		if routesEqual(&f.Routes[i], &stored) {
			return unix.EEXIST
		}
	}
	f.Routes = append(f.Routes, stored)
	return nil
}

func (f *FakeNetlink) RouteDel(route *netlink.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("RouteDel table=%d dst=%s", effectiveTable(route.Table), dstText(route.Dst)))

	if f.RouteDelErr != nil {
		return f.RouteDelErr
	}

	want := *route
	want.Table = effectiveTable(route.Table)
	for i := range f.Routes {
		if routeMatchesForDel(&f.Routes[i], &want) {
			f.Routes = append(f.Routes[:i], f.Routes[i+1:]...)
			return nil
		}
	}
	return unix.ESRCH
}

func (f *FakeNetlink) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RouteListErr != nil {
		return nil, f.RouteListErr
	}

	var out []netlink.Route
	for _, r := range f.Routes {
		if filter != nil && filterMask&netlink.RT_FILTER_TABLE != 0 &&
			filter.Table != unix.RT_TABLE_UNSPEC && r.Table != filter.Table {
			continue
		}
		if filter != nil && filterMask&netlink.RT_FILTER_OIF != 0 &&
			r.LinkIndex != filter.LinkIndex {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *FakeNetlink) RuleAdd(rule *netlink.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("RuleAdd table=%d prio=%d", rule.Table, rule.Priority))

	if f.RuleAddErr != nil {
		return f.RuleAddErr
	}

	for i := range f.Rules {
		if rulesEqual(&f.Rules[i], rule) {
			return unix.EEXIST
		}
	}
	f.Rules = append(f.Rules, *rule)
	return nil
}

func (f *FakeNetlink) RuleDel(rule *netlink.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("RuleDel table=%d prio=%d", rule.Table, rule.Priority))

	if f.RuleDelErr != nil {
		return f.RuleDelErr
	}

	for i := range f.Rules {
		if ruleMatchesForDel(&f.Rules[i], rule) {
			f.Rules = append(f.Rules[:i], f.Rules[i+1:]...)
			return nil
		}
	}
	return unix.ENOENT
}

func (f *FakeNetlink) RuleListFiltered(family int, filter *netlink.Rule, filterMask uint64) ([]netlink.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RuleListErr != nil {
		return nil, f.RuleListErr
	}

	var out []netlink.Rule
	for _, r := range f.Rules {
		if filter != nil && filterMask&netlink.RT_FILTER_TABLE != 0 && r.Table != filter.Table {
			continue
		}
		if filter != nil && filterMask&netlink.RT_FILTER_PRIORITY != 0 && r.Priority != filter.Priority {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// RoutesInTable returns the stored routes for one table.
func (f *FakeNetlink) RoutesInTable(table int) []netlink.Route {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []netlink.Route
	for _, r := range f.Routes {
		if r.Table == table {
			out = append(out, r)
		}
	}
	return out
}

// RulesForTable returns the stored rules pointing at one table.
func (f *FakeNetlink) RulesForTable(table int) []netlink.Rule {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []netlink.Rule
	for _, r := range f.Rules {
		if r.Table == table {
			out = append(out, r)
		}
	}
	return out
}

// effectiveTable maps the kernel's "table unset" onto the main table.
func effectiveTable(table int) int {
	if table == 0 {
		return unix.RT_TABLE_MAIN
	}
	return table
}

func dstText(dst *net.IPNet) string {
	if dst == nil {
		return "default"
	}
	if ones, _ := dst.Mask.Size(); ones == 0 && dst.IP.IsUnspecified() {
		return "default"
	}
	return dst.String()
}

func ipText(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func routesEqual(a, b *netlink.Route) bool {
	return a.Table == b.Table &&
		dstText(a.Dst) == dstText(b.Dst) &&
		ipText(a.Gw) == ipText(b.Gw) &&
		a.LinkIndex == b.LinkIndex &&
		a.Priority == b.Priority
}

// routeMatchesForDel mimics kernel delete matching: destination and table
// always match, other attributes only when set in the request.
func routeMatchesForDel(stored, want *netlink.Route) bool {
	if stored.Table != want.Table || dstText(stored.Dst) != dstText(want.Dst) {
		return false
	}
	if want.Gw != nil && ipText(stored.Gw) != ipText(want.Gw) {
		return false
	}
	if want.LinkIndex != 0 && stored.LinkIndex != want.LinkIndex {
		return false
	}
	if want.Priority != 0 && stored.Priority != want.Priority {
		return false
	}
	return true
}

func rulesEqual(a, b *netlink.Rule) bool {
	return a.Table == b.Table &&
		a.Priority == b.Priority &&
		dstText(a.Src) == dstText(b.Src) &&
		dstText(a.Dst) == dstText(b.Dst)
}

// ruleMatchesForDel matches on priority and table, then on src/dst when the
// request carries them.
func ruleMatchesForDel(stored, want *netlink.Rule) bool {
	if want.Priority >= 0 && stored.Priority != want.Priority {
		return false
	}
	if want.Table > 0 && stored.Table != want.Table {
		return false
	}
	if want.Src != nil && dstText(stored.Src) != dstText(want.Src) {
		return false
	}
	if want.Dst != nil && dstText(stored.Dst) != dstText(want.Dst) {
		return false
	}
	return true
}
