package routing

import (
	"fmt"
	"net"

	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// IPRoute wraps a netlink route together with the handle used to apply it.
type IPRoute struct {
	*netlink.Route
	nl Netlink
}

func (r *IPRoute) String() string {
	dst := "default"
	if r.Dst != nil && r.Dst.String() != "<nil>" {
		dst = r.Dst.String()
	}

	via := ""
	if r.Gw != nil {
		via = " via " + r.Gw.String()
	}

	linkName := "<nil>"
	if r.LinkIndex > 0 {
		if link, err := r.nl.LinkByIndex(r.LinkIndex); err != nil {
			linkName = "<err: " + err.Error() + ">"
		} else {
			linkName = link.Attrs().Name
		}
	}

	return fmt.Sprintf("table %d: %s%s dev %s (idx=%d) [metric:%d]",
		r.Table, dst, via, linkName, r.LinkIndex, r.Priority)
}

// BuildSubnetRoute builds the on-link route for the interface's own subnet
// inside the given table.
func BuildSubnetRoute(nl Netlink, subnet *net.IPNet, linkIndex int, src net.IP, table int) *IPRoute {
	return &IPRoute{
		Route: &netlink.Route{
			Family:    netlink.FAMILY_V4,
			Dst:       subnet,
			LinkIndex: linkIndex,
			Src:       src,
			Scope:     netlink.SCOPE_LINK,
			Table:     table,
		},
		nl: nl,
	}
}

// BuildDefaultRoute builds a default route via the gateway inside the given
// table. metric zero lets the kernel pick.
func BuildDefaultRoute(nl Netlink, gateway net.IP, linkIndex int, table int, metric int) *IPRoute {
	return &IPRoute{
		Route: &netlink.Route{
			Family: netlink.FAMILY_V4,
			Dst: &net.IPNet{
				IP:   net.IPv4zero,
				Mask: net.CIDRMask(0, 32),
			},
			Gw:        gateway,
			LinkIndex: linkIndex,
			Table:     table,
			Priority:  metric,
		},
		nl: nl,
	}
}

// BuildHostRoute builds a single-host route pinned to an interface, with the
// preferred source address set so replies use the interface's own address.
func BuildHostRoute(nl Netlink, host net.IP, linkIndex int, prefSrc net.IP, table int) *IPRoute {
	return &IPRoute{
		Route: &netlink.Route{
			Family:    netlink.FAMILY_V4,
			Dst:       hostPrefix(host),
			LinkIndex: linkIndex,
			Src:       prefSrc,
			Scope:     netlink.SCOPE_LINK,
			Table:     table,
		},
		nl: nl,
	}
}

func hostPrefix(ip net.IP) *net.IPNet {
	if ip.To4() != nil {
		return &net.IPNet{IP: ip.To4(), Mask: net.CIDRMask(32, 32)}
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}

func (r *IPRoute) Add() error {
	log.Debugf("Adding IP route [%v]", r)
	if err := r.nl.RouteAdd(r.Route); err != nil {
		log.Warnf("Failed to add IP route [%v]: %v", r, err)
		return err
	}

	return nil
}

// AddIfNotExists adds the route unless an equivalent one is already present.
// Returns true when a route was actually added.
func (r *IPRoute) AddIfNotExists() (bool, error) {
	exists, err := r.IsExists()
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.Add(); err != nil {
		return false, err
	}
	return true, nil
}

// IsExists checks the kernel for a route in the same table with the same
// destination and output interface. Destinations are compared textually
// because the kernel reports default routes with a nil destination.
func (r *IPRoute) IsExists() (bool, error) {
	filtered, err := r.nl.RouteListFiltered(r.Family, r.Route,
		netlink.RT_FILTER_TABLE|netlink.RT_FILTER_OIF)
	if err != nil {
		log.Warnf("Checking if IP route exists [%v] failed: %v", r, err)
		return false, err
	}
	for i := range filtered {
		if dstKey(filtered[i].Dst) == dstKey(r.Dst) {
			log.Debugf("Checking if IP route exists [%v]: YES", r)
			return true, nil
		}
	}

	log.Debugf("Checking if IP route exists [%v]: NO", r)
	return false, nil
}

// dstKey normalizes a route destination for comparison; nil and 0.0.0.0/0
// are both the default route.
func dstKey(dst *net.IPNet) string {
	if dst == nil {
		return "default"
	}
	if ones, _ := dst.Mask.Size(); ones == 0 && dst.IP.IsUnspecified() {
		return "default"
	}
	return dst.String()
}

func (r *IPRoute) Del() error {
	log.Debugf("Deleting IP route [%v]", r)
	if err := r.nl.RouteDel(r.Route); err != nil {
		log.Warnf("Failed to delete IP route [%v]: %v", r, err)
		return err
	}

	return nil
}

// DelIfExists deletes the route when present. Returns true when a route was
// actually deleted.
func (r *IPRoute) DelIfExists() (bool, error) {
	exists, err := r.IsExists()
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := r.Del(); err != nil {
		return false, err
	}
	return true, nil
}

// FlushTable removes every route from the given routing table.
func FlushTable(nl Netlink, table int) error {
	log.Debugf("Flushing IP route table [%d]", table)
	routes, err := nl.RouteListFiltered(netlink.FAMILY_V4, &netlink.Route{Table: table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return err
	}

	for i := range routes {
		if err := nl.RouteDel(&routes[i]); err != nil {
			return err
		}
	}

	return nil
}

// ListRoutesInTable returns every route in the given routing table.
func ListRoutesInTable(nl Netlink, table int) ([]*IPRoute, error) {
	routes, err := nl.RouteListFiltered(netlink.FAMILY_V4, &netlink.Route{Table: table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		log.Warnf("Failed to list routes for table %d: %v", table, err)
		return nil, err
	}

	ipRoutes := make([]*IPRoute, 0, len(routes))
	for i := range routes {
		route := routes[i]
		ipRoutes = append(ipRoutes, &IPRoute{Route: &route, nl: nl})
	}

	return ipRoutes, nil
}

// ListRoutesInRange dumps the kernel FIB once and returns the routes whose
// table falls inside [base, base+span). Table RT_TABLE_UNSPEC in the filter
// requests routes from every table.
func ListRoutesInRange(nl Netlink, base, span int) ([]*IPRoute, error) {
	routes, err := nl.RouteListFiltered(netlink.FAMILY_V4,
		&netlink.Route{Table: unix.RT_TABLE_UNSPEC}, netlink.RT_FILTER_TABLE)
	if err != nil {
		log.Warnf("Failed to dump routing tables: %v", err)
		return nil, err
	}

	var ipRoutes []*IPRoute
	for i := range routes {
		if routes[i].Table < base || routes[i].Table >= base+span {
			continue
		}
		route := routes[i]
		ipRoutes = append(ipRoutes, &IPRoute{Route: &route, nl: nl})
	}

	return ipRoutes, nil
}
