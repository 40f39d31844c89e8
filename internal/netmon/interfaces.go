package netmon

import (
	"net"
	"strings"

	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/routing"
	"github.com/rgnets/wlanpi-netctl/internal/utils"
	"github.com/vishvananda/netlink"
)

// ClassifyInterface buckets an interface by its kernel name.
func ClassifyInterface(name string) domain.InterfaceType {
	switch {
	case name == "lo":
		return domain.InterfaceTypeLoopback
	case strings.HasPrefix(name, "wlan"), strings.HasPrefix(name, "wlp"),
		strings.HasPrefix(name, "wlx"), strings.HasPrefix(name, "ath"):
		return domain.InterfaceTypeWireless
	case strings.HasPrefix(name, "eth"), strings.HasPrefix(name, "en"):
		return domain.InterfaceTypeEthernet
	default:
		return domain.InterfaceTypeOther
	}
}

// ListInterfaces snapshots every kernel link, classified and with its first
// usable IPv4 address. Used by status surfaces that want the full picture,
// not just the managed set.
func ListInterfaces(nl routing.Netlink) ([]domain.InterfaceInfo, error) {
	links, err := nl.LinkList()
	if err != nil {
		return nil, err
	}
	infos := make([]domain.InterfaceInfo, 0, len(links))
	for _, link := range links {
		infos = append(infos, *buildInterfaceInfo(nl, link))
	}
	return infos, nil
}

// linkState classifies operational state. Admin up alone is not enough: an
// unassociated wlan or unplugged eth keeps IFF_UP with no carrier, and DHCP
// on a dead link is wasted work. Up means IFF_UP plus OperUp.
func linkState(attrs *netlink.LinkAttrs) domain.InterfaceState {
	if attrs.Flags&net.FlagUp != 0 && attrs.OperState == netlink.OperUp {
		return domain.InterfaceStateUp
	}
	return domain.InterfaceStateDown
}

// buildInterfaceInfo snapshots a link: flags, classification and the first
// usable (non-link-local) IPv4 address.
func buildInterfaceInfo(nl routing.Netlink, link netlink.Link) *domain.InterfaceInfo {
	attrs := link.Attrs()
	info := &domain.InterfaceInfo{
		Name:       attrs.Name,
		Index:      attrs.Index,
		State:      linkState(attrs),
		Type:       ClassifyInterface(attrs.Name),
		MACAddress: attrs.HardwareAddr.String(),
	}

	addrs, err := nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return info
	}
	for _, addr := range addrs {
		if addr.IPNet == nil || addr.IP == nil || utils.IsLinkLocal(addr.IP) {
			continue
		}
		if v4 := addr.IP.To4(); v4 != nil {
			info.IPAddress = &net.IPNet{IP: v4, Mask: addr.Mask}
			break
		}
	}
	return info
}
