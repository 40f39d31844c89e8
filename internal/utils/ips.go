package utils

import (
	"fmt"
	"net"
)

// IPv4ToNetmask combines a dotted-quad IPv4 address and a dotted-quad netmask
// into a *net.IPNet (e.g. "192.168.6.40" + "255.255.255.0" -> 192.168.6.40/24).
func IPv4ToNetmask(ipStr, maskStr string) (*net.IPNet, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid IPv4 address: %s", ipStr)
	}

	mask := net.ParseIP(maskStr)
	if mask == nil || mask.To4() == nil {
		return nil, fmt.Errorf("invalid IPv4 mask: %s", maskStr)
	}

	return &net.IPNet{
		IP:   ip,
		Mask: net.IPMask(mask.To4()),
	}, nil
}

// IsIPv4 reports whether s is a literal IPv4 address.
func IsIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// IsLinkLocal reports whether ip is a link-local unicast address
// (169.254.0.0/16 or fe80::/10). Link-local addresses are never usable as a
// preferred source for routed traffic.
func IsLinkLocal(ip net.IP) bool {
	return ip != nil && ip.IsLinkLocalUnicast()
}

// HostPrefix returns the single-address network for ip (/32 for IPv4,
// /128 for IPv6).
func HostPrefix(ip net.IP) *net.IPNet {
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}

// NetworkOf returns the network prefix of addr with host bits cleared
// (e.g. 192.168.6.40/24 -> 192.168.6.0/24).
func NetworkOf(addr *net.IPNet) *net.IPNet {
	return &net.IPNet{
		IP:   addr.IP.Mask(addr.Mask),
		Mask: addr.Mask,
	}
}
