package routing

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/rgnets/wlanpi-netctl/internal/errors"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

const resolveTimeout = 5 * time.Second

// HostResolver resolves a hostname to an IPv4 address using the given DNS
// servers. localIP, when set, binds the query socket so the lookup leaves
// through the interface being configured instead of the default route.
type HostResolver func(host string, localIP net.IP, servers []string) (net.IP, error)

// ResolveHostViaInterface is the production HostResolver. IP literals are
// returned as-is without touching the network.
func ResolveHostViaInterface(host string, localIP net.IP, servers []string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, errors.NewResolveError(fmt.Sprintf("host %q is not an IPv4 address", host), nil)
	}

	// No lease DNS servers: fall back to the system resolver.
	if len(servers) == 0 {
		addrs, err := net.LookupIP(host)
		if err != nil {
			return nil, errors.NewResolveError(fmt.Sprintf("failed to resolve %q via system resolver", host), err)
		}
		for _, addr := range addrs {
			if v4 := addr.To4(); v4 != nil {
				return v4, nil
			}
		}
		return nil, errors.NewResolveError(fmt.Sprintf("no IPv4 address for %q", host), nil)
	}

	client := &dns.Client{Timeout: resolveTimeout}
	if localIP != nil {
		client.Dialer = &net.Dialer{
			Timeout:   resolveTimeout,
			LocalAddr: &net.UDPAddr{IP: localIP},
		}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range servers {
		addr := net.JoinHostPort(server, "53")
		resp, _, err := client.Exchange(msg, addr)
		if err != nil {
			log.Debugf("DNS query for %s via %s failed: %v", host, addr, err)
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("server %s answered %s", addr, dns.RcodeToString[resp.Rcode])
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok && a.A != nil {
				log.Debugf("Resolved %s to %s via %s", host, a.A, addr)
				return a.A.To4(), nil
			}
		}
		lastErr = fmt.Errorf("server %s returned no A records", addr)
	}

	return nil, errors.NewResolveError(fmt.Sprintf("failed to resolve %q", host), lastErr)
}
