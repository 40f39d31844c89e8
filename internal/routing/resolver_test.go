package routing

import (
	"net"
	"testing"
)

func TestResolveHostViaInterfaceIPLiteral(t *testing.T) {
	ip, err := ResolveHostViaInterface("192.0.2.10", nil, nil)
	if err != nil {
		t.Fatalf("ResolveHostViaInterface() error: %v", err)
	}
	if ip.String() != "192.0.2.10" {
		t.Errorf("ip = %v", ip)
	}
	if len(ip) != net.IPv4len {
		t.Errorf("expected 4-byte address, got %d bytes", len(ip))
	}
}

func TestResolveHostViaInterfaceIPv6Literal(t *testing.T) {
	if _, err := ResolveHostViaInterface("2001:db8::1", nil, nil); err == nil {
		t.Fatal("expected error for IPv6 literal")
	}
}

func TestResolveHostViaInterfaceSystemFallback(t *testing.T) {
	// Without lease DNS servers the lookup goes through the system
	// resolver; .invalid is guaranteed to never resolve.
	if _, err := ResolveHostViaInterface("host.invalid", nil, nil); err == nil {
		t.Fatal("expected error for an unresolvable host")
	}
}
