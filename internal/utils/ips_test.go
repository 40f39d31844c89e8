package utils

import (
	"net"
	"testing"
)

func TestIPv4ToNetmask(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		mask    string
		want    string
		wantErr bool
	}{
		{"class C", "192.168.6.40", "255.255.255.0", "192.168.6.40/24", false},
		{"class A", "10.1.2.3", "255.0.0.0", "10.1.2.3/8", false},
		{"point to point", "172.16.0.1", "255.255.255.255", "172.16.0.1/32", false},
		{"invalid ip", "300.1.1.1", "255.255.255.0", "", true},
		{"invalid mask", "192.168.1.1", "garbage", "", true},
		{"ipv6 address rejected", "2001:db8::1", "255.255.255.0", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IPv4ToNetmask(tt.ip, tt.mask)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IPv4ToNetmask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.String() != tt.want {
				t.Errorf("IPv4ToNetmask() = %v, want %v", got.String(), tt.want)
			}
		})
	}
}

func TestIsIPv4(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"192.168.1.1", true},
		{"8.8.8.8", true},
		{"2001:db8::1", false},
		{"example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsIPv4(tt.input); got != tt.want {
			t.Errorf("IsIPv4(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsLinkLocal(t *testing.T) {
	if !IsLinkLocal(net.ParseIP("169.254.10.1")) {
		t.Errorf("expected 169.254.10.1 to be link-local")
	}
	if !IsLinkLocal(net.ParseIP("fe80::1")) {
		t.Errorf("expected fe80::1 to be link-local")
	}
	if IsLinkLocal(net.ParseIP("192.168.1.1")) {
		t.Errorf("expected 192.168.1.1 to not be link-local")
	}
	if IsLinkLocal(nil) {
		t.Errorf("expected nil to not be link-local")
	}
}

func TestHostPrefix(t *testing.T) {
	got := HostPrefix(net.ParseIP("10.0.0.5"))
	if got.String() != "10.0.0.5/32" {
		t.Errorf("HostPrefix() = %v, want 10.0.0.5/32", got.String())
	}

	got = HostPrefix(net.ParseIP("2001:db8::1"))
	if got.String() != "2001:db8::1/128" {
		t.Errorf("HostPrefix() = %v, want 2001:db8::1/128", got.String())
	}
}

func TestNetworkOf(t *testing.T) {
	_, addr, err := net.ParseCIDR("192.168.6.40/24")
	if err != nil {
		t.Fatal(err)
	}
	// ParseCIDR already masks, so build an unmasked one by hand.
	unmasked := &net.IPNet{IP: net.ParseIP("192.168.6.40").To4(), Mask: addr.Mask}

	got := NetworkOf(unmasked)
	if got.String() != "192.168.6.0/24" {
		t.Errorf("NetworkOf() = %v, want 192.168.6.0/24", got.String())
	}
}
