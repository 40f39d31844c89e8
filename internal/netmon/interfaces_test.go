package netmon

import (
	"net"
	"testing"

	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/mocks"
	"github.com/vishvananda/netlink"
)

func TestClassifyInterface(t *testing.T) {
	tests := []struct {
		name string
		want domain.InterfaceType
	}{
		{"wlan0", domain.InterfaceTypeWireless},
		{"wlan1", domain.InterfaceTypeWireless},
		{"wlp2s0", domain.InterfaceTypeWireless},
		{"wlx00c0ca981236", domain.InterfaceTypeWireless},
		{"ath0", domain.InterfaceTypeWireless},
		{"eth0", domain.InterfaceTypeEthernet},
		{"enp3s0", domain.InterfaceTypeEthernet},
		{"lo", domain.InterfaceTypeLoopback},
		{"usb0", domain.InterfaceTypeOther},
		{"docker0", domain.InterfaceTypeOther},
	}

	for _, tt := range tests {
		if got := ClassifyInterface(tt.name); got != tt.want {
			t.Errorf("ClassifyInterface(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestLinkStateNeedsOperationalUp(t *testing.T) {
	fake := mocks.NewFakeNetlink()
	tests := []struct {
		name string
		link *mocks.Link
		want domain.InterfaceState
	}{
		{"admin and oper up", &mocks.Link{LinkName: "wlan0", LinkIndex: 3, Up: true}, domain.InterfaceStateUp},
		{"admin up without carrier", &mocks.Link{LinkName: "wlan0", LinkIndex: 3, Up: true, NoCarrier: true}, domain.InterfaceStateDown},
		{"admin down", &mocks.Link{LinkName: "wlan0", LinkIndex: 3}, domain.InterfaceStateDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := buildInterfaceInfo(fake, tt.link)
			if info.State != tt.want {
				t.Errorf("state = %s, want %s", info.State, tt.want)
			}
		})
	}
}

func TestBuildInterfaceInfoSkipsLinkLocal(t *testing.T) {
	fake := mocks.NewFakeNetlink()
	link := fake.AddLink("wlan0", 3, true)

	linkLocal := netlink.Addr{IPNet: &net.IPNet{
		IP:   net.ParseIP("169.254.12.34").To4(),
		Mask: net.CIDRMask(16, 32),
	}}
	global := netlink.Addr{IPNet: &net.IPNet{
		IP:   net.ParseIP("192.168.1.50").To4(),
		Mask: net.CIDRMask(24, 32),
	}}
	fake.Addrs[3] = []netlink.Addr{linkLocal, global}

	info := buildInterfaceInfo(fake, link)
	if info.IPString() != "192.168.1.50/24" {
		t.Errorf("picked %q, want the non-link-local address", info.IPString())
	}
}

func TestBuildInterfaceInfoNoAddress(t *testing.T) {
	fake := mocks.NewFakeNetlink()
	link := fake.AddLink("eth0", 2, false)

	info := buildInterfaceInfo(fake, link)
	if info.HasIP() {
		t.Error("HasIP() = true for addressless link")
	}
	if info.State != domain.InterfaceStateDown {
		t.Errorf("state = %s, want down", info.State)
	}
	if info.Type != domain.InterfaceTypeEthernet {
		t.Errorf("type = %s", info.Type)
	}
}
