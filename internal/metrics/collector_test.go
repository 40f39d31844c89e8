package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rgnets/wlanpi-netctl/internal/domain"
)

type fakeManager struct {
	running bool
	managed map[string]domain.InterfaceInfo
}

func (f *fakeManager) Running() bool { return f.running }

func (f *fakeManager) ManagedInterfaces() map[string]domain.InterfaceInfo { return f.managed }

type fakeRouting struct{}

func (fakeRouting) Status(name string) *domain.RoutingStatus {
	return &domain.RoutingStatus{Configured: true, TableID: 1100, RouteCount: 2, MainTableRoutes: 1}
}

type fakeBus struct{}

func (fakeBus) Stats() (uint64, uint64) { return 42, 3 }
func (fakeBus) SubscriberCount() int    { return 2 }

type fakeDHCP struct{}

func (fakeDHCP) Stats() (uint64, uint64) { return 7, 1 }

func TestCollectorScrape(t *testing.T) {
	mgr := &fakeManager{
		running: true,
		managed: map[string]domain.InterfaceInfo{
			"wlan0": {Name: "wlan0", State: domain.InterfaceStateUp},
			"eth0":  {Name: "eth0", State: domain.InterfaceStateDown},
		},
	}
	handler := Handler(NewCollector(mgr, fakeRouting{}, fakeBus{}, fakeDHCP{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("scrape status %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"netctl_up 1",
		`netctl_managed_interfaces{state="up"} 1`,
		`netctl_managed_interfaces{state="down"} 1`,
		`netctl_interface_routing_configured{interface="wlan0"} 1`,
		`netctl_interface_table_routes{interface="wlan0"} 2`,
		`netctl_interface_shadow_routes{interface="eth0"} 1`,
		"netctl_bus_messages_published_total 42",
		"netctl_bus_messages_dropped_total 3",
		"netctl_dhcp_negotiations_total 7",
		"netctl_dhcp_failures_total 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
