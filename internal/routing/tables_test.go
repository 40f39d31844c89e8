package routing

import (
	"testing"

	"github.com/rgnets/wlanpi-netctl/internal/config"
)

func TestDeriveTableIDDeterministic(t *testing.T) {
	names := []string{"wlan0", "wlan1", "eth0", "usb0", "wlp2s0"}

	for _, name := range names {
		first := DeriveTableID(name, config.DefaultBaseTableID)
		for i := 0; i < 10; i++ {
			if got := DeriveTableID(name, config.DefaultBaseTableID); got != first {
				t.Fatalf("DeriveTableID(%q) not stable: %d != %d", name, got, first)
			}
		}
		if first < config.DefaultBaseTableID || first >= config.DefaultBaseTableID+config.TableIDSpan {
			t.Errorf("DeriveTableID(%q) = %d outside [%d, %d)",
				name, first, config.DefaultBaseTableID, config.DefaultBaseTableID+config.TableIDSpan)
		}
	}
}

func TestDeriveTableIDBaseOffset(t *testing.T) {
	low := DeriveTableID("wlan0", 1000)
	high := DeriveTableID("wlan0", 5000)
	if high-low != 4000 {
		t.Errorf("base change should shift the table: %d vs %d", low, high)
	}
}

func TestManagerTableIDStableAcrossInstances(t *testing.T) {
	m1, _ := newTestManager()
	m2, _ := newTestManager()

	if a, b := m1.TableIDFor("wlan0"), m2.TableIDFor("wlan0"); a != b {
		t.Errorf("table ID differs across instances: %d != %d", a, b)
	}

	// Cached lookups agree with the derivation.
	if got, want := m1.TableIDFor("wlan0"), DeriveTableID("wlan0", config.DefaultBaseTableID); got != want {
		t.Errorf("TableIDFor() = %d, DeriveTableID() = %d", got, want)
	}
}
