package dhcp

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleLease = `lease {
  interface "wlan0";
  fixed-address 192.168.1.50;
  option subnet-mask 255.255.255.0;
  option routers 192.168.1.1;
  option dhcp-lease-time 86400;
  option domain-name-servers 192.168.1.1, 8.8.8.8;
  option domain-name "lab.example.org";
  renew 1 2026/08/25 10:00:00;
  rebind 1 2026/08/25 20:00:00;
  expire 1 2026/08/25 23:00:00;
}
`

func writeLeaseFile(t *testing.T, content string) *LeaseParser {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dhclient.wlan0.leases")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing lease file: %v", err)
	}
	return NewLeaseParser("wlan0", path)
}

func TestLatestLease(t *testing.T) {
	parser := writeLeaseFile(t, sampleLease)

	lease, err := parser.LatestLease()
	if err != nil {
		t.Fatalf("LatestLease() error: %v", err)
	}
	if lease == nil {
		t.Fatal("LatestLease() = nil, want lease")
	}

	if lease.Interface != "wlan0" {
		t.Errorf("Interface = %q, want wlan0", lease.Interface)
	}
	if lease.FixedAddress != "192.168.1.50" {
		t.Errorf("FixedAddress = %q, want 192.168.1.50", lease.FixedAddress)
	}
	if got := lease.Gateway(); got != "192.168.1.1" {
		t.Errorf("Gateway() = %q, want 192.168.1.1", got)
	}
	if got := lease.DNSServers(); len(got) != 2 || got[0] != "192.168.1.1" || got[1] != "8.8.8.8" {
		t.Errorf("DNSServers() = %v, want [192.168.1.1 8.8.8.8]", got)
	}
	if got := lease.Option("subnet_mask"); got != "255.255.255.0" {
		t.Errorf("subnet_mask = %q, want 255.255.255.0", got)
	}
	if got := lease.Option("domain_name"); got != "lab.example.org" {
		t.Errorf("domain_name = %q, want lab.example.org", got)
	}

	wantExpire := time.Date(2026, 8, 25, 23, 0, 0, 0, time.UTC)
	if lease.Expire == nil || !lease.Expire.Time.Equal(wantExpire) {
		t.Errorf("Expire = %v, want %v", lease.Expire, wantExpire)
	}
	if lease.Renew == nil || lease.Renew.Time.IsZero() {
		t.Errorf("Renew not parsed: %v", lease.Renew)
	}
}

func TestLatestLeaseLastBlockWins(t *testing.T) {
	stale := `lease {
  interface "wlan0";
  fixed-address 10.0.0.9;
  option routers 10.0.0.1;
  expire 1 2026/01/01 00:00:00;
}
`
	parser := writeLeaseFile(t, stale+sampleLease)

	lease, err := parser.LatestLease()
	if err != nil {
		t.Fatalf("LatestLease() error: %v", err)
	}
	if lease.FixedAddress != "192.168.1.50" {
		t.Errorf("FixedAddress = %q, want the last block's 192.168.1.50", lease.FixedAddress)
	}
}

func TestLatestLeaseMissingFile(t *testing.T) {
	parser := NewLeaseParser("wlan0", filepath.Join(t.TempDir(), "nope.leases"))

	lease, err := parser.LatestLease()
	if err != nil {
		t.Fatalf("LatestLease() error: %v", err)
	}
	if lease != nil {
		t.Fatalf("LatestLease() = %+v, want nil for missing file", lease)
	}
}

func TestParseLeaseDate(t *testing.T) {
	tests := []struct {
		in    string
		never bool
		want  time.Time
	}{
		{"never", true, time.Time{}},
		{"epoch 1756500000", false, time.Unix(1756500000, 0).UTC()},
		{"3 2026/08/26 12:30:45", false, time.Date(2026, 8, 26, 12, 30, 45, 0, time.UTC)},
	}

	for _, tt := range tests {
		got := parseLeaseDate(tt.in)
		if got == nil {
			t.Errorf("parseLeaseDate(%q) = nil", tt.in)
			continue
		}
		if got.Never != tt.never {
			t.Errorf("parseLeaseDate(%q).Never = %v, want %v", tt.in, got.Never, tt.never)
		}
		if !tt.never && !got.Time.Equal(tt.want) {
			t.Errorf("parseLeaseDate(%q) = %v, want %v", tt.in, got.Time, tt.want)
		}
	}
}

func TestParseLeaseDateGarbage(t *testing.T) {
	if got := parseLeaseDate("not a date"); got != nil {
		t.Errorf("parseLeaseDate garbage = %v, want nil", got)
	}
}

func TestFlatten(t *testing.T) {
	parser := writeLeaseFile(t, sampleLease)
	lease, err := parser.LatestLease()
	if err != nil {
		t.Fatalf("LatestLease() error: %v", err)
	}

	info := lease.Flatten()
	if info.IPAddress != "192.168.1.50" || info.Gateway != "192.168.1.1" {
		t.Errorf("Flatten() ip=%q gw=%q", info.IPAddress, info.Gateway)
	}
	if info.SubnetMask != "255.255.255.0" {
		t.Errorf("Flatten() subnet mask = %q", info.SubnetMask)
	}
	if info.LeaseTime != "86400" {
		t.Errorf("Flatten() lease time = %q", info.LeaseTime)
	}
	if info.Expires == "" {
		t.Error("Flatten() expires empty")
	}
}

func TestSplitLeaseBlocksTruncated(t *testing.T) {
	// A block cut off mid-write must not panic or be returned.
	blocks := splitLeaseBlocks("lease {\n  interface \"wlan0\";\n")
	if len(blocks) != 0 {
		t.Errorf("splitLeaseBlocks truncated = %d blocks, want 0", len(blocks))
	}
}
