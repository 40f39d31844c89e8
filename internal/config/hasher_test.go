package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigHasher_DetectsChanges(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.toml")

	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write(`[network_control]
interfaces = ["wlan0"]
`)

	hasher := NewConfigHasher(configFile)

	first, err := hasher.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("UpdateCurrentConfigHash() error = %v", err)
	}

	// Comment-only edits must not change the semantic hash.
	write(`# managed radios
[network_control]
interfaces = ["wlan0"]
`)
	unchanged, err := hasher.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("UpdateCurrentConfigHash() error = %v", err)
	}
	if unchanged != first {
		t.Errorf("comment edit changed hash: %s != %s", unchanged, first)
	}

	write(`[network_control]
interfaces = ["wlan0", "wlan1"]
`)
	changed, err := hasher.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("UpdateCurrentConfigHash() error = %v", err)
	}
	if changed == first {
		t.Errorf("semantic edit did not change hash")
	}
}

func TestConfigHasher_CurrentHashCached(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configFile, []byte("[network_control]\ninterfaces = [\"wlan0\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	hasher := NewConfigHasher(configFile)

	first, err := hasher.GetCurrentConfigHash()
	if err != nil {
		t.Fatalf("GetCurrentConfigHash() error = %v", err)
	}

	// Delete the file; the cached hash must still be served.
	if err := os.Remove(configFile); err != nil {
		t.Fatal(err)
	}

	cached, err := hasher.GetCurrentConfigHash()
	if err != nil {
		t.Fatalf("GetCurrentConfigHash() with cache error = %v", err)
	}
	if cached != first {
		t.Errorf("cached hash = %s, want %s", cached, first)
	}
}

func TestConfigHasher_AppliedHash(t *testing.T) {
	hasher := NewConfigHasher("/nonexistent")

	if got := hasher.GetAppliedConfigHash(); got != "" {
		t.Errorf("GetAppliedConfigHash() = %q, want empty", got)
	}

	hasher.SetAppliedConfigHash("abc123")
	if got := hasher.GetAppliedConfigHash(); got != "abc123" {
		t.Errorf("GetAppliedConfigHash() = %q, want abc123", got)
	}
}
