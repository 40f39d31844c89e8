// Package hashing provides the hash primitives used by wlanpi-netctl.
//
// Two unrelated concerns live here on purpose, because both must stay fixed
// across releases:
//
//   - StableHash64: the deterministic string hash (xxhash64) that routing
//     table IDs are derived from. It must never change algorithm or seed,
//     otherwise crash recovery cannot find the tables a previous run
//     assigned.
//   - File checksums (MD5): cheap content fingerprints used to detect
//     configuration file changes across SIGHUP reloads.
//
// # Example Usage
//
// Deterministic table offsets:
//
//	offset := hashing.StableHash64("wlan0") % 1000
//
// Detecting config changes:
//
//	before, _ := hashing.FileChecksum("/etc/wlanpi-netctl/config.toml")
//	// ... operator edits the file, sends SIGHUP ...
//	after, _ := hashing.FileChecksum("/etc/wlanpi-netctl/config.toml")
//	if before != after {
//	    // reload
//	}
package hashing
