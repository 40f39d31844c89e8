// Package utils provides general-purpose utility functions for wlanpi-netctl.
//
// This package contains small helpers used across the application: IP address
// and prefix manipulation, path handling, and safe file closing.
//
// # Example Usage
//
// IP address conversion:
//
//	ipNet, err := utils.IPv4ToNetmask("192.168.6.40", "255.255.255.0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Address: %s\n", ipNet.String()) // 192.168.6.40/24
//
// Host prefixes for /32 routes and source rules:
//
//	prefix := utils.HostPrefix(net.ParseIP("10.0.0.5")) // 10.0.0.5/32
//
// Path resolution:
//
//	absPath := utils.GetAbsolutePath("config.toml", "/etc/wlanpi-netctl")
//	// Returns: /etc/wlanpi-netctl/config.toml
package utils
