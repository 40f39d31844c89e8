// Package log provides simple leveled logging for wlanpi-netctl.
//
// This package implements a lightweight logging system with colored,
// timestamped output and support for different log levels: DEBUG, INFO,
// WARN, and ERROR. It provides global logging functions that can be used
// throughout the application.
//
// # Log Levels
//
//   - DEBUG: Detailed diagnostic information (only shown in verbose mode)
//   - INFO: General informational messages
//   - WARN: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures and exceptions
//
// # Example Usage
//
// Basic logging:
//
//	log.Infof("Starting network control manager")
//	log.Warnf("No DHCP lease found for %s", iface)
//	log.Errorf("Failed to add route: %v", err)
//
// Enabling verbose mode for debug output (also via WLANPI_NETCTL_DEBUG=1):
//
//	log.SetVerbose(true)
//	log.Debugf("Netlink event: %+v", event)
//
// Fatal errors that exit the application:
//
//	if err != nil {
//	    log.Fatalf("Critical error: %v", err) // Exits with code 1
//	}
//
// Output control for CLI commands that print results to stdout:
//
//	log.SetForceStdErr(true)
package log
