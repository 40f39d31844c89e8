package routing

import (
	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/hashing"
)

// defaultRouteMetric is the kernel's conventional metric for a default route
// when no existing default is present to derive from.
const defaultRouteMetric = 1024

// DeriveTableID maps an interface name onto a routing table in
// [base, base+config.TableIDSpan). The mapping is a pure function of the
// name, so it survives restarts and lets startup cleanup find tables created
// by a previous run.
func DeriveTableID(name string, base int) int {
	return base + int(hashing.StableHash64(name)%uint64(config.TableIDSpan))
}
