package commands

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

func CreateSelfCheckCommand() *SelfCheckCommand {
	return &SelfCheckCommand{
		fs: flag.NewFlagSet("self-check", flag.ExitOnError),
	}
}

// SelfCheckCommand verifies the agent's prerequisites: valid configuration,
// working netlink access, a reachable DHCP client binary and collision-free
// table ID derivation.
type SelfCheckCommand struct {
	fs   *flag.FlagSet
	ctx  *AppContext
	cfg  *config.Config
	deps *core.AppDependencies
}

func (g *SelfCheckCommand) Name() string {
	return g.fs.Name()
}

func (g *SelfCheckCommand) Init(args []string, ctx *AppContext) error {
	g.ctx = ctx

	if err := g.fs.Parse(args); err != nil {
		return err
	}

	cfg, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.deps = deps

	return nil
}

func (g *SelfCheckCommand) Run() error {
	log.Infof("Running self-check...")
	log.Infof("---------------- Configuration START -----------------")

	if buf, err := g.cfg.SerializeConfig(); err != nil {
		log.Errorf("Failed to serialize config: %v", err)
		return err
	} else {
		os.Stdout.Write(buf.Bytes())
	}

	log.Infof("----------------- Configuration END ------------------")

	hasFailures := false

	if !g.checkNetlink() {
		hasFailures = true
	}
	if !g.checkDHCPClient() {
		hasFailures = true
	}
	if !g.checkTableIDs() {
		hasFailures = true
	}

	if hasFailures {
		log.Errorf("Self-check completed with failures")
		return fmt.Errorf("self-check failed")
	}

	log.Infof("Self-check completed successfully")
	return nil
}

func (g *SelfCheckCommand) checkNetlink() bool {
	links, err := g.deps.Netlink().LinkList()
	if err != nil {
		log.Errorf("[FAIL] netlink: cannot list links: %v", err)
		return false
	}
	log.Infof("[ OK ] netlink: %d links visible", len(links))

	for _, name := range configuredInterfaces(g.cfg) {
		if _, err := g.deps.Netlink().LinkByName(name); err != nil {
			log.Warnf("[WARN] interface %s not present (hotplug radios may appear later)", name)
		} else {
			log.Infof("[ OK ] interface %s present", name)
		}
	}
	return true
}

func (g *SelfCheckCommand) checkDHCPClient() bool {
	fields := strings.Fields(g.cfg.DHCP.GetStartCommand())
	if len(fields) == 0 {
		log.Errorf("[FAIL] dhcp: empty start command")
		return false
	}

	binary := fields[0]
	if path, err := exec.LookPath(binary); err != nil {
		log.Errorf("[FAIL] dhcp: %s not found in PATH", binary)
		return false
	} else {
		log.Infof("[ OK ] dhcp: %s found at %s", binary, path)
	}

	if info, err := os.Stat(g.cfg.DHCP.GetLeaseDir()); err != nil {
		log.Warnf("[WARN] dhcp: lease directory %s not accessible: %v", g.cfg.DHCP.GetLeaseDir(), err)
	} else if !info.IsDir() {
		log.Errorf("[FAIL] dhcp: lease path %s is not a directory", g.cfg.DHCP.GetLeaseDir())
		return false
	} else {
		log.Infof("[ OK ] dhcp: lease directory %s", g.cfg.DHCP.GetLeaseDir())
	}

	return true
}

// checkTableIDs derives every configured interface's table ID and reports
// collisions. Collisions are legal (both interfaces would share a table) but
// worth knowing about before they surprise an operator.
func (g *SelfCheckCommand) checkTableIDs() bool {
	seen := make(map[int]string)
	for _, name := range configuredInterfaces(g.cfg) {
		id := g.deps.RoutingManager().TableIDFor(name)
		if other, dup := seen[id]; dup {
			log.Warnf("[WARN] table %d shared by %s and %s", id, other, name)
		} else {
			seen[id] = name
			log.Infof("[ OK ] table %d -> %s", id, name)
		}
	}
	return true
}
