package commands

import (
	"flag"
	"fmt"

	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

func CreateRecoverCommand() *RecoverCommand {
	return &RecoverCommand{
		fs: flag.NewFlagSet("recover", flag.ExitOnError),
	}
}

// RecoverCommand runs the crash-recovery sweep standalone: derive each
// configured interface's table ID and remove any leftover routes and rules
// from a previous run that died without tearing down.
type RecoverCommand struct {
	fs   *flag.FlagSet
	deps *core.AppDependencies
}

func (g *RecoverCommand) Name() string {
	return g.fs.Name()
}

func (g *RecoverCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	_, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	g.deps = deps

	return nil
}

func (g *RecoverCommand) Run() error {
	log.Infof("Sweeping orphaned routing state...")
	if err := g.deps.RoutingManager().StartupCleanup(); err != nil {
		return fmt.Errorf("recovery sweep failed: %v", err)
	}
	log.Infof("Recovery sweep complete")
	return nil
}
