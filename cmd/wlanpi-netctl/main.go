package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rgnets/wlanpi-netctl/internal/commands"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

func main() {
	ctx := &commands.AppContext{}

	flag.StringVar(&ctx.ConfigPath, "config", "/etc/wlanpi-netctl/config.toml", "Path to configuration file")
	flag.BoolVar(&ctx.Verbose, "verbose", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "WLAN Pi Network Control Agent\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  service                 Run as a daemon (netlink monitoring, DHCP lifecycle, API server)\n")
		fmt.Fprintf(os.Stderr, "  configure IFACE         Set up policy routing (and DHCP) for an interface\n")
		fmt.Fprintf(os.Stderr, "  teardown IFACE          Remove an interface's routing state and DHCP client\n")
		fmt.Fprintf(os.Stderr, "  status [IFACE]          Show routing and lease status\n")
		fmt.Fprintf(os.Stderr, "  interfaces              List kernel interfaces\n")
		fmt.Fprintf(os.Stderr, "  lease IFACE             Show the current DHCP lease\n")
		fmt.Fprintf(os.Stderr, "  resolve HOST IFACE      Resolve a host through an interface's DNS servers\n")
		fmt.Fprintf(os.Stderr, "  recover                 Sweep orphaned routing tables and rules\n")
		fmt.Fprintf(os.Stderr, "  self-check              Verify configuration and runtime prerequisites\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if ctx.Verbose {
		log.SetVerbose(true)
	}

	if _, err := os.Stat(ctx.ConfigPath); errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Configuration file not found: %s", ctx.ConfigPath)
	}

	cmds := []commands.Runner{
		commands.CreateServiceCommand(),
		commands.CreateConfigureCommand(),
		commands.CreateTeardownCommand(),
		commands.CreateStatusCommand(),
		commands.CreateInterfacesCommand(),
		commands.CreateLeaseCommand(),
		commands.CreateResolveCommand(),
		commands.CreateRecoverCommand(),
		commands.CreateSelfCheckCommand(),
	}

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:], ctx); err != nil {
				log.Fatalf("Failed to initialize command: %v", err)
			}

			if err := cmd.Run(); err != nil {
				log.Fatalf("Failed to run command: %v", err)
			}

			os.Exit(0)
		}
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}
