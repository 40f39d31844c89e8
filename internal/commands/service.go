package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rgnets/wlanpi-netctl/internal/api"
	"github.com/rgnets/wlanpi-netctl/internal/components"
	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/core"
	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/rgnets/wlanpi-netctl/internal/metrics"
)

func CreateServiceCommand() *ServiceCommand {
	return &ServiceCommand{
		fs: flag.NewFlagSet("service", flag.ExitOnError),
	}
}

// ServiceCommand runs the agent as a daemon: crash recovery, netlink
// monitoring, DHCP lifecycle and the HTTP API.
type ServiceCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
	ctx *AppContext

	deps         *core.AppDependencies
	configHasher *config.ConfigHasher

	netctlSvc *components.NetctlService

	apiServer *api.Server
	apiRunner *RestartableRunner
}

func (s *ServiceCommand) Name() string {
	return s.fs.Name()
}

func (s *ServiceCommand) Init(args []string, ctx *AppContext) error {
	s.ctx = ctx

	if err := s.fs.Parse(args); err != nil {
		return err
	}

	cfg, deps, err := buildDependencies(ctx)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.deps = deps
	s.configHasher = deps.ConfigHasher()

	s.warnAboutMissingInterfaces()

	s.netctlSvc = components.NewNetctlService(s.deps)

	return nil
}

func (s *ServiceCommand) Run() error {
	log.Infof("Starting wlanpi-netctl service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	if err := s.netctlSvc.Start(); err != nil {
		log.Errorf("Failed to start network control service: %v", err)
		log.Warnf("Service will continue without routing. Fix the configuration and restart.")
	}

	if s.cfg.General.IsAPIEnabled() {
		bindAddr := s.cfg.General.GetAPIListen()
		if err := s.startAPIServer(ctx, bindAddr); err != nil {
			log.Errorf("Failed to start API server: %v", err)
			log.Warnf("HTTP API will not be available")
		}
	} else {
		log.Infof("REST API is disabled")
	}

	// Record the config hash the running service actually applied
	if hash, err := s.configHasher.CalculateHash(s.cfg); err == nil {
		s.configHasher.SetAppliedConfigHash(hash)
	}

	log.Infof("Service started successfully.")
	log.Infof("Send SIGHUP to reload configuration, SIGUSR1 to re-run interface discovery")

	for sig := range sigChan {
		switch sig {
		case syscall.SIGHUP:
			log.Infof("Received SIGHUP signal, reloading configuration...")
			if err := s.reload(); err != nil {
				log.Errorf("Failed to reload configuration: %v", err)
			}

		case syscall.SIGUSR1:
			log.Infof("Received SIGUSR1 signal, re-running interface discovery...")
			s.deps.Manager().DiscoverInterfaces()

		case syscall.SIGINT, syscall.SIGTERM:
			log.Infof("Received signal %v, shutting down...", sig)
			return s.shutdown()
		}
	}
	return nil
}

// startAPIServer starts the HTTP API server under a restartable runner.
func (s *ServiceCommand) startAPIServer(ctx context.Context, bindAddr string) error {
	log.Infof("Starting wlanpi-netctl API server on %s", bindAddr)
	log.Infof("")
	log.Infof("Access restricted to private subnets only:")
	log.Infof("  IPv4: 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16, 127.0.0.0/8")
	log.Infof("  IPv6: fc00::/7, fe80::/10, ::1/128")
	log.Infof("")

	handler := api.NewHandler(
		s.deps.Manager(),
		s.deps.Bus(),
		s.deps.Netlink(),
		s.configHasher,
		s.ctx.ConfigPath,
	)
	s.apiServer = api.NewServer(bindAddr, handler, metrics.Handler(s.deps.Collector()))

	s.apiRunner = NewRestartableRunner(RunnerConfig{
		Name:           "API server",
		MaxRestarts:    0, // unlimited restarts
		RestartBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}, func(runCtx context.Context) error {
		return s.apiServer.Start()
	})

	return s.apiRunner.Start(ctx)
}

// reload re-reads the configuration and, if its semantic hash differs from
// the applied one, restarts the control core with the new settings. The API
// server keeps running; it reads config from disk on each request that needs
// it.
func (s *ServiceCommand) reload() error {
	currentHash, err := s.configHasher.UpdateCurrentConfigHash()
	if err != nil {
		return fmt.Errorf("failed to hash configuration: %w", err)
	}

	if currentHash == s.configHasher.GetAppliedConfigHash() {
		log.Infof("Configuration unchanged, nothing to reload")
		return nil
	}

	cfg, err := loadAndValidateConfigOrFail(s.ctx.ConfigPath)
	if err != nil {
		return err
	}

	log.Infof("Configuration changed, restarting network control...")

	if s.netctlSvc.IsRunning() {
		if err := s.netctlSvc.Stop(); err != nil {
			log.Errorf("Error stopping network control service: %v", err)
		}
	}

	s.cfg = cfg
	s.deps = core.NewAppDependencies(cfg, s.ctx.ConfigPath)
	s.netctlSvc = components.NewNetctlService(s.deps)
	s.warnAboutMissingInterfaces()

	if err := s.netctlSvc.Start(); err != nil {
		return fmt.Errorf("failed to restart network control service: %w", err)
	}

	s.configHasher.SetAppliedConfigHash(currentHash)
	log.Infof("Configuration reloaded successfully")
	return nil
}

// warnAboutMissingInterfaces logs configured interfaces that do not exist
// yet. Not an error: hotplug radios may appear after start.
func (s *ServiceCommand) warnAboutMissingInterfaces() {
	if s.cfg.NetworkControl == nil {
		return
	}
	for _, name := range s.cfg.NetworkControl.Interfaces {
		if _, err := s.deps.Netlink().LinkByName(name); err != nil {
			log.Warnf("Configured interface %s not present (yet), will pick it up on hotplug", name)
		}
	}
}

// shutdown performs graceful shutdown of all components.
func (s *ServiceCommand) shutdown() error {
	log.Infof("Shutting down wlanpi-netctl service...")

	if s.netctlSvc.IsRunning() {
		if err := s.netctlSvc.Stop(); err != nil {
			log.Errorf("Failed to stop network control service: %v", err)
		}
	}

	if s.apiServer != nil {
		log.Infof("Stopping API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.apiServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Error during API server shutdown: %v", err)
		}
	}

	if s.apiRunner != nil {
		s.apiRunner.Stop()
	}

	log.Infof("Service stopped successfully")
	return nil
}
