package commands

import (
	"fmt"

	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/core"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

type AppContext struct {
	ConfigPath string
	Verbose    bool
}

// loadAndValidateConfigOrFail loads configuration from file and validates it.
// This performs structural validation only; unknown interfaces are warned
// about at service start, not here, since hotplug radios may appear later.
func loadAndValidateConfigOrFail(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	if err := cfg.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return cfg, nil
}

// buildDependencies loads the config and wires the production dependency
// container for one-shot commands.
func buildDependencies(ctx *AppContext) (*config.Config, *core.AppDependencies, error) {
	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, core.NewAppDependencies(cfg, ctx.ConfigPath), nil
}

func configuredInterfaces(cfg *config.Config) []string {
	if cfg == nil || cfg.NetworkControl == nil {
		return nil
	}
	return cfg.NetworkControl.Interfaces
}
