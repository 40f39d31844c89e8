package api

import (
	"encoding/json"
	"net/http"
	"os/exec"
	"strings"

	"github.com/rgnets/wlanpi-netctl/internal/config"
)

// CheckResult is the outcome of a single health check.
type CheckResult struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// HealthCheckResponse aggregates all health checks.
type HealthCheckResponse struct {
	Healthy bool                   `json:"healthy"`
	Checks  map[string]CheckResult `json:"checks"`
}

// CheckHealth performs health checks on the agent and its environment.
// GET /api/v1/health
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthCheckResponse{
		Healthy: true,
		Checks:  make(map[string]CheckResult),
	}

	// Check configuration validity
	cfg, err := config.LoadConfig(h.configPath)
	if err != nil {
		response.Healthy = false
		response.Checks["config"] = CheckResult{
			Passed:  false,
			Message: "Failed to load configuration: " + err.Error(),
		}
	} else if err := cfg.ValidateConfig(); err != nil {
		response.Healthy = false
		response.Checks["config"] = CheckResult{
			Passed:  false,
			Message: "Configuration validation failed: " + err.Error(),
		}
	} else {
		response.Checks["config"] = CheckResult{
			Passed:  true,
			Message: "Configuration is valid",
		}
	}

	// Check netlink reachability
	if _, err := h.nl.LinkList(); err != nil {
		response.Healthy = false
		response.Checks["netlink"] = CheckResult{
			Passed:  false,
			Message: "Failed to list links via netlink: " + err.Error(),
		}
	} else {
		response.Checks["netlink"] = CheckResult{
			Passed:  true,
			Message: "Netlink is reachable",
		}
	}

	// Check the DHCP client binary is available
	binary := dhcpBinary(cfg)
	if binary == "" {
		response.Checks["dhclient"] = CheckResult{
			Passed:  true,
			Message: "No DHCP client command configured",
		}
	} else if _, err := exec.LookPath(binary); err != nil {
		response.Healthy = false
		response.Checks["dhclient"] = CheckResult{
			Passed:  false,
			Message: binary + " not found in PATH",
		}
	} else {
		response.Checks["dhclient"] = CheckResult{
			Passed:  true,
			Message: binary + " is available",
		}
	}

	// Check the control core is running
	if h.controller.Running() {
		response.Checks["manager"] = CheckResult{
			Passed:  true,
			Message: "Network control manager is running",
		}
	} else {
		response.Healthy = false
		response.Checks["manager"] = CheckResult{
			Passed:  false,
			Message: "Network control manager is not running",
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !response.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

// dhcpBinary extracts the executable name from the configured start command.
func dhcpBinary(cfg *config.Config) string {
	var dhcpCfg *config.DHCPConfig
	if cfg != nil {
		dhcpCfg = cfg.DHCP
	}
	fields := strings.Fields(dhcpCfg.GetStartCommand())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
