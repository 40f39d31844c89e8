package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/config"
	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/netmon"
	"github.com/rgnets/wlanpi-netctl/internal/routing"
)

// Controller is the slice of the control core the API depends on. The HTTP
// surface is a thin JSON mirror of the command bus; everything stateful goes
// through HandleCommand.
type Controller interface {
	HandleCommand(ctx context.Context, cmd bus.Command) (interface{}, error)
	ReleaseLease(ctx context.Context, iface string) bool
	RenewLease(ctx context.Context, iface string) bool
	LeaseInfo(iface string) *domain.LeaseInfo
	Running() bool
}

// EventSource hands out filtered bus subscriptions for the SSE stream.
type EventSource interface {
	Subscribe(bufSize int, kinds ...bus.Kind) <-chan bus.Message
	Unsubscribe(ch <-chan bus.Message)
}

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	controller Controller
	events     EventSource
	nl         routing.Netlink
	hasher     *config.ConfigHasher
	configPath string
}

// NewHandler creates the handler set backing the API routes.
func NewHandler(controller Controller, events EventSource, nl routing.Netlink, hasher *config.ConfigHasher, configPath string) *Handler {
	return &Handler{
		controller: controller,
		events:     events,
		nl:         nl,
		hasher:     hasher,
		configPath: configPath,
	}
}

// StatusResponse is the agent-level status snapshot.
type StatusResponse struct {
	Running       bool                              `json:"running"`
	ConfigPath    string                            `json:"config_path"`
	ConfigChanged bool                              `json:"config_changed"`
	Interfaces    map[string]domain.InterfaceStatus `json:"interfaces"`
}

// GetStatus returns the overall agent status plus every managed interface.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.controller.HandleCommand(r.Context(), bus.GetInterfaceStatus{})
	if err != nil {
		WriteInternalError(w, "Failed to collect status: "+err.Error())
		return
	}

	interfaces, _ := result.(map[string]domain.InterfaceStatus)
	resp := StatusResponse{
		Running:    h.controller.Running(),
		ConfigPath: h.configPath,
		Interfaces: interfaces,
	}

	if h.hasher != nil {
		if current, err := h.hasher.GetCurrentConfigHash(); err == nil {
			applied := h.hasher.GetAppliedConfigHash()
			resp.ConfigChanged = applied != "" && applied != current
		}
	}

	WriteJSON(w, resp)
}

// ListInterfaces returns every kernel interface, classified.
// GET /api/v1/interfaces
func (h *Handler) ListInterfaces(w http.ResponseWriter, r *http.Request) {
	infos, err := netmon.ListInterfaces(h.nl)
	if err != nil {
		WriteInternalError(w, "Failed to list interfaces: "+err.Error())
		return
	}
	WriteJSON(w, map[string]interface{}{"interfaces": infos})
}

// GetInterface returns the status snapshot for one interface.
// GET /api/v1/interfaces/{name}
func (h *Handler) GetInterface(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := h.controller.HandleCommand(r.Context(), bus.GetInterfaceStatus{InterfaceName: name})
	if err != nil {
		WriteInternalError(w, "Failed to query interface: "+err.Error())
		return
	}

	statuses, _ := result.(map[string]domain.InterfaceStatus)
	status, ok := statuses[name]
	if !ok || status.Interface == nil {
		WriteNotFound(w, "Interface "+name)
		return
	}
	WriteJSON(w, status)
}

type configureRequest struct {
	ForceDHCP bool `json:"force_dhcp"`
}

// ConfigureInterface brings an interface under management.
// POST /api/v1/interfaces/{name}/configure
func (h *Handler) ConfigureInterface(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req configureRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteInvalidRequest(w, "Invalid request body: "+err.Error())
			return
		}
	}

	result, err := h.controller.HandleCommand(r.Context(), bus.ConfigureInterface{
		InterfaceName: name,
		ForceDHCP:     req.ForceDHCP,
	})
	if err != nil {
		WriteOperationError(w, "Configure failed: "+err.Error())
		return
	}
	WriteJSON(w, result)
}

// RemoveInterface tears an interface down and stops managing it.
// POST /api/v1/interfaces/{name}/remove
func (h *Handler) RemoveInterface(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := h.controller.HandleCommand(r.Context(), bus.RemoveInterface{InterfaceName: name})
	if err != nil {
		WriteOperationError(w, "Remove failed: "+err.Error())
		return
	}
	WriteJSON(w, result)
}

// RenewLease forces a DHCP renewal on the interface.
// POST /api/v1/interfaces/{name}/dhcp/renew
func (h *Handler) RenewLease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok := h.controller.RenewLease(r.Context(), name)
	if !ok {
		WriteOperationError(w, "DHCP renew failed for "+name)
		return
	}
	WriteJSON(w, map[string]interface{}{"success": true, "interface": name})
}

// ReleaseLease releases the interface's DHCP lease.
// POST /api/v1/interfaces/{name}/dhcp/release
func (h *Handler) ReleaseLease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok := h.controller.ReleaseLease(r.Context(), name)
	if !ok {
		WriteOperationError(w, "DHCP release failed for "+name)
		return
	}
	WriteJSON(w, map[string]interface{}{"success": true, "interface": name})
}

// GetLease returns the flattened current lease for the interface.
// GET /api/v1/interfaces/{name}/lease
func (h *Handler) GetLease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info := h.controller.LeaseInfo(name)
	if info == nil {
		WriteNotFound(w, "Lease for "+name)
		return
	}
	WriteJSON(w, info)
}

type hostRouteRequest struct {
	Host          string `json:"host"`
	InterfaceName string `json:"interface"`
	TableID       int    `json:"table_id,omitempty"`
}

func decodeHostRoute(w http.ResponseWriter, r *http.Request) (*hostRouteRequest, bool) {
	var req hostRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteInvalidRequest(w, "Invalid request body: "+err.Error())
		return nil, false
	}
	if req.Host == "" {
		WriteInvalidRequest(w, "host is required")
		return nil, false
	}
	if req.InterfaceName == "" {
		WriteInvalidRequest(w, "interface is required")
		return nil, false
	}
	return &req, true
}

// AddHostRoute adds a host route (IP or FQDN) via an interface's table.
// POST /api/v1/routes/host
func (h *Handler) AddHostRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHostRoute(w, r)
	if !ok {
		return
	}

	result, err := h.controller.HandleCommand(r.Context(), bus.AddHostRoute{
		Host:          req.Host,
		InterfaceName: req.InterfaceName,
		TableID:       req.TableID,
	})
	if err != nil {
		WriteOperationError(w, "Add host route failed: "+err.Error())
		return
	}
	WriteJSON(w, result)
}

// RemoveHostRoute removes a host route added by AddHostRoute.
// DELETE /api/v1/routes/host
func (h *Handler) RemoveHostRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHostRoute(w, r)
	if !ok {
		return
	}

	result, err := h.controller.HandleCommand(r.Context(), bus.RemoveHostRoute{
		Host:          req.Host,
		InterfaceName: req.InterfaceName,
		TableID:       req.TableID,
	})
	if err != nil {
		WriteOperationError(w, "Remove host route failed: "+err.Error())
		return
	}
	WriteJSON(w, result)
}

// FlushRoutes removes every route in the given table.
// POST /api/v1/routes/flush/{table}
func (h *Handler) FlushRoutes(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil || tableID <= 0 {
		WriteInvalidRequest(w, "table must be a positive integer")
		return
	}

	if _, err := h.controller.HandleCommand(r.Context(), bus.FlushRoutes{TableID: tableID}); err != nil {
		WriteOperationError(w, "Flush failed: "+err.Error())
		return
	}
	WriteJSON(w, map[string]interface{}{"success": true, "table_id": tableID})
}
