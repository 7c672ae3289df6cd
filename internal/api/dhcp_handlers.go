package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/homelab/rack/internal/omshell"
	"github.com/jbweber/homelab/rack/internal/shell"
)

// DHCP groups the host reservation handlers
type DHCP struct {
	api *API
}

type HostMapRequest struct {
	IP  string `json:"ip"`
	MAC string `json:"mac"`
}

type DHCPStatusResponse struct {
	Reachable bool `json:"reachable"`
}

// mapper returns the configured HostMapper, answering 503 when there is none
func (d *DHCP) mapper(w http.ResponseWriter) (HostMapper, bool) {
	if d.api.dhcp == nil {
		writeError(w, http.StatusServiceUnavailable, "DHCP server is not configured")
		return nil, false
	}
	return d.api.dhcp, true
}

// writeDHCPError reports omshell failures. A rejected request from the DHCP
// server is a bad gateway and carries the raw omshell output.
func (d *DHCP) writeDHCPError(w http.ResponseWriter, r *http.Request, err error) {
	var procErr *shell.ExternalProcessError
	switch {
	case errors.Is(err, omshell.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &procErr):
		d.api.logger.WarnContext(r.Context(), "DHCP server rejected request", "path", r.URL.Path, "exit_code", procErr.ExitCode)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "DHCP server rejected the request", Output: string(procErr.Output)})
	default:
		d.api.logger.ErrorContext(r.Context(), "DHCP request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "DHCP request failed")
	}
}

func (d *DHCP) StatusHandler(w http.ResponseWriter, r *http.Request) {
	mapper, ok := d.mapper(w)
	if !ok {
		return
	}
	reachable, err := mapper.TryConnection(r.Context())
	if err != nil {
		d.writeDHCPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DHCPStatusResponse{Reachable: reachable})
}

func (d *DHCP) CreateHostMapHandler(w http.ResponseWriter, r *http.Request) {
	d.hostMap(w, r, http.StatusCreated, HostMapper.Create)
}

func (d *DHCP) ModifyHostMapHandler(w http.ResponseWriter, r *http.Request) {
	d.hostMap(w, r, http.StatusOK, HostMapper.Modify)
}

func (d *DHCP) hostMap(w http.ResponseWriter, r *http.Request, status int, op func(HostMapper, context.Context, string, string) error) {
	mapper, ok := d.mapper(w)
	if !ok {
		return
	}
	var req HostMapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.IP == "" || req.MAC == "" {
		writeError(w, http.StatusBadRequest, "IP and MAC are required")
		return
	}
	if err := op(mapper, r.Context(), req.IP, req.MAC); err != nil {
		d.writeDHCPError(w, r, err)
		return
	}
	writeJSON(w, status, req)
}

func (d *DHCP) RemoveHostMapHandler(w http.ResponseWriter, r *http.Request) {
	mapper, ok := d.mapper(w)
	if !ok {
		return
	}
	if err := mapper.Remove(r.Context(), chi.URLParam(r, "key")); err != nil {
		d.writeDHCPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *DHCP) NullifyLeaseHandler(w http.ResponseWriter, r *http.Request) {
	mapper, ok := d.mapper(w)
	if !ok {
		return
	}
	if err := mapper.NullifyLease(r.Context(), chi.URLParam(r, "ip")); err != nil {
		d.writeDHCPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
