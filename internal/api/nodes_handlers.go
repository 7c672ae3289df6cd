package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/homelab/rack/internal/domain"
	"github.com/jbweber/homelab/rack/internal/repository"
)

// maxResultSize caps the body of a commissioning result upload
const maxResultSize = 64 << 20

// Nodes groups node handlers
type Nodes struct {
	api *API
}

type CreateNodeRequest struct {
	SystemID string `json:"system_id,omitempty"` // Optional: generated when empty
	Hostname string `json:"hostname"`
}

type UpdateNodeRequest struct {
	Hostname       *string `json:"hostname,omitempty"`
	SkipStorage    *bool   `json:"skip_storage,omitempty"`
	SkipNetworking *bool   `json:"skip_networking,omitempty"`
	BootDiskID     *int64  `json:"boot_disk_id,omitempty"`
}

type NodeResponse struct {
	SystemID       string   `json:"system_id"`
	Hostname       string   `json:"hostname"`
	CPUCount       int      `json:"cpu_count"`
	CPUSpeed       int      `json:"cpu_speed"`
	Memory         int64    `json:"memory"`
	BootDiskID     *int64   `json:"boot_disk_id,omitempty"`
	SkipStorage    bool     `json:"skip_storage"`
	SkipNetworking bool     `json:"skip_networking"`
	Routers        []string `json:"routers"`
}

type BlockDeviceResponse struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	IDPath    string   `json:"id_path"`
	Size      int64    `json:"size"`
	BlockSize int64    `json:"block_size"`
	Model     string   `json:"model"`
	Serial    string   `json:"serial"`
	Tags      []string `json:"tags"`
}

type InterfaceResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	MACAddress  string   `json:"mac_address"`
	Parents     []int64  `json:"parents"`
	IPAddresses []string `json:"ip_addresses"`
}

type ResultResponse struct {
	Name         string `json:"name"`
	ScriptResult int    `json:"script_result"`
	Data         string `json:"data"`
	UpdatedAt    string `json:"updated_at"`
}

func toNodeResponse(n domain.Node) NodeResponse {
	routers := n.Routers
	if routers == nil {
		routers = []string{}
	}
	return NodeResponse{
		SystemID:       n.SystemID,
		Hostname:       n.Hostname,
		CPUCount:       n.CPUCount,
		CPUSpeed:       n.CPUSpeed,
		Memory:         n.Memory,
		BootDiskID:     n.BootDiskID,
		SkipStorage:    n.SkipStorage,
		SkipNetworking: n.SkipNetworking,
		Routers:        routers,
	}
}

// node loads the node named in the URL, writing the error reply when it fails
func (n *Nodes) node(w http.ResponseWriter, r *http.Request) (domain.Node, bool) {
	node, err := n.api.ds.Repositories().Nodes.FindBySystemID(r.Context(), chi.URLParam(r, "systemID"))
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Node")
		return domain.Node{}, false
	}
	return node, true
}

func (n *Nodes) ListHandler(w http.ResponseWriter, r *http.Request) {
	nodes, err := n.api.ds.Repositories().Nodes.FindAll(r.Context())
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Node")
		return
	}
	response := make([]NodeResponse, len(nodes))
	for i, node := range nodes {
		response[i] = toNodeResponse(node)
	}
	writeJSON(w, http.StatusOK, response)
}

func (n *Nodes) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Hostname == "" {
		writeError(w, http.StatusBadRequest, "Hostname is required")
		return
	}

	created, err := n.api.ds.Repositories().Nodes.Save(r.Context(), domain.Node{
		SystemID: req.SystemID,
		Hostname: req.Hostname,
	})
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Node")
		return
	}
	writeJSON(w, http.StatusCreated, toNodeResponse(created))
}

func (n *Nodes) GetHandler(w http.ResponseWriter, r *http.Request) {
	node, ok := n.node(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toNodeResponse(node))
}

func (n *Nodes) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var updated domain.Node
	err := n.api.ds.Transact(r.Context(), func(repos *repository.Repositories) error {
		node, err := repos.Nodes.FindBySystemID(r.Context(), chi.URLParam(r, "systemID"))
		if err != nil {
			return err
		}
		if req.Hostname != nil {
			node.Hostname = *req.Hostname
		}
		if req.SkipStorage != nil {
			node.SkipStorage = *req.SkipStorage
		}
		if req.SkipNetworking != nil {
			node.SkipNetworking = *req.SkipNetworking
		}
		if req.BootDiskID != nil {
			device, err := repos.BlockDevices.FindByID(r.Context(), *req.BootDiskID)
			if err != nil || device.NodeID != node.ID {
				return fmt.Errorf("boot disk %d is not a block device of this node: %w", *req.BootDiskID, repository.ErrInvalidEntity)
			}
			node.BootDiskID = &device.ID
		}
		updated, err = repos.Nodes.Save(r.Context(), node)
		return err
	})
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Node")
		return
	}
	writeJSON(w, http.StatusOK, toNodeResponse(updated))
}

func (n *Nodes) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	node, ok := n.node(w, r)
	if !ok {
		return
	}
	if err := n.api.ds.Repositories().Nodes.DeleteByID(r.Context(), node.ID); err != nil {
		n.api.writeRepositoryError(w, r, err, "Node")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *Nodes) BlockDevicesHandler(w http.ResponseWriter, r *http.Request) {
	node, ok := n.node(w, r)
	if !ok {
		return
	}
	devices, err := n.api.ds.Repositories().BlockDevices.FindByNodeID(r.Context(), node.ID)
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Block device")
		return
	}
	response := make([]BlockDeviceResponse, len(devices))
	for i, d := range devices {
		response[i] = BlockDeviceResponse{
			ID:        d.ID,
			Name:      d.Name,
			Path:      d.Path,
			IDPath:    d.IDPath,
			Size:      d.Size,
			BlockSize: d.BlockSize,
			Model:     d.Model,
			Serial:    d.Serial,
			Tags:      d.Tags,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (n *Nodes) InterfacesHandler(w http.ResponseWriter, r *http.Request) {
	node, ok := n.node(w, r)
	if !ok {
		return
	}
	repos := n.api.ds.Repositories()
	ifaces, err := repos.Interfaces.FindByNodeID(r.Context(), node.ID)
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Interface")
		return
	}

	response := make([]InterfaceResponse, len(ifaces))
	for i, iface := range ifaces {
		addrs, err := repos.IPAddresses.FindByInterfaceID(r.Context(), iface.ID)
		if err != nil {
			n.api.writeRepositoryError(w, r, err, "IP address")
			return
		}
		ips := make([]string, len(addrs))
		for j, addr := range addrs {
			ips[j] = addr.IP
		}
		parents := iface.ParentIDs
		if parents == nil {
			parents = []int64{}
		}
		response[i] = InterfaceResponse{
			ID:          iface.ID,
			Name:        iface.Name,
			Type:        string(iface.Type),
			MACAddress:  iface.MACAddress,
			Parents:     parents,
			IPAddresses: ips,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (n *Nodes) TagsHandler(w http.ResponseWriter, r *http.Request) {
	node, ok := n.node(w, r)
	if !ok {
		return
	}
	tags, err := n.api.ds.Repositories().Tags.FindByNodeID(r.Context(), node.ID)
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Tag")
		return
	}
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	writeJSON(w, http.StatusOK, names)
}

func (n *Nodes) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	node, ok := n.node(w, r)
	if !ok {
		return
	}
	results, err := n.api.ds.Repositories().Results.FindByNodeID(r.Context(), node.ID)
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Result")
		return
	}
	response := make([]ResultResponse, len(results))
	for i, result := range results {
		response[i] = ResultResponse{
			Name:         result.Name,
			ScriptResult: result.ScriptResult,
			Data:         string(result.Data),
			UpdatedAt:    result.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// IngestHandler handles POST /api/v1/nodes/{systemID}/results/{script}.
//
// The request body is the raw script output; the exit_status query parameter
// defaults to 0. Response: 204 No Content once the result is reconciled.
func (n *Nodes) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if n.api.ingester == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingestion is not configured")
		return
	}

	exitStatus := 0
	if raw := r.URL.Query().Get("exit_status"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exit_status")
			return
		}
		exitStatus = v
	}

	output, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxResultSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Result too large")
		return
	}

	err = n.api.ingester.Ingest(r.Context(), chi.URLParam(r, "systemID"), chi.URLParam(r, "script"), output, exitStatus)
	if err != nil {
		n.api.writeRepositoryError(w, r, err, "Node")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
