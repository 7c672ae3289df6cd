package api

import (
	"net/http"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// Subnets groups subnet handlers
type Subnets struct {
	api *API
}

type SubnetRequest struct {
	Name        string `json:"name"`
	CIDR        string `json:"cidr"`
	Gateway     string `json:"gateway,omitempty"`
	DNSServers  string `json:"dns_servers,omitempty"`
	Description string `json:"description,omitempty"`
}

type SubnetResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CIDR        string `json:"cidr"`
	Gateway     string `json:"gateway,omitempty"`
	DNSServers  string `json:"dns_servers,omitempty"`
	Description string `json:"description,omitempty"`
}

func toSubnetResponse(s domain.Subnet) SubnetResponse {
	return SubnetResponse{
		ID:          s.ID,
		Name:        s.Name,
		CIDR:        s.CIDR,
		Gateway:     s.Gateway,
		DNSServers:  s.DNSServers,
		Description: s.Description,
	}
}

func (s *Subnets) ListHandler(w http.ResponseWriter, r *http.Request) {
	subnets, err := s.api.ds.Repositories().Subnets.FindAll(r.Context())
	if err != nil {
		s.api.writeRepositoryError(w, r, err, "Subnet")
		return
	}
	response := make([]SubnetResponse, len(subnets))
	for i, subnet := range subnets {
		response[i] = toSubnetResponse(subnet)
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Subnets) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req SubnetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	created, err := s.api.ds.Repositories().Subnets.Save(r.Context(), domain.Subnet{
		Name:        req.Name,
		CIDR:        req.CIDR,
		Gateway:     req.Gateway,
		DNSServers:  req.DNSServers,
		Description: req.Description,
	})
	if err != nil {
		s.api.writeRepositoryError(w, r, err, "Subnet")
		return
	}
	writeJSON(w, http.StatusCreated, toSubnetResponse(created))
}

func (s *Subnets) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid subnet ID")
		return
	}
	subnet, err := s.api.ds.Repositories().Subnets.FindByID(r.Context(), id)
	if err != nil {
		s.api.writeRepositoryError(w, r, err, "Subnet")
		return
	}
	writeJSON(w, http.StatusOK, toSubnetResponse(subnet))
}

func (s *Subnets) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid subnet ID")
		return
	}
	if err := s.api.ds.Repositories().Subnets.DeleteByID(r.Context(), id); err != nil {
		s.api.writeRepositoryError(w, r, err, "Subnet")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
