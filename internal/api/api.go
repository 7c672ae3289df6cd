package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbweber/homelab/rack/internal/commissioning"
	"github.com/jbweber/homelab/rack/internal/datastore"
	"github.com/jbweber/homelab/rack/internal/metrics"
)

// HostMapper manages DHCP host reservations. *omshell.Session implements it.
type HostMapper interface {
	TryConnection(ctx context.Context) (bool, error)
	Create(ctx context.Context, ip, mac string) error
	Modify(ctx context.Context, ip, mac string) error
	Remove(ctx context.Context, key string) error
	NullifyLease(ctx context.Context, ip string) error
}

// API serves the inventory and DHCP control endpoints
type API struct {
	ds       *datastore.Datastore
	ingester *commissioning.Ingester
	dhcp     HostMapper
	logger   *slog.Logger
}

// NewAPI creates a new API backed by the datastore. dhcp may be nil when no
// DHCP server is configured; the DHCP endpoints then answer 503.
func NewAPI(ds *datastore.Datastore, ingester *commissioning.Ingester, dhcp HostMapper, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		ds:       ds,
		ingester: ingester,
		dhcp:     dhcp,
		logger:   logger,
	}
}

// Handler returns the complete HTTP handler with middleware and /metrics.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	nodes := &Nodes{api: a}
	r.Route("/api/v1/nodes", func(r chi.Router) {
		r.Get("/", nodes.ListHandler)
		r.Post("/", nodes.CreateHandler)
		r.Route("/{systemID}", func(r chi.Router) {
			r.Get("/", nodes.GetHandler)
			r.Patch("/", nodes.UpdateHandler)
			r.Delete("/", nodes.DeleteHandler)
			r.Get("/block-devices", nodes.BlockDevicesHandler)
			r.Get("/interfaces", nodes.InterfacesHandler)
			r.Get("/tags", nodes.TagsHandler)
			r.Get("/results", nodes.ResultsHandler)
			r.Post("/results/{script}", nodes.IngestHandler)
		})
	})

	subnets := &Subnets{api: a}
	r.Route("/api/v1/subnets", func(r chi.Router) {
		r.Get("/", subnets.ListHandler)
		r.Post("/", subnets.CreateHandler)
		r.Get("/{id}", subnets.GetHandler)
		r.Delete("/{id}", subnets.DeleteHandler)
	})

	dhcp := &DHCP{api: a}
	r.Route("/api/v1/dhcp", func(r chi.Router) {
		r.Get("/status", dhcp.StatusHandler)
		r.Post("/host-maps", dhcp.CreateHostMapHandler)
		r.Put("/host-maps", dhcp.ModifyHostMapHandler)
		r.Delete("/host-maps/{key}", dhcp.RemoveHostMapHandler)
		r.Post("/leases/{ip}/nullify", dhcp.NullifyLeaseHandler)
	})
}
