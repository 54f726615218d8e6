// Package fleethttp exposes the reconciled topology over a read-only
// HTTP API together with the prometheus metrics endpoint.
package fleethttp

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jsonrender "github.com/bavix/faros/internal/render"
	"github.com/bavix/faros/internal/topology"
)

// TopologyProvider hands out the current topology snapshot.
type TopologyProvider func() *topology.Topology

// APIHandler serves the topology views.
type APIHandler struct {
	topo TopologyProvider
}

// NewAPIHandler creates an API handler over a topology provider.
func NewAPIHandler(topo TopologyProvider) *APIHandler {
	return &APIHandler{topo: topo}
}

// NewRouter builds the HTTP router for the serve command.
func NewRouter(topo TopologyProvider) *mux.Router {
	r := mux.NewRouter()
	h := NewAPIHandler(topo)
	h.RegisterRoutes(r.PathPrefix("/api").Subrouter())
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// RegisterRoutes registers all topology API routes.
func (h *APIHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/topology", h.GetTopology).Methods("GET")
	api.HandleFunc("/hubs", h.GetHubs).Methods("GET")
	api.HandleFunc("/standalone", h.GetStandalone).Methods("GET")
}

// GetTopology returns the station-indexed topology document.
func (h *APIHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	topo := h.topo()
	if topo == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]any{"error": "no discovery run completed yet"})

		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, jsonrender.Document(topo))
}

// GetHubs returns the hub summaries with their chain slots.
func (h *APIHandler) GetHubs(w http.ResponseWriter, r *http.Request) {
	topo := h.topo()
	if topo == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]any{"error": "no discovery run completed yet"})

		return
	}

	hubs := make([]map[string]any, 0, len(topo.Hubs))

	for _, hub := range topo.Hubs {
		chains := make([]map[string]any, 0)

		for _, slot := range hub.SlotOrder() {
			for _, group := range hub.Slots[slot] {
				members := group.Members()
				serials := make([]string, 0, len(members))

				for _, member := range members {
					serials = append(serials, member.Serial)
				}

				entry := map[string]any{
					"slot":    slot,
					"serial":  group.Ident(),
					"error":   group.GroupError(),
					"members": serials,
				}

				if chain, ok := group.(*topology.ValidatedChain); ok {
					entry["config_correct"] = chain.ConfigCorrect
				}

				chains = append(chains, entry)
			}
		}

		hubs = append(hubs, map[string]any{
			"serial":  hub.Dev.Serial,
			"address": hub.Dev.HTTPHost(),
			"error":   hub.Error,
			"chains":  chains,
		})
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{"hubs": hubs, "count": len(hubs)})
}

// GetStandalone returns the nodes that belong to no hub.
func (h *APIHandler) GetStandalone(w http.ResponseWriter, r *http.Request) {
	topo := h.topo()
	if topo == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]any{"error": "no discovery run completed yet"})

		return
	}

	serials := make([]string, 0, len(topo.Standalone))
	for _, dev := range topo.Standalone {
		serials = append(serials, dev.Serial)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{"standalone": serials, "count": len(serials)})
}
