// Package api exposes the DMCS core's ops HTTP surface: endpoints used by
// deployment tooling and operators, never by OCS itself (OCS only ever
// talks to this core over the message bus).
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lsst-dm/dmcs/pkg/errhttp"
	"github.com/lsst-dm/dmcs/pkg/httpx"
	pkgvalidator "github.com/lsst-dm/dmcs/pkg/validator"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/repositories"
)

// RegisterForwarderRequest is the request body for PUT /forwarders/{name}.
type RegisterForwarderRequest struct {
	ConsumeQueue string   `json:"consume_queue" validate:"required"`
	XferRoot     string   `json:"xfer_root" validate:"required"`
	Healthy      bool     `json:"healthy"`
	Rafts        []string `json:"rafts" validate:"required,min=1"`
}

// RegisterForwarderResponse echoes back the stored forwarder record.
type RegisterForwarderResponse struct {
	Name         string   `json:"name"`
	ConsumeQueue string   `json:"consume_queue"`
	XferRoot     string   `json:"xfer_root"`
	Healthy      bool     `json:"healthy"`
	Rafts        []string `json:"rafts"`
}

// ForwarderHandler serves the forwarder registration endpoints, letting
// operators add or update a forwarder's raft assignment and health flag
// without a Redis console.
type ForwarderHandler struct {
	forwarders repositories.ForwarderStore
}

// NewForwarderHandler returns a ForwarderHandler backed by store.
func NewForwarderHandler(store repositories.ForwarderStore) *ForwarderHandler {
	return &ForwarderHandler{forwarders: store}
}

// Routes mounts the forwarder endpoints on r.
func (h *ForwarderHandler) Routes(r chi.Router) {
	r.Route("/forwarders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Put("/{name}", h.register)
	})
}

func (h *ForwarderHandler) register(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	req, ok := pkgvalidator.ValidateRequest[RegisterForwarderRequest](w, r)
	if !ok {
		return
	}

	record := &models.ForwarderRecord{
		Name:         name,
		ConsumeQueue: req.ConsumeQueue,
		XferRoot:     req.XferRoot,
		Healthy:      req.Healthy,
		Rafts:        req.Rafts,
	}
	if err := h.forwarders.SaveForwarder(r.Context(), record); err != nil {
		errhttp.WriteError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, RegisterForwarderResponse{
		Name:         record.Name,
		ConsumeQueue: record.ConsumeQueue,
		XferRoot:     record.XferRoot,
		Healthy:      record.Healthy,
		Rafts:        record.Rafts,
	})
}

func (h *ForwarderHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.forwarders.ListForwarders(r.Context())
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	out := make([]RegisterForwarderResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, RegisterForwarderResponse{
			Name:         rec.Name,
			ConsumeQueue: rec.ConsumeQueue,
			XferRoot:     rec.XferRoot,
			Healthy:      rec.Healthy,
			Rafts:        rec.Rafts,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
