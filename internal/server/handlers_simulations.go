package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// HandleSimulate handles POST /v1/simulations.
func (h *Handlers) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.SimulateRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeServiceError(w, r, err)
			return
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Dataset == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "dataset is required")
		return
	}
	if req.Params.DemandMode == "" {
		req.Params.DemandMode = model.DemandConstant
	}

	resp, err := h.svc.Simulate(r.Context(), req.Dataset, req.Params, req.IncludeSeries)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleListSimulations handles GET /v1/simulations?dataset=&limit=&offset=.
func (h *Handlers) HandleListSimulations(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	offset := queryOffset(r)

	runs, total, err := h.svc.ListRuns(r.Context(), r.URL.Query().Get("dataset"), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeListJSON(w, r, runs, total, limit, offset)
}

// HandleGetSimulation handles GET /v1/simulations/{id}.
func (h *Handlers) HandleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := parseRunID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}
