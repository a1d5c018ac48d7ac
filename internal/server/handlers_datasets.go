package server

import (
	"net/http"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

// HandleCreateDataset handles POST /v1/datasets?name=&format=. The body is
// the CSV itself. Re-posting a name replaces the series and drops cached
// results for the old content.
func (h *Handlers) HandleCreateDataset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "name query parameter is required")
		return
	}
	format := timeseries.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = timeseries.FormatTable
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)
	meta, err := h.svc.LoadDataset(r.Context(), name, r.Body, format)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, meta)
}

// HandleListDatasets handles GET /v1/datasets.
func (h *Handlers) HandleListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Datasets())
}
