package export

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/google/uuid"
)

// Handler streams xlsx reports for completed drift runs.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service for route registration.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Download renders and streams the report for the run in the path.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run id: %v", err), http.StatusBadRequest)
		return
	}

	report, err := h.service.BuildRunReport(r.Context(), runID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			http.Error(w, "drift run not found", http.StatusNotFound)
		case errors.Is(err, ErrRunNotExportable):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "failed to build report", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", report.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(report.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Data)
}
