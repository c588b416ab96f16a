package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
)

// Handler exposes ingestion and preview as HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service for route registration.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Ingest handles multipart dataset uploads.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	projectIDRaw := strings.TrimSpace(r.FormValue("projectId"))
	projectID, err := uuid.Parse(projectIDRaw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid project id: %v", err), http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	kind := domain.DatasetKind(strings.TrimSpace(r.FormValue("kind")))

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	req := Request{
		ProjectID:      projectID,
		DatasetName:    name,
		Kind:           kind,
		FileName:       header.Filename,
		HeaderRowIndex: parseHeaderRowIndex(r.FormValue("headerRowIndex")),
		Data:           bytes.NewReader(data),
	}

	summary, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// Preview handles multipart preview requests without persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.FormValue("limit")); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	result, err := h.service.Preview(r.Context(), PreviewRequest{
		FileName:       header.Filename,
		HeaderRowIndex: parseHeaderRowIndex(r.FormValue("headerRowIndex")),
		Data:           bytes.NewReader(data),
		Limit:          limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func parseHeaderRowIndex(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &idx
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
