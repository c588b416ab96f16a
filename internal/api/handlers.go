package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/drift"
	"github.com/driftwatch/driftwatch/internal/driftrun"
	"github.com/driftwatch/driftwatch/internal/export"
	"github.com/driftwatch/driftwatch/internal/ingestion"
	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Server registers the REST surface over the drift services.
type Server struct {
	projects   repository.ProjectRepository
	thresholds repository.ThresholdConfigRepository
	datasets   repository.DatasetRepository
	alerts     repository.AlertRepository
	logs       repository.IngestionLogRepository

	runs      *driftrun.Service
	ingestion *ingestion.Handler
	export    *export.Handler

	validate *validator.Validate
	logger   *zap.Logger
}

// NewServer wires the handlers.
func NewServer(
	projects repository.ProjectRepository,
	thresholds repository.ThresholdConfigRepository,
	datasets repository.DatasetRepository,
	alerts repository.AlertRepository,
	logs repository.IngestionLogRepository,
	runs *driftrun.Service,
	ingestionHandler *ingestion.Handler,
	exportHandler *export.Handler,
	logger *zap.Logger,
) *Server {
	return &Server{
		projects:   projects,
		thresholds: thresholds,
		datasets:   datasets,
		alerts:     alerts,
		logs:       logs,
		runs:       runs,
		ingestion:  ingestionHandler,
		export:     exportHandler,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Register mounts every route on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}/thresholds", s.handleUpdateThresholds)
	mux.HandleFunc("GET /api/projects/{id}/thresholds", s.handleGetThresholds)

	mux.HandleFunc("POST /api/datasets", s.ingestion.Ingest)
	mux.HandleFunc("POST /api/datasets/preview", s.ingestion.Preview)
	mux.HandleFunc("GET /api/datasets", s.handleListDatasets)
	mux.HandleFunc("GET /api/datasets/{id}", s.handleGetDataset)

	mux.HandleFunc("POST /api/drift-runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/drift-runs", s.handleListRuns)
	mux.HandleFunc("GET /api/drift-runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/drift-runs/{id}/export", s.export.Download)

	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.HandleFunc("GET /api/ingestion-logs", s.handleListIngestionLogs)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !s.decode(w, r, &req) {
		return
	}

	project, err := s.projects.Create(r.Context(), domain.NewProject(strings.TrimSpace(req.Name), strings.TrimSpace(req.Description)))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	project, err := s.projects.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type updateThresholdsRequest struct {
	DSIThreshold        float64 `json:"dsi_threshold" validate:"required,gt=0,lte=100"`
	DriftRatioThreshold float64 `json:"drift_ratio_threshold" validate:"required,gt=0,lte=1"`
	NotifyTarget        string  `json:"notify_target" validate:"omitempty,max=500"`
}

func (s *Server) handleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateThresholdsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.projects.GetByID(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	config, err := s.thresholds.Upsert(r.Context(), domain.ThresholdConfig{
		ProjectID:           id,
		DSIThreshold:        req.DSIThreshold,
		DriftRatioThreshold: req.DriftRatioThreshold,
		NotifyTarget:        strings.TrimSpace(req.NotifyTarget),
		UpdatedAt:           time.Now(),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	config, found, err := s.thresholds.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no thresholds configured for project")
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "project_id query parameter is required")
		return
	}
	datasets, err := s.datasets.List(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, datasets)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dataset, err := s.datasets.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset)
}

type createRunRequest struct {
	ProjectID         uuid.UUID           `json:"project_id" validate:"required"`
	BaselineDatasetID uuid.UUID           `json:"baseline_dataset_id"`
	CurrentDatasetID  uuid.UUID           `json:"current_dataset_id"`
	BaselineRows      []map[string]string `json:"baseline_rows"`
	CurrentRows       []map[string]string `json:"current_rows"`
	Execute           bool                `json:"execute"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if !s.decode(w, r, &req) {
		return
	}

	serviceReq := driftrun.CreateRequest{
		ProjectID:         req.ProjectID,
		BaselineDatasetID: req.BaselineDatasetID,
		CurrentDatasetID:  req.CurrentDatasetID,
		BaselineRows:      req.BaselineRows,
		CurrentRows:       req.CurrentRows,
	}

	var (
		run domain.DriftRun
		err error
	)
	if req.Execute {
		run, err = s.runs.Run(r.Context(), serviceReq)
	} else {
		run, err = s.runs.Create(r.Context(), serviceReq)
	}
	if err != nil {
		// A synchronous execution that failed after the run was recorded
		// returns the failed run so callers see the error message.
		if req.Execute && run.Status == domain.DriftRunStatusFailed {
			writeJSON(w, http.StatusUnprocessableEntity, run)
			return
		}
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var projectID *uuid.UUID
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid project_id")
			return
		}
		projectID = &id
	}

	var statuses []domain.DriftRunStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.DriftRunStatus(strings.TrimSpace(part)))
		}
	}

	limit, offset := pagination(r)
	runs, err := s.runs.List(r.Context(), projectID, statuses, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "project_id query parameter is required")
		return
	}
	limit, offset := pagination(r)
	alerts, err := s.alerts.List(r.Context(), projectID, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleListIngestionLogs(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "project_id query parameter is required")
		return
	}
	limit, offset := pagination(r)
	entries, err := s.logs.List(r.Context(), projectID, r.URL.Query().Get("dataset"), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// decode unmarshals and validates a JSON body, writing the error response
// itself when the payload is unusable.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, drift.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driftrun.ErrRunNotRunnable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
