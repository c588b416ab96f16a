package driftrun

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/alerting"
	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/drift"
	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRunNotRunnable is returned when a run is already terminal or claimed by
// another worker. Retries require a new run.
var ErrRunNotRunnable = errors.New("drift run is no longer runnable")

// Service owns the drift run lifecycle: validation, scoring, persistence and
// alert evaluation for one comparison job at a time.
type Service struct {
	runs       repository.DriftRunRepository
	datasets   repository.DatasetRepository
	projects   repository.ProjectRepository
	thresholds repository.ThresholdConfigRepository
	alerts     repository.AlertRepository

	evaluator *alerting.Evaluator
	notifier  alerting.Notifier
	logger    *zap.Logger

	binCount          int
	defaultDSI        float64
	defaultDriftRatio float64
	now               func() time.Time
}

// Option customizes service construction.
type Option func(*Service)

// WithBinCount overrides the PSI histogram width.
func WithBinCount(bins int) Option {
	return func(s *Service) {
		if bins > 0 {
			s.binCount = bins
		}
	}
}

// WithDefaultThresholds sets the fallback alert thresholds for projects
// without their own configuration.
func WithDefaultThresholds(dsi, driftRatio float64) Option {
	return func(s *Service) {
		if dsi > 0 {
			s.defaultDSI = dsi
		}
		if driftRatio > 0 {
			s.defaultDriftRatio = driftRatio
		}
	}
}

// WithNotifier overrides the alert delivery channel.
func WithNotifier(notifier alerting.Notifier) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// NewService wires the run executor.
func NewService(
	runs repository.DriftRunRepository,
	datasets repository.DatasetRepository,
	projects repository.ProjectRepository,
	thresholds repository.ThresholdConfigRepository,
	alerts repository.AlertRepository,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	service := &Service{
		runs:              runs,
		datasets:          datasets,
		projects:          projects,
		thresholds:        thresholds,
		alerts:            alerts,
		evaluator:         alerting.NewEvaluator(0),
		notifier:          alerting.NewLogNotifier(logger),
		logger:            logger,
		binCount:          drift.DefaultBinCount,
		defaultDSI:        50,
		defaultDriftRatio: 0.5,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateRequest describes one comparison job. Callers supply either two
// dataset references or two inline row sets.
type CreateRequest struct {
	ProjectID         uuid.UUID
	BaselineDatasetID uuid.UUID
	CurrentDatasetID  uuid.UUID
	BaselineRows      []map[string]string
	CurrentRows       []map[string]string
}

// Create validates the request and records a pending run. No computation
// happens here.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.DriftRun, error) {
	if req.ProjectID == uuid.Nil {
		return domain.DriftRun{}, fmt.Errorf("%w: project id is required", drift.ErrValidation)
	}
	if _, err := s.projects.GetByID(ctx, req.ProjectID); err != nil {
		return domain.DriftRun{}, fmt.Errorf("validate project: %w", err)
	}

	baselineID := req.BaselineDatasetID
	currentID := req.CurrentDatasetID

	inline := len(req.BaselineRows) > 0 || len(req.CurrentRows) > 0
	if inline {
		if len(req.BaselineRows) == 0 || len(req.CurrentRows) == 0 {
			return domain.DriftRun{}, fmt.Errorf("%w: inline runs require both baseline and current rows", drift.ErrValidation)
		}
		baseline, err := s.createInlineDataset(ctx, req.ProjectID, domain.DatasetKindBaseline, req.BaselineRows)
		if err != nil {
			return domain.DriftRun{}, err
		}
		current, err := s.createInlineDataset(ctx, req.ProjectID, domain.DatasetKindCurrent, req.CurrentRows)
		if err != nil {
			return domain.DriftRun{}, err
		}
		baselineID = baseline.ID
		currentID = current.ID
	} else {
		if baselineID == uuid.Nil || currentID == uuid.Nil {
			return domain.DriftRun{}, fmt.Errorf("%w: baseline and current dataset ids are required", drift.ErrValidation)
		}
		for _, id := range []uuid.UUID{baselineID, currentID} {
			dataset, err := s.datasets.GetByID(ctx, id)
			if err != nil {
				return domain.DriftRun{}, fmt.Errorf("resolve dataset: %w", err)
			}
			if dataset.ProjectID != req.ProjectID {
				return domain.DriftRun{}, fmt.Errorf("%w: dataset %s does not belong to project %s", drift.ErrValidation, id, req.ProjectID)
			}
		}
	}

	run, err := s.runs.Create(ctx, domain.NewDriftRun(req.ProjectID, baselineID, currentID))
	if err != nil {
		return domain.DriftRun{}, err
	}
	return run, nil
}

// Execute drives one run through the state machine. Header validation
// happens before the run leaves pending: a mismatch fails the run directly,
// skipping running, with zero metrics persisted.
func (s *Service) Execute(ctx context.Context, runID uuid.UUID) (domain.DriftRun, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return domain.DriftRun{}, err
	}
	if run.Status.Terminal() {
		return run, ErrRunNotRunnable
	}

	baseline, current, baselineRows, currentRows, err := s.loadDatasets(ctx, run)
	if err != nil {
		return s.fail(ctx, run, err)
	}

	if err := drift.ValidateHeaders(baseline.Headers(), current.Headers()); err != nil {
		return s.fail(ctx, run, err)
	}

	if err := s.runs.MarkRunning(ctx, run.ID); err != nil {
		if errors.Is(err, repository.ErrRunStatusConflict) {
			return run, ErrRunNotRunnable
		}
		return domain.DriftRun{}, err
	}
	run.Status = domain.DriftRunStatusRunning

	result, err := drift.Score(run.ID, baseline.Headers(), current.Headers(), baselineRows, currentRows, s.binCount)
	if err != nil {
		return s.fail(ctx, run, err)
	}

	run.DSI = result.DSI
	run.DriftRatio = result.DriftRatio
	run.Summary = result.Summary
	if err := s.runs.Complete(ctx, run, result.Metrics); err != nil {
		if errors.Is(err, repository.ErrRunStatusConflict) {
			return run, ErrRunNotRunnable
		}
		return s.fail(ctx, run, err)
	}

	run.Status = domain.DriftRunStatusCompleted
	run.Metrics = result.Metrics
	completed := s.now()
	run.CompletedAt = &completed

	s.logger.Info("drift run completed",
		zap.String("drift_run_id", run.ID.String()),
		zap.Float64("dsi", run.DSI),
		zap.Float64("drift_ratio", run.DriftRatio),
	)

	s.evaluateAlert(ctx, run)
	return run, nil
}

// Run creates and executes a run synchronously, for the request-response
// invocation path.
func (s *Service) Run(ctx context.Context, req CreateRequest) (domain.DriftRun, error) {
	run, err := s.Create(ctx, req)
	if err != nil {
		return domain.DriftRun{}, err
	}
	return s.Execute(ctx, run.ID)
}

// Get returns a run with its persisted metrics attached.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.DriftRun, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return domain.DriftRun{}, err
	}
	metrics, err := s.runs.ListMetrics(ctx, id)
	if err != nil {
		return domain.DriftRun{}, err
	}
	run.Metrics = metrics
	return run, nil
}

// List returns runs for a project, optionally filtered by status.
func (s *Service) List(ctx context.Context, projectID *uuid.UUID, statuses []domain.DriftRunStatus, limit, offset int) ([]domain.DriftRun, error) {
	return s.runs.List(ctx, projectID, statuses, limit, offset)
}

func (s *Service) loadDatasets(ctx context.Context, run domain.DriftRun) (domain.Dataset, domain.Dataset, []map[string]string, []map[string]string, error) {
	baseline, err := s.datasets.GetByID(ctx, run.BaselineDatasetID)
	if err != nil {
		return domain.Dataset{}, domain.Dataset{}, nil, nil, fmt.Errorf("load baseline dataset: %w", err)
	}
	current, err := s.datasets.GetByID(ctx, run.CurrentDatasetID)
	if err != nil {
		return domain.Dataset{}, domain.Dataset{}, nil, nil, fmt.Errorf("load current dataset: %w", err)
	}
	baselineRows, err := s.datasets.GetRows(ctx, run.BaselineDatasetID)
	if err != nil {
		return domain.Dataset{}, domain.Dataset{}, nil, nil, fmt.Errorf("load baseline rows: %w", err)
	}
	currentRows, err := s.datasets.GetRows(ctx, run.CurrentDatasetID)
	if err != nil {
		return domain.Dataset{}, domain.Dataset{}, nil, nil, fmt.Errorf("load current rows: %w", err)
	}
	return baseline, current, baselineRows, currentRows, nil
}

// fail transitions the run to failed with the error message and surfaces the
// original error. Failure is all-or-nothing: no metrics were persisted yet.
func (s *Service) fail(ctx context.Context, run domain.DriftRun, cause error) (domain.DriftRun, error) {
	if markErr := s.runs.MarkFailed(ctx, run.ID, cause.Error()); markErr != nil && !errors.Is(markErr, repository.ErrRunStatusConflict) {
		s.logger.Error("failed to mark drift run failed",
			zap.String("drift_run_id", run.ID.String()),
			zap.Error(markErr),
			zap.NamedError("cause", cause),
		)
	}
	run.Status = domain.DriftRunStatusFailed
	message := cause.Error()
	run.ErrorMessage = &message

	s.logger.Warn("drift run failed",
		zap.String("drift_run_id", run.ID.String()),
		zap.Error(cause),
	)
	return run, cause
}

func (s *Service) evaluateAlert(ctx context.Context, run domain.DriftRun) {
	config, found, err := s.thresholds.Get(ctx, run.ProjectID)
	if err != nil {
		s.logger.Error("failed to load threshold config", zap.String("project_id", run.ProjectID.String()), zap.Error(err))
		return
	}
	if !found {
		config = domain.DefaultThresholds(run.ProjectID, s.defaultDSI, s.defaultDriftRatio)
	}

	alert, emit := s.evaluator.Evaluate(run, config)
	if !emit {
		return
	}

	created, err := s.alerts.Create(ctx, alert)
	if err != nil {
		s.logger.Error("failed to persist alert", zap.String("drift_run_id", run.ID.String()), zap.Error(err))
		return
	}

	// Delivery failures never fail the run or the alert record.
	if err := s.notifier.Notify(ctx, created, config.NotifyTarget); err != nil {
		s.logger.Warn("alert delivery failed",
			zap.String("alert_id", created.ID.String()),
			zap.String("target", config.NotifyTarget),
			zap.Error(err),
		)
	}
}

func (s *Service) createInlineDataset(ctx context.Context, projectID uuid.UUID, kind domain.DatasetKind, rows []map[string]string) (domain.Dataset, error) {
	headers := inlineHeaders(rows)
	if len(headers) == 0 {
		return domain.Dataset{}, fmt.Errorf("%w: inline rows contain no columns", drift.ErrValidation)
	}

	columns := make([]domain.DatasetColumn, 0, len(headers))
	for _, header := range headers {
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			if v, ok := row[header]; ok {
				values = append(values, v)
			}
		}
		samples := values
		if len(samples) > 10 {
			samples = samples[:10]
		}
		columns = append(columns, domain.DatasetColumn{
			Name:         header,
			Type:         drift.ClassifyValues(values),
			SampleValues: append([]string(nil), samples...),
		})
	}

	name := fmt.Sprintf("adhoc-%s-%s", kind, s.now().UTC().Format("20060102T150405"))
	dataset := domain.NewDataset(projectID, name, kind, columns, len(rows))
	return s.datasets.Create(ctx, dataset, rows)
}

func inlineHeaders(rows []map[string]string) []string {
	if len(rows) == 0 {
		return nil
	}
	headers := make([]string, 0, len(rows[0]))
	for header := range rows[0] {
		if strings.TrimSpace(header) == "" {
			continue
		}
		headers = append(headers, header)
	}
	sort.Strings(headers)
	return headers
}
