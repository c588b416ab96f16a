package driftrun

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/drift"
	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProjectRepo struct {
	projects map[uuid.UUID]domain.Project
}

func (s *stubProjectRepo) Create(_ context.Context, project domain.Project) (domain.Project, error) {
	s.projects[project.ID] = project
	return project, nil
}

func (s *stubProjectRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Project, error) {
	project, ok := s.projects[id]
	if !ok {
		return domain.Project{}, repository.ErrNotFound
	}
	return project, nil
}

func (s *stubProjectRepo) List(_ context.Context) ([]domain.Project, error) {
	projects := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, p)
	}
	return projects, nil
}

type stubDatasetRepo struct {
	datasets map[uuid.UUID]domain.Dataset
	rows     map[uuid.UUID][]map[string]string
}

func (s *stubDatasetRepo) Create(_ context.Context, dataset domain.Dataset, rows []map[string]string) (domain.Dataset, error) {
	s.datasets[dataset.ID] = dataset
	s.rows[dataset.ID] = rows
	return dataset, nil
}

func (s *stubDatasetRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Dataset, error) {
	dataset, ok := s.datasets[id]
	if !ok {
		return domain.Dataset{}, repository.ErrNotFound
	}
	return dataset, nil
}

func (s *stubDatasetRepo) GetRows(_ context.Context, id uuid.UUID) ([]map[string]string, error) {
	rows, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rows, nil
}

func (s *stubDatasetRepo) List(_ context.Context, projectID uuid.UUID) ([]domain.Dataset, error) {
	var datasets []domain.Dataset
	for _, d := range s.datasets {
		if d.ProjectID == projectID {
			datasets = append(datasets, d)
		}
	}
	return datasets, nil
}

// stubRunRepo mirrors the guarded-update semantics of the Postgres
// implementation so lifecycle tests exercise the same conflicts.
type stubRunRepo struct {
	runs    map[uuid.UUID]domain.DriftRun
	metrics map[uuid.UUID][]domain.FeatureMetric

	markRunningCalls int
}

func (s *stubRunRepo) Create(_ context.Context, run domain.DriftRun) (domain.DriftRun, error) {
	s.runs[run.ID] = run
	return run, nil
}

func (s *stubRunRepo) GetByID(_ context.Context, id uuid.UUID) (domain.DriftRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return domain.DriftRun{}, repository.ErrNotFound
	}
	return run, nil
}

func (s *stubRunRepo) List(_ context.Context, projectID *uuid.UUID, statuses []domain.DriftRunStatus, limit, offset int) ([]domain.DriftRun, error) {
	var runs []domain.DriftRun
	for _, run := range s.runs {
		if projectID != nil && run.ProjectID != *projectID {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *stubRunRepo) ListPending(_ context.Context, limit int) ([]domain.DriftRun, error) {
	var pending []domain.DriftRun
	for _, run := range s.runs {
		if run.Status == domain.DriftRunStatusPending && len(pending) < limit {
			pending = append(pending, run)
		}
	}
	return pending, nil
}

func (s *stubRunRepo) ListMetrics(_ context.Context, runID uuid.UUID) ([]domain.FeatureMetric, error) {
	return s.metrics[runID], nil
}

func (s *stubRunRepo) MarkRunning(_ context.Context, id uuid.UUID) error {
	s.markRunningCalls++
	run, ok := s.runs[id]
	if !ok || run.Status != domain.DriftRunStatusPending {
		return repository.ErrRunStatusConflict
	}
	now := time.Now()
	run.Status = domain.DriftRunStatusRunning
	run.StartedAt = &now
	s.runs[id] = run
	return nil
}

func (s *stubRunRepo) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) error {
	run, ok := s.runs[id]
	if !ok || run.Status.Terminal() {
		return repository.ErrRunStatusConflict
	}
	now := time.Now()
	run.Status = domain.DriftRunStatusFailed
	run.ErrorMessage = &errorMessage
	run.CompletedAt = &now
	s.runs[id] = run
	return nil
}

func (s *stubRunRepo) Complete(_ context.Context, run domain.DriftRun, metrics []domain.FeatureMetric) error {
	stored, ok := s.runs[run.ID]
	if !ok || stored.Status != domain.DriftRunStatusRunning {
		return repository.ErrRunStatusConflict
	}
	now := time.Now()
	stored.Status = domain.DriftRunStatusCompleted
	stored.DSI = run.DSI
	stored.DriftRatio = run.DriftRatio
	stored.Summary = run.Summary
	stored.CompletedAt = &now
	s.runs[run.ID] = stored
	s.metrics[run.ID] = metrics
	return nil
}

func (s *stubRunRepo) FailStale(_ context.Context, olderThan time.Duration) (int, error) {
	reaped := 0
	cutoff := time.Now().Add(-olderThan)
	for id, run := range s.runs {
		if run.Status == domain.DriftRunStatusRunning && run.StartedAt != nil && run.StartedAt.Before(cutoff) {
			message := "drift run exceeded stale timeout"
			run.Status = domain.DriftRunStatusFailed
			run.ErrorMessage = &message
			s.runs[id] = run
			reaped++
		}
	}
	return reaped, nil
}

type stubThresholdRepo struct {
	config domain.ThresholdConfig
	found  bool
}

func (s *stubThresholdRepo) Get(_ context.Context, projectID uuid.UUID) (domain.ThresholdConfig, bool, error) {
	return s.config, s.found, nil
}

func (s *stubThresholdRepo) Upsert(_ context.Context, config domain.ThresholdConfig) (domain.ThresholdConfig, error) {
	s.config = config
	s.found = true
	return config, nil
}

type stubAlertRepo struct {
	created []domain.Alert
}

func (s *stubAlertRepo) Create(_ context.Context, alert domain.Alert) (domain.Alert, error) {
	s.created = append(s.created, alert)
	return alert, nil
}

func (s *stubAlertRepo) List(_ context.Context, projectID uuid.UUID, limit, offset int) ([]domain.Alert, error) {
	return s.created, nil
}

type failingNotifier struct {
	calls int
}

func (n *failingNotifier) Notify(context.Context, domain.Alert, string) error {
	n.calls++
	return errors.New("webhook unreachable")
}

type testHarness struct {
	service    *Service
	projects   *stubProjectRepo
	datasets   *stubDatasetRepo
	runs       *stubRunRepo
	thresholds *stubThresholdRepo
	alerts     *stubAlertRepo
	project    domain.Project
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()

	h := &testHarness{
		projects:   &stubProjectRepo{projects: map[uuid.UUID]domain.Project{}},
		datasets:   &stubDatasetRepo{datasets: map[uuid.UUID]domain.Dataset{}, rows: map[uuid.UUID][]map[string]string{}},
		runs:       &stubRunRepo{runs: map[uuid.UUID]domain.DriftRun{}, metrics: map[uuid.UUID][]domain.FeatureMetric{}},
		thresholds: &stubThresholdRepo{},
		alerts:     &stubAlertRepo{},
	}
	h.project = domain.NewProject("credit-scoring", "loan approval model")
	h.projects.projects[h.project.ID] = h.project
	h.service = NewService(h.runs, h.datasets, h.projects, h.thresholds, h.alerts, zap.NewNop(), opts...)
	return h
}

func (h *testHarness) addDataset(kind domain.DatasetKind, headers []string, rows []map[string]string) domain.Dataset {
	columns := make([]domain.DatasetColumn, len(headers))
	for i, header := range headers {
		columns[i] = domain.DatasetColumn{Name: header, Type: domain.FeatureTypeNumeric}
	}
	dataset := domain.NewDataset(h.project.ID, fmt.Sprintf("%s-ds", kind), kind, columns, len(rows))
	h.datasets.datasets[dataset.ID] = dataset
	h.datasets.rows[dataset.ID] = rows
	return dataset
}

func numericRows(column string, start, count int) []map[string]string {
	rows := make([]map[string]string, count)
	for i := range rows {
		rows[i] = map[string]string{column: strconv.Itoa(start + i)}
	}
	return rows
}

func pendingRun(h *testHarness, baseline, current domain.Dataset) domain.DriftRun {
	run := domain.NewDriftRun(h.project.ID, baseline.ID, current.ID)
	h.runs.runs[run.ID] = run
	return run
}

func TestExecuteCompletesAndPersistsMetrics(t *testing.T) {
	h := newHarness(t)
	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 20))
	current := h.addDataset(domain.DatasetKindCurrent, []string{"score"}, numericRows("score", 101, 20))
	run := pendingRun(h, baseline, current)

	result, err := h.service.Execute(context.Background(), run.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DriftRunStatusCompleted, result.Status)
	assert.NotNil(t, result.CompletedAt)
	assert.NotEmpty(t, result.Summary)
	// Disjoint ranges drift hard on the only scored feature.
	assert.Equal(t, 1.0, result.DriftRatio)
	assert.Greater(t, result.DSI, 50.0)

	stored := h.runs.runs[run.ID]
	assert.Equal(t, domain.DriftRunStatusCompleted, stored.Status)
	require.Len(t, h.runs.metrics[run.ID], 1)
	assert.True(t, h.runs.metrics[run.ID][0].DriftFlag)
}

func TestExecuteHeaderMismatchFailsWithoutRunning(t *testing.T) {
	h := newHarness(t)
	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 10))
	current := h.addDataset(domain.DatasetKindCurrent, []string{"rating"}, numericRows("rating", 1, 10))
	run := pendingRun(h, baseline, current)

	_, err := h.service.Execute(context.Background(), run.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, drift.ErrValidation)

	// The run fails straight from pending with nothing persisted.
	assert.Zero(t, h.runs.markRunningCalls)
	stored := h.runs.runs[run.ID]
	assert.Equal(t, domain.DriftRunStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "rating")
	assert.Empty(t, h.runs.metrics[run.ID])
}

func TestExecuteTerminalRunIsNotRunnable(t *testing.T) {
	h := newHarness(t)
	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 10))
	current := h.addDataset(domain.DatasetKindCurrent, []string{"score"}, numericRows("score", 1, 10))
	run := pendingRun(h, baseline, current)

	_, err := h.service.Execute(context.Background(), run.ID)
	require.NoError(t, err)

	_, err = h.service.Execute(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrRunNotRunnable)
	assert.Equal(t, 1, h.runs.markRunningCalls)
}

func TestExecuteClaimConflictIsNotRunnable(t *testing.T) {
	h := newHarness(t)
	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 10))
	current := h.addDataset(domain.DatasetKindCurrent, []string{"score"}, numericRows("score", 1, 10))
	run := pendingRun(h, baseline, current)

	// Simulate another worker claiming the run between GetByID and MarkRunning.
	claimed := h.runs.runs[run.ID]
	claimed.Status = domain.DriftRunStatusRunning
	h.runs.runs[run.ID] = claimed

	_, err := h.service.Execute(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrRunNotRunnable)
}

func TestExecuteEmitsOneAlertAndSurvivesNotifierFailure(t *testing.T) {
	notifier := &failingNotifier{}
	h := newHarness(t, WithNotifier(notifier))
	h.thresholds.config = domain.ThresholdConfig{ProjectID: h.project.ID, DSIThreshold: 10, DriftRatioThreshold: 0.2}
	h.thresholds.found = true

	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 20))
	current := h.addDataset(domain.DatasetKindCurrent, []string{"score"}, numericRows("score", 101, 20))
	run := pendingRun(h, baseline, current)

	result, err := h.service.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriftRunStatusCompleted, result.Status)

	require.Len(t, h.alerts.created, 1)
	alert := h.alerts.created[0]
	assert.Equal(t, domain.AlertTypeDrift, alert.Type)
	assert.Equal(t, run.ID, alert.DriftRunID)
	assert.Equal(t, 1, notifier.calls)
}

func TestExecuteNoAlertBelowThresholds(t *testing.T) {
	h := newHarness(t)
	h.thresholds.config = domain.ThresholdConfig{ProjectID: h.project.ID, DSIThreshold: 200, DriftRatioThreshold: 2}
	h.thresholds.found = true

	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 20))
	current := h.addDataset(domain.DatasetKindCurrent, []string{"score"}, numericRows("score", 1, 20))
	run := pendingRun(h, baseline, current)

	_, err := h.service.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, h.alerts.created)
}

func TestCreateRejectsForeignDataset(t *testing.T) {
	h := newHarness(t)
	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 5))

	other := domain.NewProject("other", "")
	h.projects.projects[other.ID] = other
	foreign := domain.NewDataset(other.ID, "foreign", domain.DatasetKindCurrent, []domain.DatasetColumn{{Name: "score"}}, 5)
	h.datasets.datasets[foreign.ID] = foreign
	h.datasets.rows[foreign.ID] = numericRows("score", 1, 5)

	_, err := h.service.Create(context.Background(), CreateRequest{
		ProjectID:         h.project.ID,
		BaselineDatasetID: baseline.ID,
		CurrentDatasetID:  foreign.ID,
	})
	assert.ErrorIs(t, err, drift.ErrValidation)
}

func TestCreateRejectsUnknownProject(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Create(context.Background(), CreateRequest{ProjectID: uuid.New()})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunWithInlineRows(t *testing.T) {
	h := newHarness(t)

	result, err := h.service.Run(context.Background(), CreateRequest{
		ProjectID:    h.project.ID,
		BaselineRows: numericRows("latency_ms", 10, 15),
		CurrentRows:  numericRows("latency_ms", 10, 15),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DriftRunStatusCompleted, result.Status)
	assert.Equal(t, 0.0, result.DriftRatio)
	// Both inline payloads became persisted datasets.
	assert.Len(t, h.datasets.datasets, 2)
}

func TestGetAttachesMetrics(t *testing.T) {
	h := newHarness(t)
	baseline := h.addDataset(domain.DatasetKindBaseline, []string{"score"}, numericRows("score", 1, 10))
	current := h.addDataset(domain.DatasetKindCurrent, []string{"score"}, numericRows("score", 1, 10))
	run := pendingRun(h, baseline, current)

	_, err := h.service.Execute(context.Background(), run.ID)
	require.NoError(t, err)

	fetched, err := h.service.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Metrics, 1)
	assert.Equal(t, "score", fetched.Metrics[0].FeatureName)
}
