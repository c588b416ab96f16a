package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type stubRunRepo struct {
	run     domain.DriftRun
	metrics []domain.FeatureMetric
}

func (s *stubRunRepo) Create(_ context.Context, run domain.DriftRun) (domain.DriftRun, error) {
	return run, nil
}

func (s *stubRunRepo) GetByID(_ context.Context, id uuid.UUID) (domain.DriftRun, error) {
	if id != s.run.ID {
		return domain.DriftRun{}, repository.ErrNotFound
	}
	return s.run, nil
}

func (s *stubRunRepo) List(context.Context, *uuid.UUID, []domain.DriftRunStatus, int, int) ([]domain.DriftRun, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRunRepo) ListPending(context.Context, int) ([]domain.DriftRun, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRunRepo) ListMetrics(context.Context, uuid.UUID) ([]domain.FeatureMetric, error) {
	return s.metrics, nil
}

func (s *stubRunRepo) MarkRunning(context.Context, uuid.UUID) error { return nil }

func (s *stubRunRepo) MarkFailed(context.Context, uuid.UUID, string) error { return nil }

func (s *stubRunRepo) Complete(context.Context, domain.DriftRun, []domain.FeatureMetric) error {
	return nil
}

func (s *stubRunRepo) FailStale(context.Context, time.Duration) (int, error) { return 0, nil }

type stubProjectRepo struct {
	project domain.Project
}

func (s *stubProjectRepo) Create(_ context.Context, project domain.Project) (domain.Project, error) {
	return project, nil
}

func (s *stubProjectRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Project, error) {
	if id != s.project.ID {
		return domain.Project{}, repository.ErrNotFound
	}
	return s.project, nil
}

func (s *stubProjectRepo) List(context.Context) ([]domain.Project, error) {
	return nil, errors.New("not implemented")
}

func floatPtr(v float64) *float64 { return &v }

func TestBuildRunReportRendersBothSheets(t *testing.T) {
	project := domain.NewProject("Churn Model", "")
	run := domain.NewDriftRun(project.ID, uuid.New(), uuid.New())
	run.Status = domain.DriftRunStatusCompleted
	run.DSI = 42.5
	run.DriftRatio = 0.5
	run.Summary = "1 of 2 scored features drifted"

	service := NewService(
		&stubRunRepo{
			run: run,
			metrics: []domain.FeatureMetric{
				{FeatureName: "age", FeatureType: domain.FeatureTypeNumeric, PSI: floatPtr(0.42), DriftFlag: true},
				{FeatureName: "notes", FeatureType: domain.FeatureTypeText},
			},
		},
		&stubProjectRepo{project: project},
		zap.NewNop(),
	)

	report, err := service.BuildRunReport(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, XlsxMimeType, report.MimeType)
	assert.Contains(t, report.FileName, "churn-model")
	assert.Contains(t, report.FileName, run.ID.String())

	f, err := excelize.OpenReader(bytes.NewReader(report.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{summarySheet, metricsSheet}, f.GetSheetList())

	projectCell, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Churn Model", projectCell)

	feature, err := f.GetCellValue(metricsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "age", feature)

	// Unscored text columns render empty cells, not zeroes.
	textPSI, err := f.GetCellValue(metricsSheet, "C3")
	require.NoError(t, err)
	assert.Empty(t, textPSI)
}

func TestBuildRunReportRejectsNonCompletedRuns(t *testing.T) {
	project := domain.NewProject("Churn Model", "")
	run := domain.NewDriftRun(project.ID, uuid.New(), uuid.New())
	run.Status = domain.DriftRunStatusFailed

	service := NewService(&stubRunRepo{run: run}, &stubProjectRepo{project: project}, zap.NewNop())

	_, err := service.BuildRunReport(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrRunNotExportable)
}

func TestBuildRunReportUnknownRun(t *testing.T) {
	service := NewService(&stubRunRepo{}, &stubProjectRepo{}, zap.NewNop())

	_, err := service.BuildRunReport(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
