package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrRunNotExportable is returned for runs that never produced results.
var ErrRunNotExportable = errors.New("drift run has no exportable results")

const (
	summarySheet = "Summary"
	metricsSheet = "Feature Metrics"

	// XlsxMimeType is the content type for generated reports.
	XlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Service builds downloadable xlsx reports for completed drift runs.
type Service struct {
	runs     repository.DriftRunRepository
	projects repository.ProjectRepository
	logger   *zap.Logger
}

// NewService wires the report builder.
func NewService(runs repository.DriftRunRepository, projects repository.ProjectRepository, logger *zap.Logger) *Service {
	return &Service{
		runs:     runs,
		projects: projects,
		logger:   logger,
	}
}

// Report is a rendered xlsx payload ready for streaming.
type Report struct {
	FileName string
	MimeType string
	Data     []byte
}

// BuildRunReport renders the summary and per-feature metrics of a completed
// run into a two-sheet workbook. Only completed runs export; failed and
// in-flight runs have nothing to report.
func (s *Service) BuildRunReport(ctx context.Context, runID uuid.UUID) (Report, error) {
	if runID == uuid.Nil {
		return Report{}, errors.New("run ID is required")
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return Report{}, err
	}
	if run.Status != domain.DriftRunStatusCompleted {
		return Report{}, fmt.Errorf("%w: status is %s", ErrRunNotExportable, run.Status)
	}

	project, err := s.projects.GetByID(ctx, run.ProjectID)
	if err != nil {
		return Report{}, fmt.Errorf("load project: %w", err)
	}

	metrics, err := s.runs.ListMetrics(ctx, runID)
	if err != nil {
		return Report{}, fmt.Errorf("load metrics: %w", err)
	}

	data, err := renderWorkbook(project, run, metrics)
	if err != nil {
		return Report{}, err
	}

	s.logger.Info("drift report exported",
		zap.String("drift_run_id", run.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.Int("metrics", len(metrics)),
	)

	return Report{
		FileName: reportFileName(project, run),
		MimeType: XlsxMimeType,
		Data:     data,
	}, nil
}

func renderWorkbook(project domain.Project, run domain.DriftRun, metrics []domain.FeatureMetric) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}

	summaryRows := [][]any{
		{"Project", project.Name},
		{"Run ID", run.ID.String()},
		{"Status", string(run.Status)},
		{"Drift Severity Index", run.DSI},
		{"Drift Ratio", run.DriftRatio},
		{"Summary", run.Summary},
		{"Created At", run.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
	}
	if run.CompletedAt != nil {
		summaryRows = append(summaryRows, []any{"Completed At", run.CompletedAt.UTC().Format("2006-01-02 15:04:05")})
	}
	for idx, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return nil, fmt.Errorf("summary cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}

	if _, err := f.NewSheet(metricsSheet); err != nil {
		return nil, fmt.Errorf("create metrics sheet: %w", err)
	}

	header := []any{"Feature", "Type", "PSI", "KL Divergence", "Drifted"}
	if err := f.SetSheetRow(metricsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write metrics header: %w", err)
	}

	for idx, metric := range metrics {
		row := []any{
			metric.FeatureName,
			string(metric.FeatureType),
			formatScore(metric.PSI),
			formatScore(metric.KLDivergence),
			metric.DriftFlag,
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return nil, fmt.Errorf("metrics cell name: %w", err)
		}
		if err := f.SetSheetRow(metricsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write metric row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// formatScore renders nil scores as empty cells rather than zeroes so text
// columns stay visibly unscored.
func formatScore(score *float64) any {
	if score == nil {
		return ""
	}
	return *score
}

func reportFileName(project domain.Project, run domain.DriftRun) string {
	base := sanitizeFileComponent(project.Name)
	if base == "" {
		base = "drift-report"
	}
	return fmt.Sprintf("%s-%s.xlsx", base, run.ID.String())
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	return result
}
