package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/drift"
	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Column sample values persisted with each dataset, and the cap on how many
// row issues a single upload may write to the ingestion log.
const (
	columnSampleSize = 10
	maxLoggedIssues  = 20
)

// Service ingests tabular uploads into immutable dataset snapshots.
type Service struct {
	datasets repository.DatasetRepository
	projects repository.ProjectRepository
	logs     repository.IngestionLogRepository
	logger   *zap.Logger
}

// NewService creates a new ingestion service.
func NewService(
	datasets repository.DatasetRepository,
	projects repository.ProjectRepository,
	logs repository.IngestionLogRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		datasets: datasets,
		projects: projects,
		logs:     logs,
		logger:   logger,
	}
}

// Request describes the ingestion input.
type Request struct {
	ProjectID      uuid.UUID
	DatasetName    string
	Kind           domain.DatasetKind
	FileName       string
	HeaderRowIndex *int
	Data           io.Reader
}

// PreviewRequest describes the preview input prior to ingestion.
type PreviewRequest struct {
	FileName       string
	HeaderRowIndex *int
	Data           io.Reader
	Limit          int
}

// PreviewHeader summarizes column level metadata for previews.
type PreviewHeader struct {
	Name          string `json:"name"`
	OriginalLabel string `json:"originalLabel"`
	DetectedType  string `json:"detectedType"`
}

// PreviewRow captures sample data prior to ingestion.
type PreviewRow struct {
	RowNumber int               `json:"rowNumber"`
	Values    map[string]string `json:"values"`
}

// HeaderCandidate represents a potential header row option.
type HeaderCandidate struct {
	Index   int      `json:"index"`
	Values  []string `json:"values"`
	Current bool     `json:"current"`
}

// PreviewResult returns preview metadata back to clients.
type PreviewResult struct {
	TotalRows        int               `json:"totalRows"`
	Headers          []PreviewHeader   `json:"headers"`
	Rows             []PreviewRow      `json:"rows"`
	HeaderCandidates []HeaderCandidate `json:"headerCandidates"`
}

// Summary returns ingestion level metrics alongside the persisted dataset.
type Summary struct {
	Dataset    domain.Dataset `json:"dataset"`
	TotalRows  int            `json:"totalRows"`
	IssueCount int            `json:"issueCount"`
}

type tableData struct {
	headers        []string
	rawHeaders     []string
	rows           [][]string
	headerRowIndex int
}

// Ingest reads the uploaded file, profiles its columns and persists the
// dataset snapshot. Datasets are immutable once created.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	var summary Summary

	if req.ProjectID == uuid.Nil {
		return summary, errors.New("project id is required")
	}
	if strings.TrimSpace(req.DatasetName) == "" {
		return summary, errors.New("dataset name is required")
	}
	if req.Kind != domain.DatasetKindBaseline && req.Kind != domain.DatasetKindCurrent {
		return summary, fmt.Errorf("dataset kind must be %q or %q", domain.DatasetKindBaseline, domain.DatasetKindCurrent)
	}
	if req.Data == nil {
		return summary, errors.New("data reader is required")
	}

	if _, err := s.projects.GetByID(ctx, req.ProjectID); err != nil {
		return summary, fmt.Errorf("failed to resolve project: %w", err)
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, errors.New("file is empty")
	}

	table, _, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}
	if len(table.headers) == 0 {
		return summary, errors.New("no header row detected")
	}
	if len(table.rows) == 0 {
		return summary, errors.New("no data rows found in file")
	}

	columns := profileColumns(table)
	rows := rowsToMaps(table)
	summary.TotalRows = len(rows)
	summary.IssueCount = s.logRowIssues(ctx, req, table, columns)

	dataset := domain.NewDataset(req.ProjectID, req.DatasetName, req.Kind, columns, len(rows))
	created, err := s.datasets.Create(ctx, dataset, rows)
	if err != nil {
		return summary, fmt.Errorf("failed to persist dataset: %w", err)
	}
	summary.Dataset = created

	s.logger.Info("dataset ingested",
		zap.String("dataset_id", created.ID.String()),
		zap.String("project_id", req.ProjectID.String()),
		zap.String("kind", string(req.Kind)),
		zap.Int("rows", summary.TotalRows),
		zap.Int("columns", len(columns)),
		zap.Int("issues", summary.IssueCount),
	)
	return summary, nil
}

// Preview parses a limited set of rows without persisting anything.
func (s *Service) Preview(_ context.Context, req PreviewRequest) (PreviewResult, error) {
	result := PreviewResult{
		Headers:          []PreviewHeader{},
		Rows:             []PreviewRow{},
		HeaderCandidates: []HeaderCandidate{},
	}

	if req.Data == nil {
		return result, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return result, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return result, errors.New("file is empty")
	}

	table, records, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return result, err
	}

	result.HeaderCandidates = buildHeaderCandidates(records, 10, table.headerRowIndex)

	if len(table.headers) == 0 {
		return result, errors.New("no header row detected")
	}

	result.TotalRows = len(table.rows)

	columns := profileColumns(table)
	for idx, column := range columns {
		header := PreviewHeader{
			Name:         column.Name,
			DetectedType: string(column.Type),
		}
		if idx < len(table.rawHeaders) {
			header.OriginalLabel = table.rawHeaders[idx]
		}
		result.Headers = append(result.Headers, header)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	for rowIdx, row := range table.rows {
		if rowIdx >= limit {
			break
		}
		values := make(map[string]string, len(table.headers))
		for colIdx, header := range table.headers {
			if colIdx < len(row) {
				values[header] = strings.TrimSpace(row[colIdx])
			} else {
				values[header] = ""
			}
		}
		result.Rows = append(result.Rows, PreviewRow{
			RowNumber: table.headerRowIndex + rowIdx + 2,
			Values:    values,
		})
	}

	return result, nil
}

// profileColumns classifies every column and captures sample values.
func profileColumns(table tableData) []domain.DatasetColumn {
	columns := make([]domain.DatasetColumn, 0, len(table.headers))
	for idx, header := range table.headers {
		values := columnValues(idx, table.rows)
		samples := values
		if len(samples) > columnSampleSize {
			samples = samples[:columnSampleSize]
		}
		columns = append(columns, domain.DatasetColumn{
			Name:         header,
			Type:         drift.ClassifyValues(values),
			SampleValues: append([]string(nil), samples...),
		})
	}
	return columns
}

func columnValues(col int, rows [][]string) []string {
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if value := strings.TrimSpace(row[col]); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func rowsToMaps(table tableData) []map[string]string {
	rows := make([]map[string]string, len(table.rows))
	for rowIdx, row := range table.rows {
		values := make(map[string]string, len(table.headers))
		for colIdx, header := range table.headers {
			if colIdx < len(row) {
				values[header] = strings.TrimSpace(row[colIdx])
			} else {
				values[header] = ""
			}
		}
		rows[rowIdx] = values
	}
	return rows
}

// logRowIssues records cells that do not match their column's detected type,
// capped so a malformed upload cannot flood the log.
func (s *Service) logRowIssues(ctx context.Context, req Request, table tableData, columns []domain.DatasetColumn) int {
	issues := 0
	for rowIdx, row := range table.rows {
		rowNumber := table.headerRowIndex + rowIdx + 2 // include header row (1-based)
		for colIdx, column := range columns {
			if column.Type != domain.FeatureTypeNumeric || colIdx >= len(row) {
				continue
			}
			raw := strings.TrimSpace(row[colIdx])
			if raw == "" {
				continue
			}
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				issues++
				if issues <= maxLoggedIssues {
					s.recordIssue(ctx, req, rowNumber, fmt.Errorf("column %s: value %q is not numeric", column.Name, raw))
				}
			}
		}
	}
	return issues
}

func (s *Service) recordIssue(ctx context.Context, req Request, rowNumber int, err error) {
	if s.logs == nil || err == nil {
		return
	}
	entry := domain.IngestionLogEntry{
		ProjectID:    req.ProjectID,
		DatasetName:  req.DatasetName,
		FileName:     req.FileName,
		RowNumber:    &rowNumber,
		ErrorMessage: err.Error(),
	}
	if recordErr := s.logs.Record(ctx, entry); recordErr != nil {
		s.logger.Warn("failed to record ingestion issue", zap.Error(recordErr))
	}
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to read csv: %w", err)
	}

	table, err := normalizeTable(records, headerRowIndex)
	if err != nil {
		return tableData{}, nil, err
	}
	return table, records, nil
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	table, err := normalizeTable(rows, headerRowIndex)
	if err != nil {
		return tableData{}, nil, err
	}
	return table, rows, nil
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		selected := cleanRow(records[*headerRowIndex])
		if len(selected) == 0 {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		headerIndex = *headerRowIndex
		for idx := *headerRowIndex + 1; idx < len(records); idx++ {
			row := records[idx]
			if len(cleanRow(row)) == 0 {
				continue
			}
			dataRows = append(dataRows, row)
		}
	} else {
		for idx, row := range records {
			if len(cleanRow(row)) == 0 {
				continue
			}
			if headerRow == nil {
				headerRow = row
				headerIndex = idx
				continue
			}
			dataRows = append(dataRows, row)
		}
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	rawHeaders := make([]string, len(headerRow))
	for i, value := range headerRow {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	dataRows = filterEmptyRows(dataRows)

	return tableData{
		headers:        headers,
		rawHeaders:     rawHeaders,
		rows:           dataRows,
		headerRowIndex: headerIndex,
	}, nil
}

func buildHeaderCandidates(records [][]string, limit int, currentIndex int) []HeaderCandidate {
	if limit <= 0 {
		limit = 10
	}

	candidates := make([]HeaderCandidate, 0, limit)
	for idx, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}

		values := make([]string, len(row))
		for i, cell := range row {
			values[i] = strings.TrimSpace(cell)
		}

		candidates = append(candidates, HeaderCandidate{
			Index:   idx,
			Values:  values,
			Current: idx == currentIndex,
		})

		if len(candidates) >= limit {
			break
		}
	}

	return candidates
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	for i := len(row); i < length; i++ {
		padded[i] = ""
	}
	return padded
}

func filterEmptyRows(rows [][]string) [][]string {
	var filtered [][]string
	for _, row := range rows {
		keep := false
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				keep = true
				break
			}
		}
		if keep {
			filtered = append(filtered, row)
		}
	}
	return filtered
}
