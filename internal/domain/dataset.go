package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FeatureType classifies how a column is scored by the drift engine.
type FeatureType string

const (
	FeatureTypeNumeric     FeatureType = "numeric"
	FeatureTypeCategorical FeatureType = "categorical"
	// FeatureTypeText marks columns no estimator covers. Text columns still
	// appear in drift output as unscored metrics so they are auditable.
	FeatureTypeText FeatureType = "text"
)

// DatasetKind marks which side of a comparison a dataset plays.
type DatasetKind string

const (
	DatasetKindBaseline DatasetKind = "baseline"
	DatasetKindCurrent  DatasetKind = "current"
)

// DatasetColumn describes one named column of an uploaded dataset.
type DatasetColumn struct {
	Name         string      `json:"name"`
	Type         FeatureType `json:"type"`
	SampleValues []string    `json:"sample_values,omitempty"`
}

// Dataset is an immutable, identified collection of named columns owned by a
// project. Datasets are created on upload and never mutated afterwards; drift
// runs only ever read them.
type Dataset struct {
	ID        uuid.UUID       `json:"id"`
	ProjectID uuid.UUID       `json:"project_id"`
	Name      string          `json:"name"`
	Kind      DatasetKind     `json:"kind"`
	RowCount  int             `json:"row_count"`
	Columns   []DatasetColumn `json:"columns"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewDataset creates a dataset snapshot from parsed upload data.
func NewDataset(projectID uuid.UUID, name string, kind DatasetKind, columns []DatasetColumn, rowCount int) Dataset {
	return Dataset{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Kind:      kind,
		RowCount:  rowCount,
		Columns:   append([]DatasetColumn(nil), columns...),
		CreatedAt: time.Now(),
	}
}

// Headers returns the ordered column names.
func (d Dataset) Headers() []string {
	headers := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		headers[i] = col.Name
	}
	return headers
}

// ColumnsToJSON marshals the column schema into the JSONB layout stored in Postgres.
func (d Dataset) ColumnsToJSON() (json.RawMessage, error) {
	columns := d.Columns
	if columns == nil {
		columns = []DatasetColumn{}
	}
	return json.Marshal(columns)
}

// DatasetColumnsFromJSON unmarshals persisted column JSON.
func DatasetColumnsFromJSON(data []byte) ([]DatasetColumn, error) {
	if len(data) == 0 {
		return []DatasetColumn{}, nil
	}
	var columns []DatasetColumn
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, err
	}
	if columns == nil {
		columns = []DatasetColumn{}
	}
	return columns, nil
}
