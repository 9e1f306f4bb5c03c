package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Metadata column names. Every other column of the reference dataset is a
// symptom.
const (
	ColumnDisease   = "disease"
	ColumnCures     = "cures"
	ColumnDoctor    = "doctor"
	ColumnRiskLevel = "risk level"
)

var metadataColumns = []string{ColumnDisease, ColumnCures, ColumnDoctor, ColumnRiskLevel}

// Dataset is what the service needs from the reference CSV.
type Dataset struct {
	Vocabulary *Vocabulary
	Metadata   *MetadataTable
}

// LoadFile reads the reference dataset at path.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Parse reads a CSV with a header row. The vocabulary keeps the header's
// column order, which must match the order the classifier was trained on.
func Parse(r io.Reader) (*Dataset, error) {
	// Names are kept byte for byte, surrounding spaces included, so they
	// match the columns the model was trained on.
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty dataset")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	metaIdx := make(map[string]int, len(metadataColumns))
	symptoms := make([]string, 0, len(header))
	for i, col := range header {
		if isMetadataColumn(col) {
			if _, dup := metaIdx[col]; dup {
				return nil, fmt.Errorf("duplicate column %q", col)
			}
			metaIdx[col] = i
			continue
		}
		symptoms = append(symptoms, col)
	}
	for _, col := range metadataColumns {
		if _, ok := metaIdx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	vocab, err := NewVocabulary(symptoms)
	if err != nil {
		return nil, err
	}

	table := NewMetadataTable()
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		info := DiseaseInfo{
			Cure:      record[metaIdx[ColumnCures]],
			Doctor:    record[metaIdx[ColumnDoctor]],
			RiskLevel: record[metaIdx[ColumnRiskLevel]],
		}
		if err := table.Add(record[metaIdx[ColumnDisease]], info); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
	}
	if table.Len() == 0 {
		return nil, errors.New("dataset has no rows")
	}

	return &Dataset{Vocabulary: vocab, Metadata: table}, nil
}

func isMetadataColumn(col string) bool {
	for _, c := range metadataColumns {
		if c == col {
			return true
		}
	}
	return false
}
