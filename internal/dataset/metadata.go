package dataset

import (
	"errors"
	"fmt"
)

// DiseaseInfo is the treatment and referral data attached to a disease.
type DiseaseInfo struct {
	Cure      string `json:"cure"`
	Doctor    string `json:"doctor"`
	RiskLevel string `json:"risk_level"`
}

// MetadataTable maps a disease name to its DiseaseInfo. It is keyed strictly
// by disease name; repeated identical rows collapse.
type MetadataTable struct {
	rows  map[string]DiseaseInfo
	order []string
}

func NewMetadataTable() *MetadataTable {
	return &MetadataTable{rows: make(map[string]DiseaseInfo)}
}

// Add inserts a row. A second row for the same disease must carry identical data.
func (t *MetadataTable) Add(disease string, info DiseaseInfo) error {
	if disease == "" {
		return errors.New("empty disease name")
	}
	if prev, ok := t.rows[disease]; ok {
		if prev != info {
			return fmt.Errorf("conflicting metadata for disease %q: %+v vs %+v", disease, prev, info)
		}
		return nil
	}
	t.rows[disease] = info
	t.order = append(t.order, disease)
	return nil
}

func (t *MetadataTable) Lookup(disease string) (DiseaseInfo, bool) {
	info, ok := t.rows[disease]
	return info, ok
}

func (t *MetadataTable) Len() int { return len(t.order) }

// Diseases returns disease names in first-seen order.
func (t *MetadataTable) Diseases() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
