package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Linear is a multinomial linear model:
//
//	z_k = Intercepts[k] + sum_i Coefficients[k][i] * x_i
//	P(k) = softmax(z)_k
//
// It holds no per-call state and is safe for concurrent use.
type Linear struct {
	Version      string
	Columns      []string
	Intercepts   []float64
	Coefficients [][]float64
}

type linearArtifact struct {
	ModelVersion   string      `json:"model_version"`
	FeatureColumns []string    `json:"feature_columns"`
	Classes        int         `json:"classes"`
	Intercepts     []float64   `json:"intercepts"`
	Coefficients   [][]float64 `json:"coefficients"`
}

// LoadLinear reads a JSON model artifact.
func LoadLinear(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var raw linearArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	m := &Linear{
		Version:      raw.ModelVersion,
		Columns:      raw.FeatureColumns,
		Intercepts:   raw.Intercepts,
		Coefficients: raw.Coefficients,
	}
	if raw.Classes != 0 && raw.Classes != len(raw.Intercepts) {
		return nil, fmt.Errorf("model declares %d classes but has %d intercepts", raw.Classes, len(raw.Intercepts))
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Linear) validate() error {
	if len(m.Intercepts) == 0 {
		return errors.New("model has no classes")
	}
	if len(m.Coefficients) != len(m.Intercepts) {
		return fmt.Errorf("model has %d coefficient rows for %d classes", len(m.Coefficients), len(m.Intercepts))
	}
	n := len(m.Coefficients[0])
	if n == 0 {
		return errors.New("model has no features")
	}
	for k, row := range m.Coefficients {
		if len(row) != n {
			return fmt.Errorf("coefficient row %d has %d features, want %d", k, len(row), n)
		}
	}
	if m.Columns != nil && len(m.Columns) != n {
		return fmt.Errorf("model lists %d feature columns but has %d features", len(m.Columns), n)
	}
	return nil
}

func (m *Linear) NumFeatures() int { return len(m.Coefficients[0]) }

func (m *Linear) NumClasses() int { return len(m.Intercepts) }

func (m *Linear) FeatureColumns() []string { return m.Columns }

func (m *Linear) PredictProba(_ context.Context, features []float64) ([]float64, error) {
	if len(features) != m.NumFeatures() {
		return nil, fmt.Errorf("feature vector has length %d, model expects %d", len(features), m.NumFeatures())
	}
	z := make([]float64, len(m.Intercepts))
	maxZ := math.Inf(-1)
	for k, b := range m.Intercepts {
		s := b
		for i, x := range features {
			if x != 0 {
				s += m.Coefficients[k][i] * x
			}
		}
		z[k] = s
		if s > maxZ {
			maxZ = s
		}
	}
	// shift by max for numerical stability
	var sum float64
	for k := range z {
		z[k] = math.Exp(z[k] - maxZ)
		sum += z[k]
	}
	for k := range z {
		z[k] /= sum
	}
	return z, nil
}

// Predict returns the argmax of PredictProba; the lowest class id wins ties.
func (m *Linear) Predict(ctx context.Context, features []float64) (int, error) {
	proba, err := m.PredictProba(ctx, features)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
