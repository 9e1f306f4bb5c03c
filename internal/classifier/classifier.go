package classifier

import (
	"context"
	"sync"
)

// Classifier is a trained model. Vectors are positionally aligned to the
// feature vocabulary the model was trained on.
type Classifier interface {
	// Predict returns the most likely class id.
	Predict(ctx context.Context, features []float64) (int, error)
	// PredictProba returns one probability per class id.
	PredictProba(ctx context.Context, features []float64) ([]float64, error)
}

// Describer is implemented by classifiers that know their own shape, which
// lets the loader check them against the vocabulary and the label decoder.
type Describer interface {
	NumFeatures() int
	NumClasses() int
	// FeatureColumns returns the training column order, or nil if unknown.
	FeatureColumns() []string
}

// Serialized guards a Classifier that is not safe for concurrent calls.
type Serialized struct {
	mu    sync.Mutex
	inner Classifier
}

func Serialize(c Classifier) *Serialized {
	return &Serialized{inner: c}
}

func (s *Serialized) Predict(ctx context.Context, features []float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Predict(ctx, features)
}

func (s *Serialized) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.PredictProba(ctx, features)
}

// Unwrap returns the guarded classifier.
func (s *Serialized) Unwrap() Classifier { return s.inner }
