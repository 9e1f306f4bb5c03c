package classifier

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const modelJSON = `{
	"model_version": "v1",
	"feature_columns": ["fever", "cough", "headache"],
	"classes": 2,
	"intercepts": [0, 0],
	"coefficients": [[2, 2, -1], [-1, -1, 3]]
}`

func TestLoadLinearAndPredict(t *testing.T) {
	m, err := LoadLinear(writeFile(t, "model.json", modelJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.NumFeatures() != 3 || m.NumClasses() != 2 || m.Version != "v1" {
		t.Fatalf("unexpected model shape %+v", m)
	}

	ctx := context.Background()
	proba, err := m.PredictProba(ctx, []float64{1, 1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sum float64
	for _, p := range proba {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities should sum to 1, got %v", proba)
	}
	if proba[0] <= proba[1] {
		t.Fatalf("expected class 0 to dominate, got %v", proba)
	}

	id, err := m.Predict(ctx, []float64{0, 0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected class 1, got %d", id)
	}

	if _, err := m.Predict(ctx, []float64{1, 0}); err == nil {
		t.Fatal("expected error for short vector")
	}
}

func TestLinearTiesPickLowestID(t *testing.T) {
	m := &Linear{Intercepts: []float64{0, 0, 0}, Coefficients: [][]float64{{0}, {0}, {0}}}
	id, err := m.Predict(context.Background(), []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Fatalf("expected 0, got %d", id)
	}
}

func TestLoadLinearRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"not json", "{", "parse model"},
		{"no classes", `{"intercepts": [], "coefficients": []}`, "no classes"},
		{"row mismatch", `{"intercepts": [0, 0], "coefficients": [[1, 2]]}`, "coefficient rows"},
		{"ragged", `{"intercepts": [0, 0], "coefficients": [[1, 2], [1]]}`, "row 1"},
		{"class count", `{"classes": 3, "intercepts": [0], "coefficients": [[1]]}`, "declares 3 classes"},
		{"columns", `{"feature_columns": ["a"], "intercepts": [0], "coefficients": [[1, 2]]}`, "feature columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLinear(writeFile(t, "model.json", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLabelDecoder(t *testing.T) {
	d, err := LoadLabelDecoder(writeFile(t, "labels.json", `{"classes": ["flu", "migraine"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, err := d.Decode(1)
	if err != nil || name != "migraine" {
		t.Fatalf("expected migraine, got %q (%v)", name, err)
	}
	if id, ok := d.Encode("flu"); !ok || id != 0 {
		t.Fatalf("expected flu -> 0, got %d %v", id, ok)
	}
	if _, err := d.Decode(2); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := d.Decode(-1); err == nil {
		t.Fatal("expected out of range error")
	}

	if _, err := NewLabelDecoder([]string{"flu", "flu"}); err == nil {
		t.Fatal("expected duplicate class error")
	}
	if _, err := NewLabelDecoder(nil); err == nil {
		t.Fatal("expected error for empty decoder")
	}
}

type countingClassifier struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (c *countingClassifier) enter() {
	c.mu.Lock()
	c.active++
	if c.active > c.maxSeen {
		c.maxSeen = c.active
	}
	c.mu.Unlock()
	time.Sleep(time.Millisecond)
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

func (c *countingClassifier) Predict(context.Context, []float64) (int, error) {
	c.enter()
	return 0, nil
}

func (c *countingClassifier) PredictProba(context.Context, []float64) ([]float64, error) {
	c.enter()
	return []float64{1}, nil
}

func TestSerializedAllowsOneCallAtATime(t *testing.T) {
	inner := &countingClassifier{}
	s := Serialize(inner)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Predict(context.Background(), nil)
			_, _ = s.PredictProba(context.Background(), nil)
		}()
	}
	wg.Wait()

	if inner.maxSeen != 1 {
		t.Fatalf("expected at most one concurrent call, saw %d", inner.maxSeen)
	}
	if s.Unwrap() != Classifier(inner) {
		t.Fatal("Unwrap should return the inner classifier")
	}
}

func TestRemoteClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if len(req.Features) != 3 {
			http.Error(w, "bad shape", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/predict":
			w.Write([]byte(`{"class_id": 1}`))
		case "/predict_proba":
			w.Write([]byte(`{"probabilities": [0.2, 0.8]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r, err := NewRemote(srv.URL+"/", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	id, err := r.Predict(ctx, []float64{1, 0, 1})
	if err != nil || id != 1 {
		t.Fatalf("expected class 1, got %d (%v)", id, err)
	}
	proba, err := r.PredictProba(ctx, []float64{1, 0, 1})
	if err != nil || len(proba) != 2 || proba[1] != 0.8 {
		t.Fatalf("unexpected probabilities %v (%v)", proba, err)
	}

	if _, err := r.Predict(ctx, []float64{1}); err == nil || !strings.Contains(err.Error(), "status 422") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNewRemoteRequiresURL(t *testing.T) {
	if _, err := NewRemote("", time.Second); err == nil {
		t.Fatal("expected error for empty url")
	}
}
