package predict

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Skufu/symptomcheck/internal/classifier"
)

const (
	fixtureCSV = `fever,cough,headache,disease,cures,doctor,risk level
1,1,0,flu,rest,GP,low
0,0,1,migraine,dark room,neurologist,medium
0,0,1,migraine,dark room,neurologist,medium
`
	fixtureModel = `{
	"model_version": "2024-01",
	"feature_columns": ["fever", "cough", "headache"],
	"classes": 2,
	"intercepts": [0, 0],
	"coefficients": [[3, 3, -2], [-2, -2, 4]]
}`
	fixtureLabels = `{"classes": ["flu", "migraine"]}`
)

type fixture struct {
	dir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{dir: t.TempDir()}
	f.write(t, "dataset.csv", fixtureCSV)
	f.write(t, "model.json", fixtureModel)
	f.write(t, "labels.json", fixtureLabels)
	return f
}

func (f fixture) write(t *testing.T, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func (f fixture) sources() Sources {
	return Sources{
		DatasetPath: filepath.Join(f.dir, "dataset.csv"),
		ModelPath:   filepath.Join(f.dir, "model.json"),
		DecoderPath: filepath.Join(f.dir, "labels.json"),
	}
}

func TestLoadEndToEnd(t *testing.T) {
	f := newFixture(t)
	a, err := Load(context.Background(), f.sources(), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ModelVersion != "2024-01" || a.Vocabulary.Len() != 3 || a.Metadata.Len() != 2 {
		t.Fatalf("unexpected artifacts %+v", a)
	}

	p, err := NewPipeline(a, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Predict(context.Background(), []string{"fever", "cough"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Disease != "flu" || res.Cure != "rest" || res.Doctor != "GP" || res.RiskLevel != "low" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoadSerializeWrapsClassifier(t *testing.T) {
	f := newFixture(t)
	src := f.sources()
	src.Serialize = true

	a, err := Load(context.Background(), src, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := a.Classifier.(*classifier.Serialized); !ok {
		t.Fatalf("expected serialized classifier, got %T", a.Classifier)
	}
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"corrupt model", "model.json", "{", "load classifier"},
		{"corrupt labels", "labels.json", "[]", "load label decoder"},
		{"dataset missing column", "dataset.csv", "fever,disease\n1,flu\n", "load dataset"},
		{
			"feature count mismatch", "model.json",
			`{"intercepts": [0, 0], "coefficients": [[1, 1], [1, 1]]}`,
			"expects 2 features",
		},
		{
			"feature order mismatch", "model.json",
			`{"feature_columns": ["cough", "fever", "headache"], "intercepts": [0, 0], "coefficients": [[1, 1, 1], [1, 1, 1]]}`,
			`feature 0 is "cough"`,
		},
		{"class count mismatch", "labels.json", `{"classes": ["flu"]}`, "label decoder has 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.write(t, tt.file, tt.body)

			_, err := Load(context.Background(), f.sources(), quietLogger())
			if KindOf(err) != KindArtifactLoad {
				t.Fatalf("expected artifact load failure, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	f := newFixture(t)
	src := f.sources()
	src.DatasetPath = filepath.Join(f.dir, "nope.csv")

	if _, err := Load(context.Background(), src, quietLogger()); KindOf(err) != KindArtifactLoad {
		t.Fatalf("expected artifact load failure, got %v", err)
	}
}

func TestLoadRemoteClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/predict" {
			w.Write([]byte(`{"class_id": 1}`))
			return
		}
		w.Write([]byte(`{"probabilities": [0.25, 0.75]}`))
	}))
	defer srv.Close()

	f := newFixture(t)
	src := f.sources()
	src.ModelPath = ""
	src.ClassifierURL = srv.URL
	src.ClassifierVersion = "2024-06"
	src.Timeout = time.Second

	a, err := Load(context.Background(), src, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ModelVersion != "remote:2024-06" {
		t.Fatalf("expected remote model version, got %q", a.ModelVersion)
	}
	p, err := NewPipeline(a, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Predict(context.Background(), []string{"headache"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Disease != "migraine" || res.Accuracy != 75 {
		t.Fatalf("unexpected result %+v", res)
	}
}
