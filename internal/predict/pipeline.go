package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Skufu/symptomcheck/internal/classifier"
	"github.com/Skufu/symptomcheck/internal/dataset"
)

// Artifacts is the read-only state loaded at startup and shared by every
// request.
type Artifacts struct {
	Vocabulary *dataset.Vocabulary
	Metadata   *dataset.MetadataTable
	Classifier classifier.Classifier
	Decoder    *classifier.LabelDecoder
	// ModelVersion is informational; it scopes cache keys.
	ModelVersion string
}

// Vector is a 0/1 feature vector aligned to the vocabulary.
type Vector []float64

// Result is a complete prediction.
type Result struct {
	Disease   string  `json:"disease"`
	Cure      string  `json:"cure"`
	Doctor    string  `json:"doctor"`
	RiskLevel string  `json:"risk_level"`
	Accuracy  float64 `json:"accuracy"`
}

// Predictor is anything that turns a symptom list into a Result.
type Predictor interface {
	Predict(ctx context.Context, symptoms []string) (*Result, error)
}

type Pipeline struct {
	artifacts *Artifacts
	logger    *logrus.Logger
}

func NewPipeline(a *Artifacts, logger *logrus.Logger) (*Pipeline, error) {
	if a == nil || a.Vocabulary == nil || a.Metadata == nil || a.Classifier == nil || a.Decoder == nil {
		return nil, errors.New("pipeline requires vocabulary, metadata, classifier and decoder")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{artifacts: a, logger: logger}, nil
}

func (p *Pipeline) Artifacts() *Artifacts { return p.artifacts }

// Validate collapses symptoms into a set and checks it against the
// vocabulary.
func (p *Pipeline) Validate(symptoms []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		set[s] = struct{}{}
	}
	if len(set) == 0 {
		return nil, invalidInput("no symptoms provided")
	}

	var unexpected []string
	for s := range set {
		if !p.artifacts.Vocabulary.Contains(s) {
			unexpected = append(unexpected, s)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, invalidInput(fmt.Sprintf("unexpected symptoms found: [%s]", strings.Join(unexpected, " ")))
	}

	p.logger.WithFields(logrus.Fields{
		"provided": len(set),
		"missing":  p.artifacts.Vocabulary.Len() - len(set),
	}).Debug("symptoms validated")
	return set, nil
}

// BuildVector emits 1 at position i iff vocabulary[i] is in set.
func (p *Pipeline) BuildVector(set map[string]struct{}) Vector {
	vocab := p.artifacts.Vocabulary
	vec := make(Vector, vocab.Len())
	for i := range vec {
		if _, ok := set[vocab.At(i)]; ok {
			vec[i] = 1
		}
	}
	return vec
}

// Predict runs validate, vectorize, infer, decode and lookup. It returns
// either a complete Result or an *Error.
func (p *Pipeline) Predict(ctx context.Context, symptoms []string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = unhandled("prediction failed", fmt.Errorf("panic: %v", r))
		}
	}()

	set, err := p.Validate(symptoms)
	if err != nil {
		return nil, err
	}
	vec := p.BuildVector(set)

	proba, err := p.artifacts.Classifier.PredictProba(ctx, vec)
	if err != nil {
		return nil, unhandled("prediction failed", err)
	}
	classID, err := p.artifacts.Classifier.Predict(ctx, vec)
	if err != nil {
		return nil, unhandled("prediction failed", err)
	}

	disease, err := p.artifacts.Decoder.Decode(classID)
	if err != nil {
		return nil, unhandled("prediction failed", err)
	}

	info, ok := p.artifacts.Metadata.Lookup(disease)
	if !ok {
		return nil, internalConsistency("prediction failed",
			fmt.Errorf("disease %q has no metadata", disease))
	}

	accuracy, err := confidence(proba)
	if err != nil {
		return nil, unhandled("prediction failed", err)
	}

	return &Result{
		Disease:   disease,
		Cure:      info.Cure,
		Doctor:    info.Doctor,
		RiskLevel: info.RiskLevel,
		Accuracy:  accuracy,
	}, nil
}

// confidence is the top class probability as a percentage rounded to two
// decimals.
func confidence(proba []float64) (float64, error) {
	if len(proba) == 0 {
		return 0, errors.New("empty probability distribution")
	}
	top := proba[0]
	for _, v := range proba[1:] {
		if v > top {
			top = v
		}
	}
	if math.IsNaN(top) || top < 0 || top > 1 {
		return 0, fmt.Errorf("top probability %v outside [0,1]", top)
	}
	// FormatFloat rounds the exact binary value half to even, matching a
	// two-digit round of the percentage.
	return strconv.ParseFloat(strconv.FormatFloat(top*100, 'f', 2, 64), 64)
}
