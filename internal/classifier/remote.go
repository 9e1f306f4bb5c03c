package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Remote calls a model server that owns the trained classifier.
//
//	POST {base}/predict        {"features": [...]} -> {"class_id": 3}
//	POST {base}/predict_proba  {"features": [...]} -> {"probabilities": [...]}
type Remote struct {
	client *resty.Client
}

type remoteRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	ClassID *int `json:"class_id"`
}

type probaResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

func NewRemote(baseURL string, timeout time.Duration) (*Remote, error) {
	if baseURL == "" {
		return nil, errors.New("classifier url is empty")
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Remote{client: client}, nil
}

func (r *Remote) Predict(ctx context.Context, features []float64) (int, error) {
	var out predictResponse
	if err := r.post(ctx, "/predict", features, &out); err != nil {
		return 0, err
	}
	if out.ClassID == nil {
		return 0, errors.New("model server response has no class_id")
	}
	return *out.ClassID, nil
}

func (r *Remote) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	var out probaResponse
	if err := r.post(ctx, "/predict_proba", features, &out); err != nil {
		return nil, err
	}
	return out.Probabilities, nil
}

func (r *Remote) post(ctx context.Context, path string, features []float64, result interface{}) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(remoteRequest{Features: features}).
		SetResult(result).
		Post(path)
	if err != nil {
		return fmt.Errorf("model server %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("model server %s: status %d", path, resp.StatusCode())
	}
	return nil
}
