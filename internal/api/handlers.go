package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/symptomcheck/internal/dataset"
	"github.com/Skufu/symptomcheck/internal/predict"
)

// PredictRequest is the body of POST /predict. A missing symptoms field is
// treated as an empty list.
type PredictRequest struct {
	Symptoms []string `json:"symptoms"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DiseaseEntry is one row of GET /diseases.
type DiseaseEntry struct {
	Disease string `json:"disease"`
	dataset.DiseaseInfo
}

// Recorder persists successful predictions. Failures are logged only.
type Recorder interface {
	RecordPrediction(ctx context.Context, symptoms []string, disease string, accuracy float64) error
}

type Options struct {
	// ExposeDetails adds the internal error text to 500 responses.
	ExposeDetails bool
	Recorder      Recorder
}

// Handlers serves the prediction endpoints.
type Handlers struct {
	predictor  predict.Predictor
	vocabulary *dataset.Vocabulary
	metadata   *dataset.MetadataTable
	opts       Options
	logger     *logrus.Logger
}

func New(p predict.Predictor, a *predict.Artifacts, opts Options, logger *logrus.Logger) *Handlers {
	return &Handlers{
		predictor:  p,
		vocabulary: a.Vocabulary,
		metadata:   a.Metadata,
		opts:       opts,
		logger:     logger,
	}
}

// Predict handles POST /predict.
func (h *Handlers) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("invalid predict payload")
		h.internalError(c, "invalid request payload", err)
		return
	}

	res, err := h.predictor.Predict(c.Request.Context(), req.Symptoms)
	if err != nil {
		if predict.IsInvalidInput(err) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.WithError(err).WithFields(logrus.Fields{
			"kind":     predict.KindOf(err),
			"symptoms": req.Symptoms,
		}).Error("prediction failed")
		h.internalError(c, safeMessage(err), err)
		return
	}

	if h.opts.Recorder != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		if err := h.opts.Recorder.RecordPrediction(ctx, req.Symptoms, res.Disease, res.Accuracy); err != nil {
			h.logger.WithError(err).Warn("failed to record prediction")
		}
		cancel()
	}

	c.JSON(http.StatusOK, res)
}

// Symptoms handles GET /symptoms.
func (h *Handlers) Symptoms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symptoms": h.vocabulary.Names()})
}

// Diseases handles GET /diseases.
func (h *Handlers) Diseases(c *gin.Context) {
	names := h.metadata.Diseases()
	out := make([]DiseaseEntry, 0, len(names))
	for _, name := range names {
		info, _ := h.metadata.Lookup(name)
		out = append(out, DiseaseEntry{Disease: name, DiseaseInfo: info})
	}
	c.JSON(http.StatusOK, gin.H{"diseases": out})
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if h.opts.ExposeDetails {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusInternalServerError, resp)
}

func safeMessage(err error) string {
	var pe *predict.Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "internal server error"
}
