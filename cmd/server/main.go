package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/symptomcheck/internal/api"
	"github.com/Skufu/symptomcheck/internal/config"
	"github.com/Skufu/symptomcheck/internal/predict"
	"github.com/Skufu/symptomcheck/internal/store"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// dependencies are the optional backing services reported by /readyz.
type dependencies struct {
	db    HealthChecker
	cache HealthChecker
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)
	logger := newLogger(cfg)

	// run returns instead of exiting so its deferred Close calls flush the
	// pool and cache before the process ends.
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx := context.Background()
	artifacts, err := predict.Load(ctx, predict.Sources{
		DatasetPath:       cfg.DatasetPath,
		ModelPath:         cfg.ModelPath,
		DecoderPath:       cfg.DecoderPath,
		ClassifierURL:     cfg.ClassifierURL,
		ClassifierVersion: cfg.ClassifierVersion,
		Timeout:           cfg.ClassifierTimeout,
		Serialize:         cfg.SerializeClassifier,
	}, logger)
	if err != nil {
		return fmt.Errorf("load artifacts: %w", err)
	}

	pipeline, err := predict.NewPipeline(artifacts, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	var (
		deps      dependencies
		predictor predict.Predictor = pipeline
		opts                        = api.Options{ExposeDetails: cfg.ExposeErrorDetails}
	)

	if cfg.EnableDB {
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("database migration: %w", err)
		}
		deps.db = db
		opts.Recorder = db
	}

	if cfg.EnableCache {
		cache, err := store.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("cache connection: %w", err)
		}
		defer cache.Close()
		deps.cache = cache
		predictor = predict.NewCachedPredictor(pipeline, cache, cfg.CacheTTL, cfg.ClassifierTimeout, artifacts.ModelVersion, logger)
	}

	handlers := api.New(predictor, artifacts, opts, logger)
	router := setupRouter(cfg, handlers, deps, logger)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	logger.Infof("server listening on %s", cfg.Addr())
	return serve(server, stop, logger)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func setupRouter(cfg *config.Config, h *api.Handlers, deps dependencies, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		requestLogger(logger),
		gin.Recovery(),
		limitBodySize(cfg.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{"status": "ok"}
		status := http.StatusOK
		for name, dep := range map[string]HealthChecker{"db": deps.db, "cache": deps.cache} {
			if dep == nil {
				body[name] = "disabled"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				body[name] = fmt.Sprintf("unhealthy: %v", err)
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		c.JSON(status, body)
	})

	router.POST("/predict", h.Predict)
	router.GET("/symptoms", h.Symptoms)
	router.GET("/diseases", h.Diseases)

	return router
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Info("request")
	}
}

// serve runs the server until it fails or a signal arrives on stop, then
// drains in-flight requests.
func serve(server *http.Server, stop <-chan os.Signal, logger *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-stop:
	}

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
