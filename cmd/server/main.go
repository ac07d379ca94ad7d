package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/digit-api/internal/config"
	"github.com/Brownie44l1/digit-api/internal/handlers"
	"github.com/Brownie44l1/digit-api/internal/logging"
	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/recognizer"
	"github.com/Brownie44l1/digit-api/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	os.Exit(exitCode(logger, run(cfg, logger)))
}

// exitCode logs a fatal error and flushes the logger before the process
// exits, since os.Exit skips deferred calls.
func exitCode(logger *zap.SugaredLogger, err error) int {
	code := 0
	if err != nil {
		logger.Errorw("server stopped", "error", err)
		code = 1
	}
	logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	// The model is loaded exactly once, before the listener opens.
	fwd, closeFwd, err := openForwarder(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFwd()

	rec, err := recognizer.New(fwd, recognizer.Options{
		InputSize: cfg.Model.InputSize,
		CacheSize: cfg.Cache.Size,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build recognizer: %w", err)
	}

	opts := handlers.Options{Backend: cfg.Model.Backend, MaxUploadMB: cfg.Server.MaxUploadMB}
	if cfg.History.Path != "" {
		hist, err := store.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer hist.Close()
		opts.History = hist
		logger.Infow("prediction history enabled", "path", cfg.History.Path)
	}

	handler := handlers.NewHandler(rec, opts, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("server starting", "port", cfg.Server.Port, "backend", cfg.Model.Backend)
		logger.Info("endpoints: GET /health, POST /predict, POST /predict/image, GET /ws/predict, GET /history, GET /history/stats, GET /")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func openForwarder(cfg *config.Config, logger *zap.SugaredLogger) (model.Forwarder, func(), error) {
	switch cfg.Model.Backend {
	case config.BackendONNX:
		logger.Infow("loading ONNX model", "path", cfg.Model.ONNXPath)
		eng, err := model.NewONNXEngine(model.ONNXConfig{
			ModelPath:   cfg.Model.ONNXPath,
			LibraryPath: cfg.Model.ONNXLibrary,
			InputWidth:  cfg.Model.InputSize * cfg.Model.InputSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return eng, eng.Close, nil
	default:
		logger.Infow("loading weights", "path", cfg.Model.Weights)
		loader := model.Loader{InputWidth: cfg.Model.InputSize * cfg.Model.InputSize}
		f, err := os.Open(cfg.Model.Weights)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil, fmt.Errorf("weight artifact %s not found; train and export the model first: %w", cfg.Model.Weights, err)
			}
			return nil, nil, err
		}
		defer f.Close()
		m, err := loader.Load(f)
		if err != nil {
			return nil, nil, err
		}
		logger.Infow("model loaded", "layers", m.NumLayers(), "input_width", m.InputWidth(), "classes", m.OutputWidth())
		eng, err := model.NewEngine(m)
		if err != nil {
			return nil, nil, err
		}
		return eng, func() {}, nil
	}
}
