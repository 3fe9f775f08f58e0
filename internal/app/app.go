// Package app wires the detection pipeline, the capture catalog and the HTTP
// surface together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"hazardcam/internal/config"
	"hazardcam/internal/handler"
	"hazardcam/internal/logger"
	"hazardcam/internal/metrics"
	"hazardcam/internal/repository/sqlite"
	"hazardcam/internal/route"
	"hazardcam/internal/service/ai"
	"hazardcam/internal/service/ai/dnn"
	"hazardcam/internal/service/ai/onnx"
	"hazardcam/internal/service/camera"
	"hazardcam/internal/service/codec"
	"hazardcam/internal/service/danger"
	"hazardcam/internal/service/relay"
	"hazardcam/internal/service/storage"
	"hazardcam/internal/service/throttle"
	"hazardcam/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	captureRepo   *sqlite.CaptureRepository
	detectionRepo *sqlite.DetectionRepository
	detector      ai.Detector
	metrics       *metrics.Metrics
	hub           *websocket.HubService
	store         *storage.Store
	relay         *relay.Relay
}

// New builds every long-lived component. Failing to open the database, the
// capture directory or the detector is fatal.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := sqlite.New(cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}
	captureRepo := sqlite.NewCaptureRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	store, err := storage.New(cfg.CaptureDirectory, captureRepo, storage.WithLogger(log))
	if err != nil {
		db.Close()
		return nil, err
	}

	detector, err := newDetector(cfg, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load detector: %w", err)
	}

	m := metrics.New()
	hub := websocket.NewHubService(log, m)

	r := relay.New(relay.Dependencies{
		Codec:      codec.New(cfg.JPEGQuality),
		Detector:   detector,
		Classifier: danger.New(cfg.DangerousClasses),
		Throttle:   throttle.New(cfg.CaptureCooldown),
		Store:      store,
		Publisher:  hub,
		Metrics:    m,
		Logger:     log,
	}, relay.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		CaptureURLPrefix:    handler.CaptureURLPrefix,
	})

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		captureRepo:   captureRepo,
		detectionRepo: detectionRepo,
		detector:      detector,
		metrics:       m,
		hub:           hub,
		store:         store,
		relay:         r,
	}, nil
}

func newDetector(cfg *config.Config, log *logger.Logger) (ai.Detector, error) {
	if cfg.DetectorBackend == "remote" {
		return ai.NewRemoteDetector(cfg.DetectorURL, cfg.DetectorTimeout), nil
	}

	fallback := ai.COCOLabels
	if cfg.DetectorBackend == "dnn" {
		fallback = ai.SSDLabels
	}
	labels, err := ai.LoadLabels(cfg.LabelsPath, fallback)
	if err != nil {
		return nil, err
	}

	switch cfg.DetectorBackend {
	case "onnx":
		return onnx.New(cfg.ModelPath, labels, onnx.Options{
			LibraryPath: cfg.OnnxLibraryPath,
			PoolSize:    cfg.OnnxPoolSize,
		}, log)
	case "dnn":
		return dnn.New(cfg.ModelPath, cfg.ConfigPath, labels, dnn.Options{}, log)
	}
	return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
}

// Run serves HTTP, the alert hub and the UDP cameras until ctx is done, then
// shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(ctx)
	}()

	var cameras *camera.Manager
	if a.config.CamerasPort > 0 {
		cameras = camera.NewManager(ctx, func(ctx context.Context, f *camera.Feed) error {
			return a.relay.Serve(ctx, f)
		}, a.hub, a.logger)
		go func() {
			if err := handler.UDPCameraHandler(ctx, cameras, a.logger, a.config); err != nil {
				a.logger.Error("UDP camera handler stopped: %v", err)
			}
		}()
	}

	router := route.SetupRoutes(route.Services{
		Relay:         a.relay,
		Hub:           a.hub,
		Store:         a.store,
		CaptureRepo:   a.captureRepo,
		DetectionRepo: a.detectionRepo,
		Metrics:       a.metrics,
	}, a.config, a.logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          a.logger.StdLogger(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	a.logger.Info("Hazard camera server listening on :%d", a.config.Port)
	a.logger.Info("Detector backend: %s, dangerous classes: %v, cooldown: %v",
		a.config.DetectorBackend, a.config.DangerousClasses, a.config.CaptureCooldown)
	a.logger.Info("Captures: %s", a.store.Dir())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("HTTP shutdown: %v", serr)
	}
	if cameras != nil {
		cameras.Wait()
	}
	<-hubDone

	a.logger.Info("Server stopped")
	return err
}

// Close releases the detector and the database.
func (a *App) Close() error {
	return errors.Join(a.detector.Close(), a.db.Close())
}
