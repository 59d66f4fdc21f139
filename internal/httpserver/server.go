// Package httpserver assembles the REST service: component wiring, the
// echo instance and graceful shutdown.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ShashidharM0118/sitelenz/internal/api"
	"github.com/ShashidharM0118/sitelenz/internal/capture"
	"github.com/ShashidharM0118/sitelenz/internal/classifier"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/datastore"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/observability"
	"github.com/ShashidharM0118/sitelenz/internal/reconstruction"
	"github.com/ShashidharM0118/sitelenz/internal/session"
	"github.com/ShashidharM0118/sitelenz/internal/speech"
)

// Server is the assembled SiteLenz backend.
type Server struct {
	Echo       *echo.Echo
	Settings   *conf.Settings
	Controller *api.Controller
	Capture    *capture.Manager
	Recon      *reconstruction.Manager
	DS         datastore.Interface
	Metrics    *observability.Metrics
}

// New wires all components and returns a ready-to-run server.
func New(settings *conf.Settings) (*Server, error) {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(settings)
	if err != nil {
		return nil, err
	}

	// the classifier is optional so the API can run on hosts without
	// the model file, classify endpoints then return 503
	var cls *classifier.Classifier
	cls, err = classifier.New(settings)
	if err != nil {
		if !settings.Classifier.Optional {
			return nil, err
		}
		slog.Warn("classifier unavailable, classify endpoints disabled", "error", err)
		cls = nil
	}
	if cls != nil {
		cls.SetMetrics(metrics.Classifier)
	}

	transcriber, err := speech.New(settings, metrics.Speech)
	if err != nil {
		slog.Warn("speech engine unavailable, audio capture disabled", "error", err)
		transcriber = nil
	}

	var ds datastore.Interface
	if settings.Output.SQLite.Enabled {
		ds = datastore.New(settings)
		if err := ds.Open(); err != nil {
			return nil, err
		}
	}

	var predictor capture.Predictor
	if cls != nil {
		predictor = cls
	}
	captureMgr := capture.NewManager(settings, store, predictor, transcriber, ds, metrics.Capture)

	runner := reconstruction.NewRunner(settings.Reconstruction.ColmapPath, metrics.Reconstruction)
	reconMgr, err := reconstruction.NewManager(settings, runner, metrics.Reconstruction)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("50M"))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	controller := api.New(e, settings, store, captureMgr, reconMgr, cls, ds)

	return &Server{
		Echo:       e,
		Settings:   settings,
		Controller: controller,
		Capture:    captureMgr,
		Recon:      reconMgr,
		DS:         ds,
		Metrics:    metrics,
	}, nil
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		addr := ":" + s.Settings.WebServer.Port
		slog.Info("starting http server", "addr", addr)
		if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return errors.New(err).
			Component("httpserver").
			Category(errors.CategoryNetwork).
			Build()
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server and releases component resources.
func (s *Server) Shutdown() error {
	slog.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	// stop capture loops so their final flush happens before exit
	if s.Capture.AudioStatus().Recording {
		if err := s.Capture.StopAudio(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Capture.CameraStatus().Recording {
		if err := s.Capture.StopCamera(); err != nil {
			errs = append(errs, err)
		}
	}

	s.Controller.Shutdown()

	if s.DS != nil {
		if err := s.DS.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
