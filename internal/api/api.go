// Package api implements the REST surface of the SiteLenz backend.
package api

import (
	"crypto/rand"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/ShashidharM0118/sitelenz/internal/capture"
	"github.com/ShashidharM0118/sitelenz/internal/classifier"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/datastore"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/logging"
	"github.com/ShashidharM0118/sitelenz/internal/reconstruction"
	"github.com/ShashidharM0118/sitelenz/internal/session"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	Settings   *conf.Settings
	Store      *session.Store
	Capture    *capture.Manager
	Recon      *reconstruction.Manager
	Classifier *classifier.Classifier
	DS         datastore.Interface

	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLoggerClose func() error
	sessionCache   *cache.Cache
	startTime      time.Time
}

// New creates the API controller and registers all routes under /api.
func New(e *echo.Echo, settings *conf.Settings, store *session.Store, captureMgr *capture.Manager, reconMgr *reconstruction.Manager, cls *classifier.Classifier, ds datastore.Interface) *Controller {
	c := &Controller{
		Echo:         e,
		Group:        e.Group("/api"),
		Settings:     settings,
		Store:        store,
		Capture:      captureMgr,
		Recon:        reconMgr,
		Classifier:   cls,
		DS:           ds,
		logger:       log.Default(),
		sessionCache: cache.New(30*time.Second, time.Minute),
		startTime:    time.Now(),
	}

	if fileLogger, closeFn, err := logging.NewFileLogger("logs/api.log", "api", slog.LevelInfo); err == nil {
		c.apiLogger = fileLogger
		c.apiLoggerClose = closeFn
	} else {
		c.logger.Printf("Warning: failed to initialize API file logger: %v", err)
		c.apiLogger = slog.Default()
	}

	c.Group.Use(c.LoggingMiddleware())
	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"audio routes", c.initAudioRoutes},
		{"camera routes", c.initCameraRoutes},
		{"unified routes", c.initUnifiedRoutes},
		{"session routes", c.initSessionRoutes},
		{"reconstruction routes", c.initReconstructionRoutes},
	}

	for _, initializer := range routeInitializers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Printf("PANIC during %s initialization: %v", initializer.name, r)
				}
			}()
			initializer.fn()
		}()
	}
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Failed to close API log file: %v", err)
		}
	}
}

// LoggingMiddleware logs API requests with timing information.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)
			return err
		}
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error envelope with a fresh correlation id.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.logger.Printf("API Error [%s] from %s: %s: %v",
		errorResp.CorrelationID, ctx.RealIP(), message, err)

	if c.apiLogger != nil {
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorResp.Error,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// handleDomainError maps enhanced error categories onto HTTP status codes.
func (c *Controller) handleDomainError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusForError(err))
}

func statusForError(err error) int {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Category {
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryValidation, errors.CategoryState, errors.CategoryLimit, errors.CategoryImageDecode:
		return http.StatusBadRequest
	case errors.CategoryConfiguration:
		return http.StatusServiceUnavailable
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
