package api

import (
	"bytes"
	"image"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ShashidharM0118/sitelenz/internal/session"
)

// initUnifiedRoutes registers the unified monitoring endpoints.
func (c *Controller) initUnifiedRoutes() {
	c.Group.POST("/unified/start", c.StartUnified)
	c.Group.POST("/unified/stop", c.StopUnified)
	c.Group.GET("/unified/status", c.UnifiedStatus)
	c.Group.POST("/unified/capture", c.UnifiedCapture)
	c.Group.GET("/unified/logs", c.GetUnifiedLogs)
}

// StartUnified begins synchronized audio and camera capture.
func (c *Controller) StartUnified(ctx echo.Context) error {
	sessionID, err := c.Capture.StartUnified()
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to start unified monitoring")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":     "started",
		"session_id": sessionID,
	})
}

// StopUnified stops synchronized capture.
func (c *Controller) StopUnified(ctx echo.Context) error {
	if err := c.Capture.StopUnified(); err != nil {
		return c.handleDomainError(ctx, err, "Failed to stop unified monitoring")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"status": "stopped"})
}

// UnifiedStatus reports the combined monitoring state.
func (c *Controller) UnifiedStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Capture.UnifiedStatusReport())
}

type unifiedCaptureRequest struct {
	Image      string `json:"image"`
	Transcript string `json:"transcript"`
	Timestamp  string `json:"timestamp"`
}

// UnifiedCapture classifies a client-supplied frame and appends a
// synchronized log entry with its transcript.
func (c *Controller) UnifiedCapture(ctx echo.Context) error {
	var req unifiedCaptureRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Image == "" && req.Transcript == "" {
		return c.HandleError(ctx, nil, "image or transcript is required", http.StatusBadRequest)
	}

	var img image.Image
	if req.Image != "" {
		data, err := decodeBase64Image(req.Image)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid image payload", http.StatusBadRequest)
		}
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return c.HandleError(ctx, err, "Cannot decode image", http.StatusBadRequest)
		}
	}

	sessionID, prediction, err := c.Capture.CaptureUnified(img, req.Transcript, req.Image, req.Timestamp)
	if err != nil {
		return c.handleDomainError(ctx, err, "Unified capture failed")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"session_id":     sessionID,
		"classification": prediction,
		"transcript":     req.Transcript,
	})
}

// GetUnifiedLogs returns a session's synchronized capture entries, or
// every session's entries when no session_id is given.
func (c *Controller) GetUnifiedLogs(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session_id")

	var logs []session.UnifiedEntry
	var err error
	if sessionID == "" {
		logs, err = c.Store.AllUnifiedLogs()
	} else {
		logs, err = c.Store.UnifiedLogs(sessionID)
	}
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to load unified logs")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"session_id": sessionID,
		"logs":       logs,
		"count":      len(logs),
	})
}
