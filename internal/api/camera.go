package api

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ShashidharM0118/sitelenz/internal/session"
)

// initCameraRoutes registers the camera capture and classification endpoints.
func (c *Controller) initCameraRoutes() {
	c.Group.POST("/camera/start", c.StartCamera)
	c.Group.POST("/camera/stop", c.StopCamera)
	c.Group.GET("/camera/status", c.CameraStatus)
	c.Group.POST("/camera/classify", c.ClassifyImage)
	c.Group.GET("/camera/classifications", c.GetClassifications)
	c.Group.POST("/camera/search", c.SearchClassifications)
}

// StartCamera begins camera monitoring in a new session.
func (c *Controller) StartCamera(ctx echo.Context) error {
	sessionID, err := c.Capture.StartCamera()
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to start camera monitoring")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":     "started",
		"session_id": sessionID,
	})
}

// StopCamera stops the running camera monitoring.
func (c *Controller) StopCamera(ctx echo.Context) error {
	if err := c.Capture.StopCamera(); err != nil {
		return c.handleDomainError(ctx, err, "Failed to stop camera monitoring")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"status": "stopped"})
}

// CameraStatus reports the camera capture state.
func (c *Controller) CameraStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Capture.CameraStatus())
}

type classifyRequest struct {
	Image string `json:"image"`
}

// ClassifyImage classifies a single image from a multipart upload or a
// base64 JSON body.
func (c *Controller) ClassifyImage(ctx echo.Context) error {
	if c.Classifier == nil {
		return c.HandleError(ctx, nil, "Classifier model is not loaded", http.StatusServiceUnavailable)
	}

	data, err := c.readImagePayload(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "No image provided", http.StatusBadRequest)
	}

	prediction, err := c.Classifier.PredictReader(bytes.NewReader(data))
	if err != nil {
		return c.handleDomainError(ctx, err, "Classification failed")
	}
	return ctx.JSON(http.StatusOK, prediction)
}

// readImagePayload extracts image bytes from a multipart form file or a
// base64 encoded JSON field.
func (c *Controller) readImagePayload(ctx echo.Context) ([]byte, error) {
	if file, err := ctx.FormFile("image"); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(src); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var req classifyRequest
	if err := ctx.Bind(&req); err != nil {
		return nil, err
	}
	return decodeBase64Image(req.Image)
}

// decodeBase64Image decodes an image payload, tolerating data URL prefixes.
func decodeBase64Image(payload string) ([]byte, error) {
	if payload == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "empty image payload")
	}
	if idx := strings.Index(payload, ","); idx != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}

// GetClassifications returns a session's classification entries. Without
// a session_id it falls back to the active camera session.
func (c *Controller) GetClassifications(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session_id")
	if sessionID == "" {
		sessionID = c.Capture.CameraStatus().SessionID
	}

	var entries []session.ClassificationEntry
	var err error
	switch {
	case sessionID == "":
		entries = []session.ClassificationEntry{}
	case c.DS != nil:
		entries, err = c.historyClassifications(sessionID)
	default:
		entries, err = c.Store.Classifications(sessionID)
	}
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to load classifications")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"session_id":      sessionID,
		"classifications": entries,
		"count":           len(entries),
	})
}

type classificationSearchRequest struct {
	DefectTypes   []string `json:"defect_types"`
	SessionID     string   `json:"session_id"`
	MinConfidence float64  `json:"min_confidence"`
}

// SearchClassifications finds classification entries by defect type and
// confidence threshold.
func (c *Controller) SearchClassifications(ctx echo.Context) error {
	var req classificationSearchRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	var matches []session.ClassificationEntry
	var err error
	if c.DS != nil {
		matches, err = c.historySearchClassifications(req.SessionID, req.DefectTypes, req.MinConfidence)
	} else {
		matches, err = c.Store.SearchClassifications(req.SessionID, req.DefectTypes, req.MinConfidence)
	}
	if err != nil {
		return c.handleDomainError(ctx, err, "Classification search failed")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}
