package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ShashidharM0118/sitelenz/internal/session"
)

// initAudioRoutes registers the audio capture endpoints.
func (c *Controller) initAudioRoutes() {
	c.Group.POST("/audio/start", c.StartAudio)
	c.Group.POST("/audio/stop", c.StopAudio)
	c.Group.GET("/audio/status", c.AudioStatus)
	c.Group.GET("/audio/transcripts", c.GetTranscripts)
	c.Group.POST("/audio/search", c.SearchTranscripts)
}

// StartAudio begins audio recording in a new session.
func (c *Controller) StartAudio(ctx echo.Context) error {
	sessionID, err := c.Capture.StartAudio()
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to start audio recording")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":     "started",
		"session_id": sessionID,
	})
}

// StopAudio stops the running audio recording.
func (c *Controller) StopAudio(ctx echo.Context) error {
	if err := c.Capture.StopAudio(); err != nil {
		return c.handleDomainError(ctx, err, "Failed to stop audio recording")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"status": "stopped"})
}

// AudioStatus reports the audio capture state.
func (c *Controller) AudioStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Capture.AudioStatus())
}

// GetTranscripts returns a session's transcript entries. Without a
// session_id it falls back to the active audio session.
func (c *Controller) GetTranscripts(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session_id")
	if sessionID == "" {
		sessionID = c.Capture.AudioStatus().SessionID
	}

	var entries []session.TranscriptEntry
	var err error
	switch {
	case sessionID == "":
		entries = []session.TranscriptEntry{}
	case c.DS != nil:
		entries, err = c.historyTranscripts(sessionID)
	default:
		entries, err = c.Store.Transcripts(sessionID)
	}
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to load transcripts")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"session_id":  sessionID,
		"transcripts": entries,
		"count":       len(entries),
	})
}

type transcriptSearchRequest struct {
	Keywords  []string `json:"keywords"`
	SessionID string   `json:"session_id"`
}

// SearchTranscripts finds transcript entries containing any keyword.
func (c *Controller) SearchTranscripts(ctx echo.Context) error {
	var req transcriptSearchRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if len(req.Keywords) == 0 {
		return c.HandleError(ctx, nil, "keywords are required", http.StatusBadRequest)
	}

	var matches []session.TranscriptEntry
	var err error
	if c.DS != nil {
		matches, err = c.historySearchTranscripts(req.SessionID, req.Keywords)
	} else {
		matches, err = c.Store.SearchTranscripts(req.SessionID, req.Keywords)
	}
	if err != nil {
		return c.handleDomainError(ctx, err, "Transcript search failed")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}
