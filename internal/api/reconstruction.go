package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ShashidharM0118/sitelenz/internal/reconstruction"
)

// initReconstructionRoutes registers the 3D reconstruction endpoints.
func (c *Controller) initReconstructionRoutes() {
	g := c.Group.Group("/3d")
	g.POST("/start-session", c.Start3DSession)
	g.POST("/upload-image", c.Upload3DImage)
	g.POST("/reconstruct", c.Reconstruct)
	g.GET("/status/:recon_id", c.ReconstructionStatus)
	g.GET("/download/:recon_id/:file_type", c.DownloadModel)
	g.GET("/sessions", c.List3DSessions)
	g.DELETE("/session/:id", c.Delete3DSession)
}

type start3DSessionRequest struct {
	ProjectName string `json:"project_name"`
	RoomType    string `json:"room_type"`
}

// Start3DSession creates a new reconstruction capture session.
func (c *Controller) Start3DSession(ctx echo.Context) error {
	var req start3DSessionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.ProjectName == "" {
		req.ProjectName = "Untitled Project"
	}

	s, err := c.Recon.StartSession(req.ProjectName, req.RoomType)
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to start 3D session")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"session_id":   s.ID,
		"project_name": s.ProjectName,
		"room_type":    s.RoomType,
		"status":       s.Status,
	})
}

type upload3DImageRequest struct {
	SessionID      string              `json:"session_id"`
	Image          string              `json:"image"`
	CameraPose     reconstruction.Pose `json:"camera_pose"`
	Transcript     string              `json:"transcript"`
	Classification string              `json:"classification"`
	Confidence     float64             `json:"confidence"`
}

// Upload3DImage adds an image to a reconstruction session.
func (c *Controller) Upload3DImage(ctx echo.Context) error {
	var req upload3DImageRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.SessionID == "" {
		return c.HandleError(ctx, nil, "session_id is required", http.StatusBadRequest)
	}

	data, err := decodeBase64Image(req.Image)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid image payload", http.StatusBadRequest)
	}

	count, err := c.Recon.UploadImage(req.SessionID, data, req.CameraPose,
		req.Transcript, req.Classification, req.Confidence)
	if err != nil {
		return c.handleDomainError(ctx, err, "Image upload failed")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"session_id":  req.SessionID,
		"image_count": count,
	})
}

type reconstructRequest struct {
	SessionID string `json:"session_id"`
	Quality   string `json:"quality"`
}

// Reconstruct launches a background reconstruction job for the session.
func (c *Controller) Reconstruct(ctx echo.Context) error {
	var req reconstructRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.SessionID == "" {
		return c.HandleError(ctx, nil, "session_id is required", http.StatusBadRequest)
	}

	quality, err := reconstruction.ParseQuality(req.Quality)
	if err != nil {
		return c.handleDomainError(ctx, err, "Invalid quality setting")
	}

	job, err := c.Recon.StartReconstruction(req.SessionID, quality)
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to start reconstruction")
	}
	return ctx.JSON(http.StatusOK, job)
}

// ReconstructionStatus reports the progress of a job.
func (c *Controller) ReconstructionStatus(ctx echo.Context) error {
	job := c.Recon.JobStatus(ctx.Param("recon_id"))
	if job == nil {
		return c.HandleError(ctx, nil, "Reconstruction job not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, job)
}

// DownloadModel streams one of a completed job's output files.
func (c *Controller) DownloadModel(ctx echo.Context) error {
	path, err := c.Recon.DownloadPath(ctx.Param("recon_id"), ctx.Param("file_type"))
	if err != nil {
		return c.handleDomainError(ctx, err, "Model file not available")
	}
	return ctx.File(path)
}

// List3DSessions returns all reconstruction sessions, newest first.
func (c *Controller) List3DSessions(ctx echo.Context) error {
	sessions := c.Recon.Sessions()
	return ctx.JSON(http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Delete3DSession removes a reconstruction session and its files.
func (c *Controller) Delete3DSession(ctx echo.Context) error {
	if err := c.Recon.DeleteSession(ctx.Param("id")); err != nil {
		return c.handleDomainError(ctx, err, "Failed to delete session")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"status": "deleted"})
}
