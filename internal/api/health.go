package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthCheck reports component availability and basic system metrics.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":         "healthy",
		"version":        c.Settings.Version,
		"build_date":     c.Settings.BuildDate,
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
		"components": map[string]any{
			"classifier":     c.Classifier != nil,
			"reconstruction": c.Recon != nil && c.Recon.ColmapAvailable(),
			"database":       c.databaseHealthy(),
		},
		"system": systemMetrics(),
	}
	return ctx.JSON(http.StatusOK, response)
}

func (c *Controller) databaseHealthy() bool {
	if c.DS == nil {
		return false
	}
	_, _, err := c.DS.Counts()
	return err == nil
}

// systemMetrics samples host resource usage. Metric failures degrade to
// missing fields rather than failing the health check.
func systemMetrics() map[string]any {
	metrics := make(map[string]any)

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		metrics["cpu_percent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		metrics["memory_percent"] = vm.UsedPercent
		metrics["memory_total_mb"] = vm.Total / 1024 / 1024
	}
	if usage, err := disk.Usage("/"); err == nil {
		metrics["disk_percent"] = usage.UsedPercent
		metrics["disk_free_gb"] = usage.Free / 1024 / 1024 / 1024
	}

	return metrics
}
