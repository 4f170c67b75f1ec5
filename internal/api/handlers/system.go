package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"kepler-recorder-go/internal/logging"
)

// DiskUsage reports usage of the recordings volume.
type DiskUsage interface {
	Usage() (*disk.UsageStat, error)
}

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	InstanceID string
	disk       DiskUsage
	memory     func() (*mem.VirtualMemoryStat, error)
	started    time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(instanceID string, disk DiskUsage) *SystemHandler {
	return &SystemHandler{
		InstanceID: instanceID,
		disk:       disk,
		memory:     mem.VirtualMemory,
		started:    time.Now(),
	}
}

// @Summary Get system stats
// @Description Process, memory and recordings volume statistics
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := gin.H{
		"instance_id":    h.InstanceID,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"memory_mb":      m.Alloc / 1024 / 1024,
		"cpu_cores":      runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}

	if vm, err := h.memory(); err == nil {
		stats["system_memory_used_percent"] = vm.UsedPercent
	} else {
		logging.Warn(c).Err(err).Msg("Failed to read system memory")
	}

	if h.disk != nil {
		if du, err := h.disk.Usage(); err == nil {
			stats["disk"] = gin.H{
				"path":         du.Path,
				"total_mb":     du.Total / 1024 / 1024,
				"free_mb":      du.Free / 1024 / 1024,
				"used_percent": du.UsedPercent,
			}
		} else {
			logging.Warn(c).Err(err).Msg("Failed to read disk usage")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"stats":     stats,
		"timestamp": time.Now().Unix(),
	})
}
