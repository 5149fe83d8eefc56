package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/kompanion/internal/auth"
)

type registerDeviceRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// DevicesController manages the administrator's registered readers.
type DevicesController struct {
	devices DeviceManager
	stats   StatisticsStore
	purges  PurgeQueue // retries failed purges; nil when background tasks are disabled
}

func NewDevicesController(devices DeviceManager, stats StatisticsStore, purges PurgeQueue) *DevicesController {
	return &DevicesController{devices: devices, stats: stats, purges: purges}
}

// GET /api/devices
func (dc *DevicesController) List(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	devices, err := dc.devices.ListDevices(c.Request.Context(), identity.OwnerID)
	if err != nil {
		respondInternalError(c, err, "list devices")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"total":   len(devices),
	})
}

// POST /api/devices
func (dc *DevicesController) Register(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name and password are required")
		return
	}

	device, err := dc.devices.RegisterDevice(c.Request.Context(), identity.OwnerID, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDeviceExists):
			respondError(c, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrDeviceNameInvalid),
			errors.Is(err, auth.ErrDeviceNameReserved),
			errors.Is(err, auth.ErrPasswordRequired):
			respondBadRequest(c, err.Error())
		default:
			respondInternalError(c, err, "register device")
		}
		return
	}

	log.Printf("Devices: registered %q", device.Name)
	respondCreated(c, device)
}

// DELETE /api/devices/:name
func (dc *DevicesController) Remove(c *gin.Context) {
	name := c.Param("name")

	if err := dc.devices.RemoveDevice(c.Request.Context(), name); err != nil {
		if errors.Is(err, auth.ErrDeviceNotFound) {
			respondNotFound(c, "device")
			return
		}
		respondInternalError(c, err, "remove device")
		return
	}

	dc.purgeStatistics(c.Request.Context(), name, time.Now())
	respondSuccess(c, "device removed")
}

// purgeStatistics deletes the removed device's statistics before the
// response goes out, so a device registered again under the same name
// starts clean. Failures are handed to the task queue for retry.
func (dc *DevicesController) purgeStatistics(ctx context.Context, device string, removedAt time.Time) {
	err := dc.stats.Purge(ctx, device)
	if err == nil {
		return
	}
	if dc.purges == nil {
		log.Printf("Devices: failed to purge statistics for %q: %v", device, err)
		return
	}

	log.Printf("Devices: failed to purge statistics for %q, queueing retry: %v", device, err)
	if qerr := dc.purges.EnqueueDevicePurge(context.WithoutCancel(ctx), device, removedAt); qerr != nil {
		log.Printf("Devices: failed to queue statistics purge for %q: %v", device, qerr)
	}
}
