package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/entities"
	"github.com/mrlokans/kompanion/internal/progress"
)

// progressRequest is the body KOReader's sync plugin sends. Timestamp is
// optional; a missing or non-positive value is replaced with server time.
type progressRequest struct {
	Document   string   `json:"document"`
	Percentage *float64 `json:"percentage"`
	Progress   string   `json:"progress"`
	Device     string   `json:"device"`
	DeviceID   string   `json:"device_id"`
	Timestamp  int64    `json:"timestamp"`
}

type ProgressController struct {
	progress ProgressStore
}

func NewProgressController(store ProgressStore) *ProgressController {
	return &ProgressController{progress: store}
}

// PUT /progress
// PUT /syncs/progress
func (pc *ProgressController) Update(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Percentage == nil {
		respondBadRequest(c, "percentage is required")
		return
	}

	device := req.Device
	if device == "" {
		device = identity.Principal()
	}

	record, err := pc.progress.Put(c.Request.Context(), progress.Update{
		DocumentID: req.Document,
		OwnerID:    identity.OwnerID,
		Percentage: *req.Percentage,
		Progress:   req.Progress,
		Device:     device,
		DeviceID:   req.DeviceID,
		Timestamp:  req.Timestamp,
	})
	if err != nil {
		var conflict *progress.ConflictError
		switch {
		case errors.As(err, &conflict):
			respondConflict(c, "a newer position is already recorded", conflict.Current)
		case errors.Is(err, progress.ErrInvalidDocument), errors.Is(err, progress.ErrInvalidPercentage):
			respondBadRequest(c, err.Error())
		default:
			respondInternalError(c, err, "put progress")
		}
		return
	}

	c.JSON(http.StatusOK, record)
}

// GET /progress/:document
func (pc *ProgressController) Get(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	record, err := pc.progress.Get(c.Request.Context(), c.Param("document"), identity.OwnerID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			respondNotFound(c, "progress")
			return
		}
		if errors.Is(err, progress.ErrInvalidDocument) {
			respondBadRequest(c, err.Error())
			return
		}
		respondInternalError(c, err, "get progress")
		return
	}

	c.JSON(http.StatusOK, record)
}

// GET /syncs/progress/:document
//
// The kosync server answers an unknown document with an empty object, and
// KOReader treats anything else as an error.
func (pc *ProgressController) GetCompat(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	record, err := pc.progress.Get(c.Request.Context(), c.Param("document"), identity.OwnerID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		if errors.Is(err, progress.ErrInvalidDocument) {
			respondBadRequest(c, err.Error())
			return
		}
		respondInternalError(c, err, "get progress")
		return
	}

	c.JSON(http.StatusOK, record)
}

// GET /api/progress
func (pc *ProgressController) List(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	records, err := pc.progress.List(c.Request.Context(), identity.OwnerID)
	if err != nil {
		respondInternalError(c, err, "list progress")
		return
	}
	if records == nil {
		records = []entities.ProgressRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

// GET /users/auth
func (pc *ProgressController) Authorized(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authorized": "OK"})
}
