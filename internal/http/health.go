package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/kompanion/internal/storage"
)

// blobCheckPath is read on every health check. It is never written, so a
// reachable backend answers not found.
const blobCheckPath = ".kompanion-health"

const healthCheckTimeout = 5 * time.Second

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthController reports whether the database and the blob backend
// answer.
type HealthController struct {
	db      Pinger
	blobs   BlobReader
	version string
}

func NewHealthController(db Pinger, blobs BlobReader, version string) *HealthController {
	return &HealthController{
		db:      db,
		blobs:   blobs,
		version: version,
	}
}

// GET /health
func (h *HealthController) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"database":     h.checkDatabase(),
		"blob_storage": h.checkBlobs(ctx),
	}

	status := "healthy"
	for _, result := range checks {
		if result != "ok" && result != "not configured" {
			status = "unhealthy"
		}
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	})
}

func (h *HealthController) checkDatabase() string {
	if h.db == nil {
		return "not configured"
	}
	if err := h.db.Ping(); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func (h *HealthController) checkBlobs(ctx context.Context) string {
	if h.blobs == nil {
		return "not configured"
	}
	rc, err := h.blobs.Read(ctx, blobCheckPath)
	switch {
	case err == nil:
		rc.Close()
		return "ok"
	case errors.Is(err, storage.ErrNotFound):
		return "ok"
	default:
		return "error: " + err.Error()
	}
}
