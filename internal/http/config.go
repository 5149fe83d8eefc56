package http

import (
	"github.com/mrlokans/kompanion/internal/auth"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Authentication
	Authenticator auth.Authenticator
	RateLimiter   *auth.RateLimiter // optional

	// Core services
	Progress   ProgressStore
	Statistics StatisticsStore
	Devices    DeviceManager
	Books      BookShelf

	// Task queue (optional). Retries statistics purges that failed inline.
	PurgeQueue PurgeQueue

	// Health
	Database Pinger
	Blobs    BlobReader

	// Limits
	MaxStatisticsUploadBytes int64

	// Application info
	Version string
}
