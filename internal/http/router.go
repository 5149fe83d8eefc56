package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/stats"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health check endpoints (always available, no auth)
	healthController := NewHealthController(cfg.Database, cfg.Blobs, cfg.Version)
	router.GET("/health", healthController.Status)
	router.GET("/healthcheck", healthController.Status)
	router.GET("/ping", healthController.Status)

	mw := auth.NewMiddleware(cfg.Authenticator, cfg.RateLimiter)
	device := mw.RequireIdentity()
	admin := mw.RequireAdmin()

	// Reading progress, native and kosync-compatible paths
	progressController := NewProgressController(cfg.Progress)
	router.PUT("/progress", device, progressController.Update)
	router.GET("/progress/:document", device, progressController.Get)
	router.PUT("/syncs/progress", device, progressController.Update)
	router.GET("/syncs/progress/:document", device, progressController.GetCompat)
	router.GET("/users/auth", device, progressController.Authorized)

	// Statistics over a minimal WebDAV surface
	webdavController := NewWebDAVController(cfg.Statistics, cfg.MaxStatisticsUploadBytes)
	router.Handle(MethodPropfind, "/", device, webdavController.Propfind)
	router.PUT("/"+stats.FileName, device, webdavController.Upload)
	router.GET("/"+stats.FileName, device, webdavController.Download)

	api := router.Group("/api")
	{
		api.GET("/progress", device, progressController.List)

		devicesController := NewDevicesController(cfg.Devices, cfg.Statistics, cfg.PurgeQueue)
		api.GET("/devices", admin, devicesController.List)
		api.POST("/devices", admin, devicesController.Register)
		api.DELETE("/devices/:name", admin, devicesController.Remove)

		if cfg.Books != nil {
			booksController := NewBooksController(cfg.Books)
			api.GET("/books", device, booksController.List)
			api.POST("/books", admin, booksController.Upload)
			api.GET("/books/:id", device, booksController.Get)
			api.GET("/books/:id/download", device, booksController.Download)
			api.GET("/books/:id/cover", device, booksController.Cover)
			api.PUT("/books/:id", admin, booksController.Update)
			api.DELETE("/books/:id", admin, booksController.Delete)
		}
	}

	return router
}
