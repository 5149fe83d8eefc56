package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/config"
	"github.com/mrlokans/kompanion/internal/database"
	"github.com/mrlokans/kompanion/internal/database/books"
	"github.com/mrlokans/kompanion/internal/database/devices"
	progressdb "github.com/mrlokans/kompanion/internal/database/progress"
	http_controllers "github.com/mrlokans/kompanion/internal/http"
	"github.com/mrlokans/kompanion/internal/library"
	"github.com/mrlokans/kompanion/internal/progress"
	"github.com/mrlokans/kompanion/internal/scheduler"
	"github.com/mrlokans/kompanion/internal/stats"
	"github.com/mrlokans/kompanion/internal/storage"
	"github.com/mrlokans/kompanion/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before tearing down what they depend on.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

// App holds the wired server and everything that has to be released when
// it stops.
type App struct {
	Router *gin.Engine

	db        *database.Database
	blobs     storage.Storage
	limiter   *auth.RateLimiter
	taskQueue *tasks.Client
	taskStop  context.CancelFunc
	sweeper   *scheduler.StagingSweepScheduler
}

// NewApp opens every backend named in cfg and builds the router.
func NewApp(ctx context.Context, cfg *config.Config, version string) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app = &App{}
	defer func() {
		if err != nil {
			app.Shutdown(context.Background())
		}
	}()

	app.db, err = database.NewDatabase(cfg.Database, database.Options{})
	if err != nil {
		return nil, err
	}

	app.blobs, err = storage.New(ctx, cfg.BlobStorage, app.db.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	// Devices and credentials
	var deviceStore auth.DeviceStore
	switch cfg.Auth.Storage {
	case config.StateStorageMemory:
		log.Printf("WARNING: devices are kept in memory and will be lost on restart")
		deviceStore = auth.NewMemoryDeviceStore()
	default:
		deviceStore = devices.NewRepository(app.db.DB)
	}
	credentials := auth.NewCredentialStore(auth.AdminCredential{
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
	}, deviceStore)
	authService := auth.NewService(credentials)

	app.limiter = auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Auth.MaxFailedAttempts,
		WindowDuration:  cfg.Auth.RateLimitWindow,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})

	// Reading progress
	var progressRepo progress.Repository
	switch cfg.Progress.Storage {
	case config.StateStorageMemory:
		log.Printf("WARNING: reading progress is kept in memory and will be lost on restart")
		progressRepo = progress.NewMemoryRepository()
	default:
		progressRepo = progressdb.NewRepository(app.db.DB)
	}
	ledger := progress.NewLedger(progressRepo)

	statsService := stats.NewService(app.blobs)
	shelf := library.NewShelf(app.blobs, books.NewRepository(app.db.DB))

	// Initialize task queue if enabled
	var purgeQueue http_controllers.PurgeQueue
	if cfg.Tasks.Enabled {
		tasksPath := cfg.Tasks.DatabasePath
		if tasksPath == "" {
			tasksPath = tasks.DatabasePathFor(cfg.Database.DSN)
		}

		app.taskQueue, err = tasks.NewClient(tasksPath, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		app.taskQueue.Register(tasks.NewPurgeDeviceStatisticsQueue(statsService, credentials))

		var taskCtx context.Context
		taskCtx, app.taskStop = context.WithCancel(context.Background())
		go app.taskQueue.Start(taskCtx)
		purgeQueue = app.taskQueue
		log.Printf("Task queue started (%s)", tasksPath)
	} else {
		log.Printf("Task queue disabled: failed statistics purges are not retried")
	}

	// Interrupted filesystem writes leave staging files behind.
	if fs, ok := app.blobs.(*storage.Filesystem); ok {
		app.sweeper = scheduler.NewStagingSweepScheduler(fs, cfg.Maintenance.StagingSweepSchedule, cfg.Maintenance.StagingMaxAge)
		if err := app.sweeper.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start staging sweep: %w", err)
		}
	}

	app.Router = http_controllers.NewRouter(http_controllers.RouterConfig{
		Authenticator:            authService,
		RateLimiter:              app.limiter,
		Progress:                 ledger,
		Statistics:               statsService,
		Devices:                  credentials,
		Books:                    shelf,
		PurgeQueue:               purgeQueue,
		Database:                 app.db,
		Blobs:                    app.blobs,
		MaxStatisticsUploadBytes: cfg.Stats.MaxUploadBytes,
		Version:                  version,
	})

	return app, nil
}

// Shutdown stops background work and closes backends in reverse order of
// NewApp. It tolerates a partially built App.
func (a *App) Shutdown(ctx context.Context) {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.taskQueue != nil {
		a.taskQueue.Stop(ctx)
		if a.taskStop != nil {
			a.taskStop()
		}
		if err := a.taskQueue.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.blobs != nil {
		if err := storage.Close(a.blobs); err != nil {
			log.Printf("Error closing blob storage: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Kompanion v%s", version)

	app, err := NewApp(context.Background(), cfg, version)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	Serve(app.Router, cfg, app.Shutdown)
}
