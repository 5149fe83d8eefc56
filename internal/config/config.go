package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StateStorage selects where devices and progress records live.
type StateStorage string

const (
	StateStorageDatabase StateStorage = "database"
	StateStorageMemory   StateStorage = "memory"
)

// BlobStorageType selects the blob backend. Chosen once at startup.
type BlobStorageType string

const (
	BlobStorageMemory     BlobStorageType = "memory"
	BlobStorageFilesystem BlobStorageType = "filesystem"
	BlobStorageDatabase   BlobStorageType = "database"
	BlobStorageBolt       BlobStorageType = "bolt"
	BlobStorageS3         BlobStorageType = "s3"
)

// DatabaseDriver selects the gorm dialector.
type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		BlobStorage
		Progress
		Stats
		Tasks
		Maintenance
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver DatabaseDriver
		DSN    string // file path for sqlite, connection URL for postgres
	}
	Auth struct {
		Username string
		Password string // plaintext or a bcrypt hash
		Storage  StateStorage

		// Failed Basic-auth attempts per client IP + principal
		MaxFailedAttempts int
		RateLimitWindow   time.Duration
		LockoutDuration   time.Duration
	}
	BlobStorage struct {
		Type BlobStorageType
		Path string // base dir for filesystem, directory of the bolt file for bolt
		S3   S3
	}
	S3 struct {
		Endpoint  string
		Region    string
		Bucket    string
		AccessKey string
		SecretKey string
		Prefix    string
	}
	Progress struct {
		Storage StateStorage
	}
	Stats struct {
		MaxUploadBytes int64
	}
	Tasks struct {
		Enabled           bool
		DatabasePath      string // empty: derived from the sqlite database path
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Maintenance struct {
		StagingSweepSchedule string // Cron format: "*/30 * * * *" = every 30 minutes
		StagingMaxAge        time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_dsn", DefaultDatabasePath)

	// Auth defaults
	v.SetDefault("auth_username", "")
	v.SetDefault("auth_password", "")
	v.SetDefault("auth_storage", string(StateStorageDatabase))
	v.SetDefault("auth_max_failed_attempts", 10)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "15m")

	// Blob storage defaults
	v.SetDefault("bstorage_type", string(BlobStorageMemory))
	v.SetDefault("bstorage_path", DefaultBlobStoragePath)
	v.SetDefault("bstorage_s3_region", "us-east-1")

	v.SetDefault("progress_storage", string(StateStorageDatabase))
	v.SetDefault("stats_max_upload_bytes", 256<<20)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_database_path", "")
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("staging_sweep_schedule", "*/30 * * * *")
	v.SetDefault("staging_max_age", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			Username:          v.GetString("AUTH_USERNAME"),
			Password:          v.GetString("AUTH_PASSWORD"),
			Storage:           StateStorage(v.GetString("AUTH_STORAGE")),
			MaxFailedAttempts: v.GetInt("AUTH_MAX_FAILED_ATTEMPTS"),
			RateLimitWindow:   v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:   v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		BlobStorage: BlobStorage{
			Type: BlobStorageType(v.GetString("BSTORAGE_TYPE")),
			Path: v.GetString("BSTORAGE_PATH"),
			S3: S3{
				Endpoint:  v.GetString("BSTORAGE_S3_ENDPOINT"),
				Region:    v.GetString("BSTORAGE_S3_REGION"),
				Bucket:    v.GetString("BSTORAGE_S3_BUCKET"),
				AccessKey: v.GetString("BSTORAGE_S3_ACCESS_KEY"),
				SecretKey: v.GetString("BSTORAGE_S3_SECRET_KEY"),
				Prefix:    v.GetString("BSTORAGE_S3_PREFIX"),
			},
		},
		Progress: Progress{
			Storage: StateStorage(v.GetString("PROGRESS_STORAGE")),
		},
		Stats: Stats{
			MaxUploadBytes: v.GetInt64("STATS_MAX_UPLOAD_BYTES"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			DatabasePath:      v.GetString("TASKS_DATABASE_PATH"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Maintenance: Maintenance{
			StagingSweepSchedule: v.GetString("STAGING_SWEEP_SCHEDULE"),
			StagingMaxAge:        v.GetDuration("STAGING_MAX_AGE"),
		},
	}
}

// Validate reports configuration that would make the server unusable.
// It runs before anything is opened.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Username == "" {
		errs = append(errs, fmt.Errorf("%s_AUTH_USERNAME is required", EnvPrefix))
	}
	if c.Auth.Password == "" {
		errs = append(errs, fmt.Errorf("%s_AUTH_PASSWORD is required", EnvPrefix))
	}
	switch c.Database.Driver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("%s_DATABASE_DSN is required", EnvPrefix))
	}
	for name, s := range map[string]StateStorage{"AUTH_STORAGE": c.Auth.Storage, "PROGRESS_STORAGE": c.Progress.Storage} {
		if s != StateStorageDatabase && s != StateStorageMemory {
			errs = append(errs, fmt.Errorf("%s_%s: unknown storage %q", EnvPrefix, name, s))
		}
	}
	switch c.BlobStorage.Type {
	case BlobStorageMemory, BlobStorageDatabase:
	case BlobStorageFilesystem, BlobStorageBolt:
		if c.BlobStorage.Path == "" {
			errs = append(errs, fmt.Errorf("%s_BSTORAGE_PATH is required for %s storage", EnvPrefix, c.BlobStorage.Type))
		}
	case BlobStorageS3:
		if c.BlobStorage.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("%s_BSTORAGE_S3_BUCKET is required for s3 storage", EnvPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob storage type %q", c.BlobStorage.Type))
	}
	if c.Tasks.Enabled && c.Database.Driver != DatabaseDriverSQLite && c.Tasks.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("%s_TASKS_DATABASE_PATH is required when the database is not sqlite", EnvPrefix))
	}
	return errors.Join(errs...)
}
