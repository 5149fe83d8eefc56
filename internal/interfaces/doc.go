// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation and the compile-time
// checks that tie concrete types to them.
//
// # Interface Categories
//
// ## Blob Storage
//
//   - storage.Storage: Write/Read/Delete of opaque blobs (internal/storage/client.go).
//     Implemented by Memory, Filesystem, Database, Bolt and S3.
//
// ## Data Access Interfaces
//
//   - auth.DeviceStore: Registered devices (internal/auth/credentials.go)
//   - progress.Repository: Conditional upsert of progress records (internal/progress/ledger.go)
//   - library.Repository: Book metadata rows (internal/library/shelf.go)
//
// ## HTTP Service Interfaces (internal/http/stores.go)
//
//   - ProgressStore, StatisticsStore, DeviceManager, BookShelf, PurgeQueue, Pinger
//
// ## Background Work
//
//   - tasks.StatisticsPurger: consumed by the purge_device_statistics queue
//   - scheduler.StagingSweeper: consumed by the staging sweep cron job
//
// # Adding a New Blob Backend
//
//  1. Implement storage.Storage in internal/storage/:
//
//     type GCS struct { client *gcs.Client; bucket string }
//
//     func (g *GCS) Write(ctx context.Context, src io.Reader, dst string) error
//     func (g *GCS) Read(ctx context.Context, path string) (io.ReadCloser, error)
//     func (g *GCS) Delete(ctx context.Context, path string) error
//
//     Writes must publish atomically and missing paths must return
//     storage.ErrNotFound.
//
//  2. Add a config.BlobStorageType constant and a case in storage.New.
//
//  3. Add the check to checks.go and run the shared contract tests in
//     internal/storage/storage_test.go against it.
//
// # Adding a New Background Task
//
//  1. Define the task in internal/tasks/ with a Config() method returning
//     backlite.QueueConfig, a processor and a NewXQueue constructor.
//
//  2. Register the queue in entrypoint.NewApp.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
