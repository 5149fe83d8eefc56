package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/database"
	"github.com/mrlokans/kompanion/internal/database/books"
	"github.com/mrlokans/kompanion/internal/database/devices"
	progressdb "github.com/mrlokans/kompanion/internal/database/progress"
	"github.com/mrlokans/kompanion/internal/http"
	"github.com/mrlokans/kompanion/internal/library"
	"github.com/mrlokans/kompanion/internal/progress"
	"github.com/mrlokans/kompanion/internal/scheduler"
	"github.com/mrlokans/kompanion/internal/stats"
	"github.com/mrlokans/kompanion/internal/storage"
	"github.com/mrlokans/kompanion/internal/tasks"
)

// =============================================================================
// Blob Storage
// =============================================================================

var _ storage.Storage = (*storage.Memory)(nil)
var _ storage.Storage = (*storage.Filesystem)(nil)
var _ storage.Storage = (*storage.Database)(nil)
var _ storage.Storage = (*storage.Bolt)(nil)
var _ storage.Storage = (*storage.S3)(nil)

// =============================================================================
// Data Access Layer
// =============================================================================

// DeviceStore implementations
var _ auth.DeviceStore = (*devices.Repository)(nil)
var _ auth.DeviceStore = (*auth.MemoryDeviceStore)(nil)

// Progress ledger stores
var _ progress.Repository = (*progressdb.Repository)(nil)
var _ progress.Repository = (*progress.MemoryRepository)(nil)

// Book metadata store
var _ library.Repository = (*books.Repository)(nil)

// =============================================================================
// HTTP Layer
// =============================================================================

var _ auth.Authenticator = (*auth.Service)(nil)
var _ http.ProgressStore = (*progress.Ledger)(nil)
var _ http.StatisticsStore = (*stats.Service)(nil)
var _ http.DeviceManager = (*auth.CredentialStore)(nil)
var _ http.BookShelf = (*library.Shelf)(nil)
var _ http.PurgeQueue = (*tasks.Client)(nil)
var _ http.Pinger = (*database.Database)(nil)
var _ http.BlobReader = (storage.Storage)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ tasks.StatisticsPurger = (*stats.Service)(nil)
var _ tasks.DeviceRegistry = (*auth.CredentialStore)(nil)
var _ scheduler.StagingSweeper = (*storage.Filesystem)(nil)
