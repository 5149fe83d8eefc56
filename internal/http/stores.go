package http

import (
	"context"
	"io"
	"time"

	"github.com/mrlokans/kompanion/internal/entities"
	"github.com/mrlokans/kompanion/internal/library"
	"github.com/mrlokans/kompanion/internal/progress"
)

// This file consolidates the service interfaces used by HTTP controllers.
// Each is satisfied by one concrete service built in the entrypoint.

// ProgressStore is implemented by progress.Ledger.
type ProgressStore interface {
	Put(ctx context.Context, u progress.Update) (*entities.ProgressRecord, error)
	Get(ctx context.Context, documentID, ownerID string) (*entities.ProgressRecord, error)
	List(ctx context.Context, ownerID string) ([]entities.ProgressRecord, error)
}

// StatisticsStore is implemented by stats.Service.
type StatisticsStore interface {
	Upload(ctx context.Context, principal string, r io.Reader) error
	Download(ctx context.Context, principal string) (io.ReadCloser, error)
	Exists(ctx context.Context, principal string) (bool, error)
	Purge(ctx context.Context, principal string) error
}

// DeviceManager is implemented by auth.CredentialStore.
type DeviceManager interface {
	RegisterDevice(ctx context.Context, ownerID, name, secret string) (*entities.Device, error)
	RemoveDevice(ctx context.Context, name string) error
	ListDevices(ctx context.Context, ownerID string) ([]entities.Device, error)
}

// PurgeQueue is implemented by tasks.Client.
type PurgeQueue interface {
	EnqueueDevicePurge(ctx context.Context, device string, removedAt time.Time) error
}

// BookShelf is implemented by library.Shelf.
type BookShelf interface {
	Store(ctx context.Context, r io.Reader, filename string, meta library.Metadata) (*entities.Book, error)
	List(ctx context.Context, opts library.ListOptions) (*library.Page, error)
	Get(ctx context.Context, id string) (*entities.Book, error)
	Open(ctx context.Context, id string) (*entities.Book, io.ReadCloser, error)
	Update(ctx context.Context, id string, meta library.Metadata) (*entities.Book, error)
	Cover(ctx context.Context, id string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, id string) error
}

// BlobReader is the read side of storage.Storage, used to check the blob
// backend.
type BlobReader interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
}

// Pinger reports database reachability. Implemented by database.Database.
type Pinger interface {
	Ping() error
}
