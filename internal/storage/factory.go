package storage

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/mrlokans/kompanion/internal/config"
)

// New builds the backend selected in configuration. db is only used by the
// database backend and may be nil otherwise.
func New(ctx context.Context, cfg config.BlobStorage, db *gorm.DB) (Storage, error) {
	switch cfg.Type {
	case config.BlobStorageMemory, "":
		log.Printf("Blob storage: memory (contents are lost on restart)")
		return NewMemory(), nil

	case config.BlobStorageFilesystem:
		fs, err := NewFilesystem(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Printf("Blob storage: filesystem at %s", fs.BaseDir())
		return fs, nil

	case config.BlobStorageDatabase:
		if db == nil {
			return nil, fmt.Errorf("database blob storage requires a database connection")
		}
		log.Printf("Blob storage: database")
		return NewDatabase(db), nil

	case config.BlobStorageBolt:
		path := filepath.Join(cfg.Path, config.DefaultBoltFileName)
		b, err := NewBolt(path)
		if err != nil {
			return nil, err
		}
		log.Printf("Blob storage: bolt at %s", path)
		return b, nil

	case config.BlobStorageS3:
		s, err := NewS3(ctx, S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("Blob storage: s3 bucket %s", cfg.S3.Bucket)
		return s, nil
	}
	return nil, fmt.Errorf("unknown blob storage type %q", cfg.Type)
}
