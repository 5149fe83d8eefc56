package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/mrlokans/kompanion/internal/config"
	"github.com/mrlokans/kompanion/internal/database"
	"github.com/mrlokans/kompanion/internal/storage"
)

// databaseFlags binds the flags every command that touches the database
// shares. Defaults come from the environment.
func databaseFlags(fs *flag.FlagSet, cfg *config.Database) {
	fs.StringVar((*string)(&cfg.Driver), "db-driver", string(cfg.Driver), "Database driver: sqlite or postgres")
	fs.StringVar(&cfg.DSN, "db", cfg.DSN, "Database file (sqlite) or connection URL (postgres)")
}

func openDatabase(cfg config.Database) (*database.Database, error) {
	db, err := database.NewDatabase(cfg, database.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func openStorage(ctx context.Context, cfg config.BlobStorage, db *database.Database) (storage.Storage, error) {
	if cfg.Type == config.BlobStorageMemory {
		return nil, fmt.Errorf("%s_BSTORAGE_TYPE=memory does not persist between runs; configure a durable backend", config.EnvPrefix)
	}
	s, err := storage.New(ctx, cfg, db.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return s, nil
}
