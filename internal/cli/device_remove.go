package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/kompanion/internal/config"
	"github.com/mrlokans/kompanion/internal/database/devices"
	"github.com/mrlokans/kompanion/internal/stats"
	"github.com/mrlokans/kompanion/internal/storage"
)

type DeviceRemoveCommand struct {
	Name        string
	KeepStats   bool
	Database    config.Database
	BlobStorage config.BlobStorage

	out io.Writer
}

func NewDeviceRemoveCommand(cfg *config.Config) *DeviceRemoveCommand {
	return &DeviceRemoveCommand{
		Database:    cfg.Database,
		BlobStorage: cfg.BlobStorage,
		out:         os.Stdout,
	}
}

func (cmd *DeviceRemoveCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("device-remove", flag.ContinueOnError)

	fs.StringVar(&cmd.Name, "name", "", "Device to remove (required)")
	fs.BoolVar(&cmd.KeepStats, "keep-stats", false, "Leave the device's uploaded statistics in storage")
	databaseFlags(fs, &cmd.Database)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s device-remove [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Remove a reader device and, unless -keep-stats is given, its statistics.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Name == "" {
		fs.Usage()
		return fmt.Errorf("name is required")
	}

	return nil
}

func (cmd *DeviceRemoveCommand) Run() error {
	ctx := context.Background()

	db, err := openDatabase(cmd.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := devices.NewRepository(db.DB).Delete(ctx, cmd.Name); err != nil {
		return fmt.Errorf("failed to remove device %q: %w", cmd.Name, err)
	}
	fmt.Fprintf(cmd.out, "Removed device %q\n", cmd.Name)

	if cmd.KeepStats {
		return nil
	}

	blobs, err := openStorage(ctx, cmd.BlobStorage, db)
	if err != nil {
		return err
	}
	defer storage.Close(blobs)

	if err := stats.NewService(blobs).Purge(ctx, cmd.Name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "Purged statistics for %q\n", cmd.Name)
	return nil
}
