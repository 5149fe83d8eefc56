package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrlokans/kompanion/internal/config"
	"github.com/mrlokans/kompanion/internal/database/devices"
)

type DeviceListCommand struct {
	Owner    string
	Database config.Database

	out io.Writer
}

func NewDeviceListCommand(cfg *config.Config) *DeviceListCommand {
	return &DeviceListCommand{
		Owner:    cfg.Auth.Username,
		Database: cfg.Database,
		out:      os.Stdout,
	}
}

func (cmd *DeviceListCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("device-list", flag.ContinueOnError)

	fs.StringVar(&cmd.Owner, "owner", cmd.Owner, "Account whose devices to list (defaults to KOMPANION_AUTH_USERNAME)")
	databaseFlags(fs, &cmd.Database)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s device-list [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List registered reader devices.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Owner == "" {
		return fmt.Errorf("owner is required: pass -owner or set %s_AUTH_USERNAME", config.EnvPrefix)
	}
	return nil
}

func (cmd *DeviceListCommand) Run() error {
	db, err := openDatabase(cmd.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := devices.NewRepository(db.DB).List(context.Background(), cmd.Owner)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(list) == 0 {
		fmt.Fprintf(cmd.out, "No devices registered for %s\n", cmd.Owner)
		return nil
	}

	for _, d := range list {
		lastSeen := "never"
		if d.LastSeenAt != nil {
			lastSeen = d.LastSeenAt.Format(time.RFC3339)
		}
		fmt.Fprintf(cmd.out, "%-24s registered %s  last seen %s\n", d.Name, d.CreatedAt.Format(time.RFC3339), lastSeen)
	}
	return nil
}
