package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/config"
	"github.com/mrlokans/kompanion/internal/database/devices"
)

type DeviceAddCommand struct {
	Name     string
	Password string
	Owner    string
	Database config.Database

	out io.Writer
}

func NewDeviceAddCommand(cfg *config.Config) *DeviceAddCommand {
	return &DeviceAddCommand{
		Owner:    cfg.Auth.Username,
		Database: cfg.Database,
		out:      os.Stdout,
	}
}

func (cmd *DeviceAddCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("device-add", flag.ContinueOnError)

	fs.StringVar(&cmd.Name, "name", "", "Device name the reader will log in with (required)")
	fs.StringVar(&cmd.Password, "password", "", "Device password (required)")
	fs.StringVar(&cmd.Owner, "owner", cmd.Owner, "Account the device syncs under (defaults to KOMPANION_AUTH_USERNAME)")
	databaseFlags(fs, &cmd.Database)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s device-add [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Register a reader device.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s device-add -name kobo-libra -password s3cret\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Name == "" || cmd.Password == "" {
		fs.Usage()
		return fmt.Errorf("name and password are required")
	}
	if cmd.Owner == "" {
		return fmt.Errorf("owner is required: pass -owner or set %s_AUTH_USERNAME", config.EnvPrefix)
	}

	return nil
}

func (cmd *DeviceAddCommand) Run() error {
	db, err := openDatabase(cmd.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store := auth.NewCredentialStore(auth.AdminCredential{Username: cmd.Owner}, devices.NewRepository(db.DB))
	device, err := store.RegisterDevice(context.Background(), cmd.Owner, cmd.Name, cmd.Password)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	fmt.Fprintf(cmd.out, "Registered device %q for %s\n", device.Name, device.OwnerID)
	return nil
}
