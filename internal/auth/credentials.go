package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mrlokans/kompanion/internal/entities"
)

var deviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// DeviceStore persists registered devices.
type DeviceStore interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByName(ctx context.Context, name string) (*entities.Device, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, ownerID string) ([]entities.Device, error)
	Touch(ctx context.Context, name string, at time.Time) error
}

// AdminCredential is resolved from configuration once at startup.
type AdminCredential struct {
	Username string
	Password string // plaintext or bcrypt hash
}

// CredentialStore answers "is this secret right for this principal" for
// both the administrator and registered devices.
type CredentialStore struct {
	admin   AdminCredential
	devices DeviceStore
}

func NewCredentialStore(admin AdminCredential, devices DeviceStore) *CredentialStore {
	return &CredentialStore{admin: admin, devices: devices}
}

// AdminUsername returns the configured administrator name, which is also
// the owner of every device in this single-account server.
func (s *CredentialStore) AdminUsername() string {
	return s.admin.Username
}

// IsAdmin reports whether name refers to the administrator.
func (s *CredentialStore) IsAdmin(name string) bool {
	return name != "" && name == s.admin.Username
}

// VerifyAdmin checks the administrator password.
func (s *CredentialStore) VerifyAdmin(password string) error {
	return CheckAdminPassword(password, s.admin.Password)
}

// VerifyDevice checks a device secret. It returns ErrDeviceNotFound for
// unknown names and ErrInvalidPassword for a wrong secret.
func (s *CredentialStore) VerifyDevice(ctx context.Context, name, secret string, preHashed bool) (*entities.Device, error) {
	device, err := s.devices.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !MatchDeviceSecret(device.SecretHash, secret, preHashed) {
		return nil, ErrInvalidPassword
	}
	return device, nil
}

// RegisterDevice stores a new device for owner. Only the digest of secret
// is kept.
func (s *CredentialStore) RegisterDevice(ctx context.Context, ownerID, name, secret string) (*entities.Device, error) {
	if !deviceNamePattern.MatchString(name) {
		return nil, ErrDeviceNameInvalid
	}
	if s.IsAdmin(name) {
		return nil, ErrDeviceNameReserved
	}
	if secret == "" {
		return nil, ErrPasswordRequired
	}

	device := &entities.Device{
		Name:       name,
		SecretHash: HashDeviceSecret(secret),
		OwnerID:    ownerID,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		if errors.Is(err, ErrDeviceExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create device %s: %w", name, err)
	}
	return device, nil
}

// RemoveDevice deletes a device; its credentials stop working immediately.
func (s *CredentialStore) RemoveDevice(ctx context.Context, name string) error {
	return s.devices.Delete(ctx, name)
}

// DeviceRegistered reports whether a device with this name exists.
func (s *CredentialStore) DeviceRegistered(ctx context.Context, name string) (bool, error) {
	_, err := s.devices.GetByName(ctx, name)
	if errors.Is(err, ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *CredentialStore) ListDevices(ctx context.Context, ownerID string) ([]entities.Device, error) {
	return s.devices.List(ctx, ownerID)
}

func (s *CredentialStore) touchDevice(ctx context.Context, name string) error {
	return s.devices.Touch(ctx, name, time.Now())
}
