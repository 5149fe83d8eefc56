package auth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mrlokans/kompanion/internal/entities"
)

// Identity is an authenticated principal.
type Identity struct {
	OwnerID    string
	Username   string
	DeviceName string // empty for the administrator
	IsAdmin    bool
}

// Principal is the name statistics and logs are keyed by: the device name,
// or the administrator username.
func (i *Identity) Principal() string {
	if i.DeviceName != "" {
		return i.DeviceName
	}
	return i.Username
}

// Credentials are what a transport decoded from a request.
type Credentials struct {
	Username  string
	Secret    string
	PreHashed bool // Secret is already the hex MD5 digest
}

// Authenticator resolves credentials to an identity. Refusals are always
// *AuthError; anything else is a store failure.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Identity, error)
	AuthenticateAdmin(ctx context.Context, username, password string) (*Identity, error)
	AuthenticateDevice(ctx context.Context, creds Credentials) (*Identity, error)
}

// Service is the Authenticator backed by a CredentialStore.
type Service struct {
	store *CredentialStore
}

var _ Authenticator = (*Service)(nil)

func NewService(store *CredentialStore) *Service {
	return &Service{store: store}
}

// Store exposes the credential store for device management.
func (s *Service) Store() *CredentialStore {
	return s.store
}

// Authenticate routes the administrator name to the admin credential and
// everything else to the device table.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.Username == "" || creds.Secret == "" {
		return nil, &AuthError{Reason: ReasonMissingCredentials, Principal: creds.Username}
	}
	if s.store.IsAdmin(creds.Username) {
		if creds.PreHashed {
			// The admin password is never stored as an MD5 digest.
			return nil, &AuthError{Reason: ReasonSecretMismatch, Principal: creds.Username}
		}
		return s.AuthenticateAdmin(ctx, creds.Username, creds.Secret)
	}
	return s.AuthenticateDevice(ctx, creds)
}

func (s *Service) AuthenticateAdmin(ctx context.Context, username, password string) (*Identity, error) {
	if username == "" || password == "" {
		return nil, &AuthError{Reason: ReasonMissingCredentials, Principal: username}
	}
	if !s.store.IsAdmin(username) {
		return nil, &AuthError{Reason: ReasonUnknownPrincipal, Principal: username}
	}
	if err := s.store.VerifyAdmin(password); err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			log.Printf("Auth: admin password check failed: %v", err)
		}
		return nil, &AuthError{Reason: ReasonSecretMismatch, Principal: username}
	}
	return &Identity{
		OwnerID:  username,
		Username: username,
		IsAdmin:  true,
	}, nil
}

func (s *Service) AuthenticateDevice(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.Username == "" || creds.Secret == "" {
		return nil, &AuthError{Reason: ReasonMissingCredentials, Principal: creds.Username}
	}
	device, err := s.store.VerifyDevice(ctx, creds.Username, creds.Secret, creds.PreHashed)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return nil, &AuthError{Reason: ReasonUnknownPrincipal, Principal: creds.Username}
	case errors.Is(err, ErrInvalidPassword):
		return nil, &AuthError{Reason: ReasonSecretMismatch, Principal: creds.Username}
	case err != nil:
		return nil, fmt.Errorf("look up device %s: %w", creds.Username, err)
	}

	if err := s.store.touchDevice(ctx, device.Name); err != nil {
		log.Printf("Auth: failed to record last seen for device %s: %v", device.Name, err)
	}
	return identityForDevice(device), nil
}

func identityForDevice(device *entities.Device) *Identity {
	return &Identity{
		OwnerID:    device.OwnerID,
		Username:   device.OwnerID,
		DeviceName: device.Name,
	}
}
