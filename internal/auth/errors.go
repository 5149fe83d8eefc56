package auth

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceExists       = errors.New("device already exists")
	ErrDeviceNameInvalid  = errors.New("device name must be 1-64 characters: letters, digits, '.', '_' or '-'")
	ErrDeviceNameReserved = errors.New("device name is reserved")
	ErrPasswordRequired   = errors.New("password is required")

	// ErrUnauthorized matches every *AuthError via errors.Is.
	ErrUnauthorized = errors.New("authentication required")
)

// FailureReason classifies why authentication was refused. It is for logs
// and tests; clients only ever see a generic 401.
type FailureReason string

const (
	ReasonMissingCredentials FailureReason = "missing_credentials"
	ReasonUnknownPrincipal   FailureReason = "unknown_principal"
	ReasonSecretMismatch     FailureReason = "secret_mismatch"
)

// AuthError is returned by every Authenticator method on refusal.
type AuthError struct {
	Reason    FailureReason
	Principal string
}

func (e *AuthError) Error() string {
	if e.Principal == "" {
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	}
	return fmt.Sprintf("authentication failed for %q: %s", e.Principal, e.Reason)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// ReasonOf extracts the failure reason, or "" when err is not an AuthError.
func ReasonOf(err error) FailureReason {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ""
}
