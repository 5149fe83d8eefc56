// Package auth authenticates the administrator and registered reader devices.
//
// There is one account: the administrator named in configuration. Devices
// are registered under it and authenticate with their own name and secret.
// Device secrets are stored as the unsalted hex MD5 digest KOReader's sync
// plugin already sends, so a device can present either the plaintext (HTTP
// Basic) or the digest (x-auth-user / x-auth-key headers).
//
// # Configuration
//
//	KOMPANION_AUTH_USERNAME=admin
//	KOMPANION_AUTH_PASSWORD=<plaintext or bcrypt hash>
//	KOMPANION_AUTH_STORAGE=database      # or memory
//	KOMPANION_AUTH_MAX_FAILED_ATTEMPTS=10
//
// # Usage
//
//	store := auth.NewCredentialStore(auth.AdminCredential{...}, devicesRepo)
//	service := auth.NewService(store)
//	mw := auth.NewMiddleware(service, auth.NewRateLimiter(auth.DefaultRateLimitConfig()))
//	router.PUT("/progress", mw.RequireIdentity(), handler)
//
// Extract the identity in handlers:
//
//	identity := auth.MustGetIdentity(c)
package auth
