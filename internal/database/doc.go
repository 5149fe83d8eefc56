// Package database provides the data access layer for the server.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite or postgres), migrations
//	├── devices/         # Registered reader devices
//	├── progress/        # Latest reading position per document and owner
//	└── books/           # Book metadata rows (files live in blob storage)
//
// Blob content stored in the database backend goes through
// storage.Database, which owns the blobs table.
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.NewDatabase(cfg.Database, database.Options{})
//
//	// Create domain-specific repositories
//	devicesRepo := devices.NewRepository(db.DB)
//	progressRepo := progress.NewRepository(db.DB)
//	booksRepo := books.NewRepository(db.DB)
//
// # Interface Implementations
//
// Each sub-package implements the store interface of the package that
// owns the domain logic:
//
//   - devices.Repository: implements auth.DeviceStore
//   - progress.Repository: implements progress.Repository (the ledger's store)
//   - books.Repository: implements library.Repository
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Implement the required interface
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
//  6. Register the entity in NewDatabase's AutoMigrate call
package database
