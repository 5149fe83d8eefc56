package config

const (
	DefaultDatabasePath    = "./kompanion.db"
	DefaultBlobStoragePath = "./data"
	DefaultBoltFileName    = "blobs.bolt"

	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "KOMPANION"
)
