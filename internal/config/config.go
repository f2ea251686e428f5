package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Loader LoaderConfig `mapstructure:"loader" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// LoaderConfig contains the thumbnail loader settings.
type LoaderConfig struct {
	// WorkerCount is the fixed number of decode workers started per run.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0,lte=64"`
	// ThumbSize is the edge of the square box decoded thumbnails are fitted into.
	ThumbSize int `mapstructure:"thumb_size" validate:"required,gt=0,lte=4096"`
}
