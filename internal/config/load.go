package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "THUMB"

// Default values applied before any file or environment source.
const (
	DefaultLogLevel    = "info"
	DefaultWorkerCount = 2
	DefaultThumbSize   = 96
)

// Load reads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the optional YAML file at path and from
// environment variables. Environment variables take precedence over values from
// the file. Returns a populated Config or an error if loading/validation fails.
func LoadFile(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is LoadFile on a caller-provided viper instance, so command line
// flags bound to v beforehand take part in the lookup.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	v.SetDefault("server.log_level", DefaultLogLevel)
	v.SetDefault("loader.worker_count", DefaultWorkerCount)
	v.SetDefault("loader.thumb_size", DefaultThumbSize)

	if path != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.log_level", EnvPrefix + "_SERVER_LOG_LEVEL"},
		{"loader.worker_count", EnvPrefix + "_LOADER_WORKER_COUNT"},
		{"loader.thumb_size", EnvPrefix + "_LOADER_THUMB_SIZE"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
