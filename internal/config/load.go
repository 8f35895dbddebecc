package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables (STYLIZE_ prefix, with
// dots replaced by underscores, e.g. STYLIZE_SERVER_PORT) and from an optional
// config.yaml in the working directory. Environment variables take precedence.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STYLIZE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("store.driver", "dynamodb")
	v.SetDefault("store.table", "tasks")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.url", "")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.upload_bucket", "stylize-uploads")
	v.SetDefault("storage.results_bucket", "stylize-results")
	v.SetDefault("storage.upload_ttl", 15*time.Minute)
	v.SetDefault("storage.download_ttl", time.Hour)

	v.SetDefault("queue.endpoint", "")
	v.SetDefault("queue.handoff_url", "")
	v.SetDefault("queue.uploads_url", "")

	v.SetDefault("secrets.secret_id", "")

	// 10 MiB acceptance limit.
	v.SetDefault("pipeline.max_upload_bytes", int64(10*1024*1024))
	v.SetDefault("pipeline.workers", 2)
}
