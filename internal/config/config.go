package config

import "time"

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig selects and configures the task record store.
type StoreConfig struct {
	// Driver selects the TaskStore implementation.
	Driver string `mapstructure:"driver" validate:"required,oneof=dynamodb postgres"`

	// Table is the document table holding task records (dynamodb driver).
	Table string `mapstructure:"table" validate:"required_if=Driver dynamodb"`

	// Endpoint overrides the document store endpoint, for DynamoDB-compatible
	// services. Empty means the SDK default.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	// URL is the connection string for the postgres driver.
	URL string `mapstructure:"url" validate:"required_if=Driver postgres"`
}

// StorageConfig contains object storage settings.
type StorageConfig struct {
	// Endpoint overrides the S3 endpoint, for S3-compatible services.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	Region        string `mapstructure:"region" validate:"required"`
	UploadBucket  string `mapstructure:"upload_bucket" validate:"required"`
	ResultsBucket string `mapstructure:"results_bucket" validate:"required"`

	// UploadTTL bounds how long an issued upload credential stays valid.
	UploadTTL time.Duration `mapstructure:"upload_ttl" validate:"required"`

	// DownloadTTL bounds how long a result retrieval URL stays valid.
	DownloadTTL time.Duration `mapstructure:"download_ttl" validate:"required"`
}

// QueueConfig contains message queue settings. The handoff queue carries
// validated tasks to the transformer; the uploads queue receives object-store
// event notifications that trigger validation.
type QueueConfig struct {
	Endpoint   string `mapstructure:"endpoint" validate:"omitempty,url"`
	HandoffURL string `mapstructure:"handoff_url" validate:"required,url"`
	UploadsURL string `mapstructure:"uploads_url" validate:"required,url"`
}

// SecretsConfig points at the secret holding object-store credentials.
// When SecretID is empty the ambient SDK credential chain is used directly.
type SecretsConfig struct {
	SecretID string `mapstructure:"secret_id"`
}

// PipelineConfig contains stage policy settings.
type PipelineConfig struct {
	// MaxUploadBytes is the validation acceptance limit. A blob of exactly
	// this size is accepted; one byte over is rejected.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"required,gt=0"`

	// Workers is the consumer pool size per queue in the worker binary.
	Workers int `mapstructure:"workers" validate:"required,gt=0"`
}
