package model

import "time"

// ----------------------------------------------------
// ================ Config ================

// LogConfig configures the global zerolog logger
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	Format     string `yaml:"format" envconfig:"FORMAT"` // json or console
	Output     string `yaml:"output" envconfig:"OUTPUT"` // stdout, stderr or file
	FilePath   string `yaml:"file_path" envconfig:"FILE_PATH"`
	TimeFormat string `yaml:"time_format" envconfig:"TIME_FORMAT"`
}

// PersistenceConfig selects and configures the attribute store
type PersistenceConfig struct {
	Backend string `yaml:"backend" envconfig:"BACKEND"` // memory, redis, file or s3
	// Bucket is the store location: an S3 bucket or a base directory for the file backend
	Bucket       string        `yaml:"bucket" envconfig:"BUCKET"`
	PathPrefix   string        `yaml:"path_prefix" envconfig:"PATH_PREFIX"`
	PartitionKey string        `yaml:"partition_key" envconfig:"PARTITION_KEY"` // application, user or device
	AutoCreate   bool          `yaml:"auto_create" envconfig:"AUTO_CREATE"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RedisURL     string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	RedisTTL     time.Duration `yaml:"redis_ttl" envconfig:"REDIS_TTL"`
	Region       string        `yaml:"region" envconfig:"REGION"`
	Endpoint     string        `yaml:"endpoint" envconfig:"ENDPOINT"` // optional S3-compatible endpoint
}

// PromptConfig holds the speech texts spoken by the built-in handlers
type PromptConfig struct {
	Welcome  string `yaml:"welcome" envconfig:"WELCOME"`
	Help     string `yaml:"help" envconfig:"HELP"`
	Goodbye  string `yaml:"goodbye" envconfig:"GOODBYE"`
	Unknown  string `yaml:"unknown" envconfig:"UNKNOWN"`
	Saved    string `yaml:"saved" envconfig:"SAVED"`
	Fallback string `yaml:"fallback" envconfig:"FALLBACK"`
}

// ServerConfig configures the HTTP transport
type ServerConfig struct {
	Addr           string        `yaml:"addr" envconfig:"ADDR"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	EnableMetrics  bool          `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
}
