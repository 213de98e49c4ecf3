package src

import (
	"errors"
	"fmt"
	"os"
	"time"

	"skill_persistence/internal/config"
	"skill_persistence/src/model"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable, e.g. SKILL_PERSISTENCE_BACKEND
const EnvPrefix = "SKILL"

type Config struct {
	LogConfig         model.LogConfig         `envconfig:"LOG"`
	PersistenceConfig model.PersistenceConfig `envconfig:"PERSISTENCE"`
	PromptConfig      model.PromptConfig      `envconfig:"PROMPT"`
	ServerConfig      model.ServerConfig      `envconfig:"SERVER"`
}

// DefaultConfig returns the configuration used when neither a file nor the environment override a value
func DefaultConfig() *Config {
	return &Config{
		LogConfig: model.LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "logs/skill.log",
			TimeFormat: "rfc3339",
		},
		PersistenceConfig: model.PersistenceConfig{
			Backend:      "memory",
			Bucket:       "testpersistence",
			PathPrefix:   "test_prefix",
			PartitionKey: "application",
			Timeout:      3 * time.Second,
			Region:       "eu-west-1",
		},
		PromptConfig: model.PromptConfig{
			Welcome:  `Welcome to the global persistence demo. You can tell me a key value pair, with a four digit key and a country as value. For example you can say assign Australia to <say-as interpret-as="digits">1234</say-as>`,
			Help:     `You can tell me a key value pair, with a four digit key and a country as value. For example you can say assign Australia to <say-as interpret-as="digits">1234</say-as>`,
			Goodbye:  "Goodbye!",
			Unknown:  `I don't know that! You can tell me a key value pair, with a four digit key and a country as value. For example you can say assign Australia to <say-as interpret-as="digits">1234</say-as>`,
			Saved:    `Key value pair <say-as interpret-as="digits">%s</say-as> %s registered! Will be saved on exit`,
			Fallback: "Sorry, I think I did not get it. Say, help to get more information",
		},
		ServerConfig: model.ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 10 * time.Second,
			EnableMetrics:  true,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file at path and the environment, in that order
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		yamlConfig, err := config.LoadConfig(path)
		switch {
		case err == nil:
			yamlConfig.MergeInto(&cfg.LogConfig, &cfg.PersistenceConfig, &cfg.PromptConfig, &cfg.ServerConfig)
		case errors.Is(err, os.ErrNotExist):
			// a missing file is fine, the environment may carry everything
		default:
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that cannot produce a working store
func (c *Config) Validate() error {
	p := c.PersistenceConfig
	switch p.Backend {
	case "memory":
	case "redis":
		if p.RedisURL == "" {
			return fmt.Errorf("persistence backend redis requires %s_PERSISTENCE_REDIS_URL", EnvPrefix)
		}
	case "file", "s3":
		if p.Bucket == "" {
			return fmt.Errorf("persistence backend %s requires a bucket", p.Backend)
		}
	default:
		return fmt.Errorf("unknown persistence backend %q", p.Backend)
	}

	if p.Timeout <= 0 {
		return fmt.Errorf("persistence timeout must be positive, got %s", p.Timeout)
	}

	return nil
}
