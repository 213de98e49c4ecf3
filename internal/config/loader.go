package config

import (
	"fmt"
	"os"

	"skill_persistence/src/model"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of skill.yaml
type YAMLConfig struct {
	Log         model.LogConfig         `yaml:"log"`
	Persistence model.PersistenceConfig `yaml:"persistence"`
	Prompts     model.PromptConfig      `yaml:"prompts"`
	Server      model.ServerConfig      `yaml:"server"`
}

// LoadConfig loads configuration from a skill.yaml file
func LoadConfig(filepath string) (*YAMLConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes skill.yaml content
func ParseConfig(data []byte) (*YAMLConfig, error) {
	var config YAMLConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	return &config, nil
}

// MergeInto copies every non-zero value of the YAML file over base
func (y *YAMLConfig) MergeInto(log *model.LogConfig, persistence *model.PersistenceConfig, prompts *model.PromptConfig, server *model.ServerConfig) {
	mergeString(&log.Level, y.Log.Level)
	mergeString(&log.Format, y.Log.Format)
	mergeString(&log.Output, y.Log.Output)
	mergeString(&log.FilePath, y.Log.FilePath)
	mergeString(&log.TimeFormat, y.Log.TimeFormat)

	p := y.Persistence
	mergeString(&persistence.Backend, p.Backend)
	mergeString(&persistence.Bucket, p.Bucket)
	mergeString(&persistence.PathPrefix, p.PathPrefix)
	mergeString(&persistence.PartitionKey, p.PartitionKey)
	mergeString(&persistence.RedisURL, p.RedisURL)
	mergeString(&persistence.Region, p.Region)
	mergeString(&persistence.Endpoint, p.Endpoint)
	if p.AutoCreate {
		persistence.AutoCreate = true
	}
	if p.Timeout > 0 {
		persistence.Timeout = p.Timeout
	}
	if p.RedisTTL > 0 {
		persistence.RedisTTL = p.RedisTTL
	}

	mergeString(&prompts.Welcome, y.Prompts.Welcome)
	mergeString(&prompts.Help, y.Prompts.Help)
	mergeString(&prompts.Goodbye, y.Prompts.Goodbye)
	mergeString(&prompts.Unknown, y.Prompts.Unknown)
	mergeString(&prompts.Saved, y.Prompts.Saved)
	mergeString(&prompts.Fallback, y.Prompts.Fallback)

	mergeString(&server.Addr, y.Server.Addr)
	if y.Server.RequestTimeout > 0 {
		server.RequestTimeout = y.Server.RequestTimeout
	}
	if y.Server.EnableMetrics {
		server.EnableMetrics = true
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
